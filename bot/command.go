package bot

import "strings"

// Command is a parsed chat command such as "/search cat"
type Command struct {
	Name string
	Args string
}

// ParseCommand splits "/name@botname args" into its parts. The name is
// lowercased and the args are whitespace-normalised. It reports false for
// text that is not a command.
func ParseCommand(text string) (Command, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return Command{}, false
	}

	name := strings.TrimPrefix(fields[0], "/")
	name, _, _ = strings.Cut(name, "@")
	if name == "" {
		return Command{}, false
	}

	return Command{
		Name: strings.ToLower(name),
		Args: strings.Join(fields[1:], " "),
	}, true
}
