package annotation

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

var errUnexpectedBody = errors.New("response is not a JSON object")

// ExtractText pulls the explanation out of a chat completions response.
// content may be a plain string or a list of typed parts; only parts with a
// text field count. No choices yields "". A body that is not a JSON object
// is an error.
func ExtractText(body []byte) (string, error) {
	var data map[string]json.RawMessage
	if err := json.Unmarshal(body, &data); err != nil || data == nil {
		return "", errUnexpectedBody
	}

	var choices []json.RawMessage
	if err := json.Unmarshal(data["choices"], &choices); err != nil || len(choices) == 0 {
		return "", nil
	}

	var choice struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(choices[0], &choice); err != nil {
		return "", nil
	}
	return contentText(choice.Message.Content), nil
}

func contentText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err == nil {
		texts := make([]string, 0, len(parts))
		for _, p := range parts {
			var part map[string]any
			if json.Unmarshal(p, &part) != nil {
				continue
			}
			if t := scalarText(part["text"]); t != "" {
				texts = append(texts, t)
			}
		}
		return strings.TrimSpace(strings.Join(texts, "\n"))
	}

	return strings.TrimSpace(string(raw))
}

// scalarText renders a JSON scalar, treating empty, zero and false as absent
func scalarText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == 0 {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "true"
		}
	}
	return ""
}

// errorMessage finds a human-readable message in an error body. It tries
// error.message, then message, then the raw text.
func errorMessage(body []byte) string {
	raw := strings.TrimSpace(string(body))

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return raw
	}

	switch e := obj["error"].(type) {
	case map[string]any:
		if m := scalarText(e["message"]); m != "" {
			return strings.TrimSpace(m)
		}
	case nil:
	default:
		// error is present but not an object
		if scalarText(e) != "" {
			return raw
		}
	}

	if m := scalarText(obj["message"]); m != "" {
		return strings.TrimSpace(m)
	}
	return raw
}
