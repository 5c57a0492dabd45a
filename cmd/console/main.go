package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"comicbot/app"
	"comicbot/config"
	"comicbot/demo/tui"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// The UI owns the terminal, so logs are discarded
	logger := &log.Logger{Handler: discard.New(), Level: log.InfoLevel}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup: %v\n", err)
		os.Exit(1)
	}
	defer deps.Close()

	conv := tui.NewConversation()
	program := tea.NewProgram(tui.NewModel(ctx, deps.Router, conv), tea.WithContext(ctx))
	conv.Attach(program.Send)

	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		fmt.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}
}
