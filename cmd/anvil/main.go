package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/anvilbuild/anvil/internal/cli"
)

// main is the entrypoint for the anvil build tool.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(args []string) error {
	root := cli.NewRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}
