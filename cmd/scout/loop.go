package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"scout/internal/command"
)

// runLoop owns the terminal: it prompts, reads one line at a time, and hands
// each to the dispatcher. Outstanding spawned work is joined before the next
// prompt, so a slow command delays the redraw but typed input is never lost.
func runLoop(ctx context.Context, dispatcher *command.Dispatcher) {
	interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		if interactive {
			fmt.Fprint(os.Stdout, "> ")
		}

		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stdout)
			return
		case line, open := <-lines:
			if !open {
				return
			}
			if dispatcher.Dispatch(ctx, line) {
				return
			}
			dispatcher.Join()
		}
	}
}
