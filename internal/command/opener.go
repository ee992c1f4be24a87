package command

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
)

// openDir hands the directory to the desktop's file browser.
func openDir(path string) error {
	if path == "" {
		return errors.New("no directory configured")
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("explorer", path)
	case "darwin":
		cmd = exec.Command("open", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	// The opener keeps running on its own; reap it in the background.
	go func() { _ = cmd.Wait() }()
	return nil
}
