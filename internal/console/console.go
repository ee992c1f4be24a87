// Package console launches the game's own console as a subprocess and
// relays its output. The interactive loop owns the handle exclusively;
// everything learned from the stream is pushed through a Sink so the rest
// of the program never touches the process directly.
package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"scout/internal/logging"
)

// Sink receives everything the listener learns from the console stream.
type Sink interface {
	AppendConsole(line string)
	RecordConnection(hostname, address string)
	SetConnected(connected bool)
}

// Handle wraps a running game console process.
type Handle struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	mu     sync.Mutex
	done   chan struct{}
	stdout io.ReadCloser
}

// ErrNotRunning is returned when a command is sent after the process exited.
var ErrNotRunning = errors.New("game console is not running")

// Launch starts the game binary inside dir and returns the live handle.
// The returned handle is inert until AttachListener is called.
func Launch(dir, binary string, logger *slog.Logger) (*Handle, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "console")

	path := filepath.Join(dir, binary)
	cmd := exec.Command(path)
	cmd.Dir = dir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open console stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open console stdout: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launch %s: %w", binary, err)
	}

	logger.Info("game console launched",
		logging.String("binary", binary),
		logging.Int("pid", cmd.Process.Pid))

	return &Handle{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		done:   make(chan struct{}),
	}, nil
}

// Running reports whether the process is still alive.
func (h *Handle) Running() bool {
	if h == nil {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Send writes one command line to the console's stdin.
func (h *Handle) Send(command string) error {
	if !h.Running() {
		return ErrNotRunning
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := io.WriteString(h.stdin, command+"\n"); err != nil {
		return fmt.Errorf("send console command: %w", err)
	}
	return nil
}

// Connect instructs the console to join the given address.
func (h *Handle) Connect(address string) error {
	return h.Send("connect " + address)
}

// AttachListener starts the stream reader. Console lines flow into the sink
// verbatim; recognized join events are recorded as connections. The sink's
// connected flag is raised now and cleared when the stream ends.
func AttachListener(h *Handle, sink Sink, logger *slog.Logger) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "console")

	sink.SetConnected(true)

	go func() {
		defer close(h.done)
		defer sink.SetConnected(false)

		var lastHostname string
		scanner := bufio.NewScanner(h.stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			sink.AppendConsole(line)

			if name, ok := parseJoining(line); ok {
				lastHostname = name
				continue
			}
			if address, ok := parseConnect(line); ok {
				sink.RecordConnection(lastHostname, address)
				lastHostname = ""
			}
		}
		if err := scanner.Err(); err != nil {
			logger.Warn("console stream ended with error", logging.Error(err))
		}

		if err := h.cmd.Wait(); err != nil {
			logger.Info("game console exited", logging.Error(err))
		} else {
			logger.Info("game console exited")
		}
	}()
}

// parseJoining recognizes the "Joining <server name>..." line the game
// prints right before it dials.
func parseJoining(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	rest, ok := strings.CutPrefix(trimmed, "Joining ")
	if !ok {
		return "", false
	}
	rest = strings.TrimSuffix(rest, "...")
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", false
	}
	return rest, true
}

// parseConnect recognizes an echoed connect command and extracts the
// "ip:port" target.
func parseConnect(line string) (string, bool) {
	fields := strings.Fields(strings.TrimSpace(line))
	for i, field := range fields {
		if field != "connect" || i+1 >= len(fields) {
			continue
		}
		target := strings.Trim(fields[i+1], `"`)
		if isJoinAddress(target) {
			return target, true
		}
	}
	return "", false
}

func isJoinAddress(target string) bool {
	host, port, found := splitHostPort(target)
	return found && host != "" && port != ""
}

func splitHostPort(target string) (string, string, bool) {
	i := strings.LastIndex(target, ":")
	if i <= 0 || i == len(target)-1 {
		return "", "", false
	}
	port := target[i+1:]
	for _, r := range port {
		if r < '0' || r > '9' {
			return "", "", false
		}
	}
	return target[:i], port, true
}
