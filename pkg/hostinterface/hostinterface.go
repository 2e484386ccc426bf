// Package hostinterface serves the dispatcher over a line protocol so a host
// application can drive the tool through a pipe.
//
// Each request is one line, "COMMAND" or "COMMAND|arg|arg". Each response is
// one line holding a JSON array: ["ok"], ["ok", result] or ["error", message].
package hostinterface

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gsnap/extension/internal/dispatcher"
)

// Built-in commands answered without the dispatcher.
const (
	CmdVersion   = ":VERSION:"
	CmdTimestamp = ":TIMESTAMP:"
	CmdCommands  = ":COMMANDS:"
)

// MaxLineSize bounds a single request line.
const MaxLineSize = 1 << 20

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the value returned by :VERSION:.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// Server answers host requests with a dispatcher.
type Server struct {
	d       *dispatcher.Dispatcher
	version string
	logger  *slog.Logger

	mu sync.Mutex
}

// New creates a server for d.
func New(d *dispatcher.Dispatcher, opts ...Option) *Server {
	s := &Server{
		d:       d,
		version: "No version set",
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ParseRequest splits a request line into a command and its arguments.
func ParseRequest(line string) (string, []string) {
	line = strings.TrimRight(line, "\r\n")
	parts := strings.Split(line, "|")
	command := strings.TrimSpace(parts[0])
	if len(parts) == 1 {
		return command, nil
	}
	return command, parts[1:]
}

// Handle answers a single request line.
func (s *Server) Handle(line string) string {
	command, args := ParseRequest(line)

	switch command {
	case CmdVersion:
		return formatDispatchResponse(s.version, nil)
	case CmdTimestamp:
		return formatDispatchResponse(fmt.Sprintf("%d", time.Now().UTC().UnixNano()), nil)
	case CmdCommands:
		return formatDispatchResponse(s.d.Commands(), nil)
	}

	if !s.d.HasHandler(command) {
		return formatDispatchResponse(nil, fmt.Errorf("%s: no handler registered", command))
	}

	result, err := s.d.Dispatch(dispatcher.Event{
		Command:   command,
		Args:      args,
		Timestamp: time.Now(),
	})
	if err != nil {
		s.logger.Debug("request failed", "command", command, "error", err)
	}
	return formatDispatchResponse(result, err)
}

// Serve answers requests read from r on w until r is exhausted or ctx is
// cancelled. Requests are handled one at a time in arrival order.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("reading requests: %w", err)
					}
				default:
				}
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := s.write(w, s.Handle(line)); err != nil {
				return err
			}
		}
	}
}

func (s *Server) write(w io.Writer, response string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(w, response+"\n"); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}
	return nil
}

// formatDispatchResponse formats a dispatcher result for the host.
func formatDispatchResponse(result any, err error) string {
	if err != nil {
		return fmt.Sprintf(`["error", %s]`, quote(err.Error()))
	}
	if result == nil {
		return `["ok"]`
	}
	if str, ok := result.(string); ok {
		return fmt.Sprintf(`["ok", %s]`, quote(str))
	}
	data, jerr := json.Marshal(result)
	if jerr != nil {
		return fmt.Sprintf(`["error", %s]`, quote("encoding result: "+jerr.Error()))
	}
	return fmt.Sprintf(`["ok", %s]`, data)
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
