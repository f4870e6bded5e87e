package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"stepflow/pkg/logging"
)

// LogSink writes every event to the structured log. Warning severity events
// are logged at warn level, the rest at info or debug.
type LogSink struct {
	// Verbose logs step-level events at info instead of debug.
	Verbose bool
}

// Handle implements Handler.
func (s LogSink) Handle(evt Event) error {
	switch {
	case evt.Severity() == SeverityWarning:
		logging.Warn("EventLog", "[%s] %s", evt.RunID, evt.Message)
	case evt.StepID == "" || s.Verbose:
		logging.Info("EventLog", "[%s] %s", evt.RunID, evt.Message)
	default:
		logging.Debug("EventLog", "[%s] %s", evt.RunID, evt.Message)
	}
	return nil
}

// FileSink appends events as JSON lines to a file.
type FileSink struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	detach func()
}

// NewFileSink opens (or creates) path for appending.
func NewFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create event log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log %s: %w", path, err)
	}
	return &FileSink{path: path, file: f}, nil
}

// Path returns the file being written.
func (s *FileSink) Path() string {
	return s.path
}

// Handle implements Handler.
func (s *FileSink) Handle(evt Event) error {
	line, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return fmt.Errorf("event log %s is closed", s.path)
	}
	if _, err := s.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write event log: %w", err)
	}
	return nil
}

// Attach subscribes the sink to ch through a queue of the given size, so
// file writes happen on the sink's own goroutine. Close drains the queue.
func (s *FileSink) Attach(ch *Channel, buffer int) {
	queue, cancel := ch.SubscribeQueue(buffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for evt := range queue {
			if err := s.Handle(evt); err != nil {
				logging.Error("EventLog", err, "Failed to write %s for %s", evt.Type, evt.WorkflowID)
			}
		}
	}()

	s.mu.Lock()
	s.detach = func() {
		cancel()
		<-done
	}
	s.mu.Unlock()
}

// Close detaches the sink from its channel, writes queued events and closes
// the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	detach := s.detach
	s.detach = nil
	s.mu.Unlock()
	if detach != nil {
		detach()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
