// Package convlog writes an asynchronous NDJSON log of interview traffic.
package convlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Directions.
const (
	Inbound  = "inbound"
	Outbound = "outbound"
)

// Config controls conversation logging.
type Config struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Event is one logged frame or client message.
type Event struct {
	Timestamp time.Time `json:"ts"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id,omitempty"`
	Direction string    `json:"direction"`
	EventType string    `json:"event_type"`
	Content   string    `json:"content,omitempty"`
	Bytes     int       `json:"bytes,omitempty"`
}

// Logger records events without blocking the caller.
type Logger interface {
	Log(event Event)
	Close() error
}

type nopLogger struct{}

func (nopLogger) Log(Event)    {}
func (nopLogger) Close() error { return nil }

// Nop returns a Logger that discards everything.
func Nop() Logger { return nopLogger{} }

type fileLogger struct {
	cfg    Config
	logger *slog.Logger
	queue  chan Event
	done   chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// New starts a background writer. A disabled config yields Nop.
func New(cfg Config, logger *slog.Logger) (Logger, error) {
	if !cfg.Enabled {
		return Nop(), nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dir == "" {
		return nil, errors.New("conversation log dir is required")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create conversation log dir: %w", err)
	}
	if cfg.GlobalEnabled {
		if cfg.GlobalPath == "" {
			return nil, errors.New("conversation log global path is required")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.GlobalPath), 0755); err != nil {
			return nil, fmt.Errorf("create global conversation log dir: %w", err)
		}
	}

	l := &fileLogger{
		cfg:    cfg,
		logger: logger,
		queue:  make(chan Event, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	go l.run()
	return l, nil
}

// Log enqueues event. Events are dropped when the queue is full.
func (l *fileLogger) Log(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- event:
	default:
		if n := l.dropped.Add(1); n%100 == 1 {
			l.logger.Warn("conversation log queue full, dropping events", "dropped", n)
		}
	}
}

// Close flushes queued events and stops the writer.
func (l *fileLogger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()

	<-l.done
	return nil
}

func (l *fileLogger) run() {
	defer close(l.done)
	for event := range l.queue {
		line, err := json.Marshal(event)
		if err != nil {
			l.logger.Warn("failed to encode conversation event", "error", err)
			continue
		}
		line = append(line, '\n')

		if err := appendLine(l.sessionPath(event), line); err != nil {
			l.logger.Warn("failed to write conversation log", "session_id", event.SessionID, "error", err)
		}
		if l.cfg.GlobalEnabled {
			if err := appendLine(l.cfg.GlobalPath, line); err != nil {
				l.logger.Warn("failed to write global conversation log", "error", err)
			}
		}
	}
}

func (l *fileLogger) sessionPath(event Event) string {
	owner := safeName(event.UserID)
	if owner == "" {
		owner = "guest"
	}
	session := safeName(event.SessionID)
	if session == "" {
		session = "unknown"
	}
	return filepath.Join(l.cfg.Dir, owner, session+".ndjson")
}

func appendLine(path string, line []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// safeName keeps identifiers usable as a single path element.
func safeName(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
