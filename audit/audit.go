// Package audit persists operational events to the audit trail without
// blocking the pipeline: entries are buffered on a channel and flushed by
// a background goroutine, with a synchronous fallback when the buffer is
// full.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/lienwatch/lienwatch/store"
)

// Logger is the async audit writer.
type Logger struct {
	store  store.Store
	logger *slog.Logger
	ch     chan *store.AuditEntry
	stop   chan struct{}
	done   chan struct{}

	closeOnce sync.Once
}

// New creates an audit Logger. Recommended bufferSize: 1000.
func New(s store.Store, bufferSize int, logger *slog.Logger) *Logger {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Logger{
		store:  s,
		logger: logger,
		ch:     make(chan *store.AuditEntry, bufferSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go a.flushLoop()
	return a
}

// Info queues an info-level entry.
func (a *Logger) Info(component, message string, metadata map[string]any) {
	a.log(store.LevelInfo, component, message, metadata)
}

// Warning queues a warning-level entry.
func (a *Logger) Warning(component, message string, metadata map[string]any) {
	a.log(store.LevelWarning, component, message, metadata)
}

// Error queues an error-level entry.
func (a *Logger) Error(component, message string, metadata map[string]any) {
	a.log(store.LevelError, component, message, metadata)
}

// Success queues a success-level entry.
func (a *Logger) Success(component, message string, metadata map[string]any) {
	a.log(store.LevelSuccess, component, message, metadata)
}

func (a *Logger) log(level, component, message string, metadata map[string]any) {
	e := &store.AuditEntry{
		Level:     level,
		Component: component,
		Message:   message,
		CreatedAt: time.Now().UnixMilli(),
	}
	if len(metadata) > 0 {
		if b, err := json.Marshal(metadata); err == nil {
			e.MetadataJSON = string(b)
		}
	}
	select {
	case a.ch <- e:
	default:
		a.logger.Warn("audit buffer full, sync fallback", "component", component)
		if err := a.store.InsertAuditEntry(context.Background(), e); err != nil {
			a.logger.Error("audit: sync fallback failed", "error", err)
		}
	}
}

// Close drains the buffer and stops the flush goroutine. Safe to call
// more than once.
func (a *Logger) Close() error {
	a.closeOnce.Do(func() {
		close(a.stop)
		<-a.done
	})
	return nil
}

func (a *Logger) flushLoop() {
	defer close(a.done)

	insert := func(e *store.AuditEntry) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.store.InsertAuditEntry(ctx, e); err != nil {
			a.logger.Error("audit: insert failed", "error", err, "component", e.Component)
		}
	}

	for {
		select {
		case <-a.stop:
			for {
				select {
				case e := <-a.ch:
					insert(e)
				default:
					return
				}
			}
		case e := <-a.ch:
			insert(e)
		}
	}
}
