package web

import (
	"sync"
	"time"

	"github.com/erazemk/skladnost/internal/submission"
)

// Toast is a message shown in the corner of a page and dismissed after
// Duration.
type Toast struct {
	Message  string
	Action   string
	Duration time.Duration
}

// DurationMS is the dismissal delay for the page script.
func (t Toast) DurationMS() int64 {
	return t.Duration.Milliseconds()
}

// toastCollector gathers the toasts opened while a page is built.
type toastCollector struct {
	mu     sync.Mutex
	toasts []Toast
}

var _ submission.Notifier = (*toastCollector)(nil)

func (c *toastCollector) Open(message, action string, opts submission.NotifyOptions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toasts = append(c.toasts, Toast{Message: message, Action: action, Duration: opts.Duration})
}

func (c *toastCollector) list() []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Toast(nil), c.toasts...)
}
