package watcher

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/forPelevin/rushorts/internal/logger"
)

const defaultSettle = 500 * time.Millisecond

type Options struct {
	// MaxConcurrent defaults to 1.
	MaxConcurrent int
	// Settle is how long a new file is left alone before processing, so
	// copies can finish writing.
	Settle time.Duration
}

// New watches inputDir. The directory must exist.
func New(inputDir string, handler EventHandler, log logger.Logger, o Options) (Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(inputDir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("add watch path: %w", err)
	}

	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 1
	}
	if o.Settle < 0 {
		o.Settle = 0
	} else if o.Settle == 0 {
		o.Settle = defaultSettle
	}
	if log == nil {
		log = logger.Nop()
	}

	return &implWatcher{
		inputDir:      inputDir,
		handler:       handler,
		logger:        log,
		watcher:       fw,
		maxConcurrent: o.MaxConcurrent,
		settle:        o.Settle,
		semaphore:     make(chan struct{}, o.MaxConcurrent),
		inFlight:      make(map[string]struct{}),
	}, nil
}
