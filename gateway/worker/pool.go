// Package worker provides an asynchronous worker pool that publishes relay
// events to an eventstream.Publisher.
//
// The pool decouples publishing from the gateway's HTTP hot path so that the
// browser-gateway-upstream interaction is fully transparent: a slow or
// unavailable event backend never delays a relayed response.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/devlens/gateway/pkg/eventstream"
)

var (
	defaultNumWorkers     uint = 2
	defaultJobQueueSize   uint = 256
	defaultPublishTimeout      = 5 * time.Second
)

// Config is the configuration options for the worker pool.
type Config struct {
	// Publisher receives every event. Required.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered event channel (defaults to 256).
	QueueSize uint

	// PublishTimeout bounds a single publish call (defaults to 5s).
	PublishTimeout time.Duration

	Logger *slog.Logger
}

// Pool publishes relay events asynchronously.
type Pool struct {
	config *Config
	queue  chan *eventstream.RelayCompletedEvent
	wg     sync.WaitGroup
	logger *slog.Logger

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = defaultPublishTimeout
	}
	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan *eventstream.RelayCompletedEvent, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits an event for publishing. It never blocks: it returns false
// if the queue is full or the pool is closed, and the event is dropped.
func (p *Pool) Enqueue(event *eventstream.RelayCompletedEvent) bool {
	if event == nil {
		return false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}

	select {
	case p.queue <- event:
		p.logger.Debug("relay event queued", "event_id", event.EventID, "path", event.Request.Path)
		return true
	default:
		p.logger.Error("relay event not queued, queue full, event dropped",
			"event_id", event.EventID,
			"path", event.Request.Path,
		)
		return false
	}
}

// Close stops accepting events, waits for queued events to be published and
// closes the publisher. Call this during graceful shutdown after the gateway
// HTTP server has stopped.
func (p *Pool) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()

		p.wg.Wait()
		err = p.config.Publisher.Close()
	})
	return err
}

// worker is the inner worker thread that continuously pulls events off the queue.
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for event := range p.queue {
		p.publish(event)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

func (p *Pool) publish(event *eventstream.RelayCompletedEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.PublishTimeout)
	defer cancel()

	if err := p.config.Publisher.PublishRelay(ctx, event); err != nil {
		p.logger.Warn("relay event publish failed",
			"event_id", event.EventID,
			"error", err,
		)
		return
	}
	p.logger.Debug("relay event published", "event_id", event.EventID, "outcome", event.Outcome)
}
