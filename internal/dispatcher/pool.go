// Package dispatcher runs slow render and inference calls on a bounded set
// of worker goroutines so one large document cannot starve other users.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	mpkg "github.com/local/editorialbrief/internal/metrics"
)

// ErrStopped is returned for tasks submitted after Stop.
var ErrStopped = errors.New("worker pool stopped")

type Config struct {
	Concurrency int
	QueueSize   int
}

type task struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

// Pool is a fixed set of workers fed through a request channel. Each task
// answers on its own response channel.
type Pool struct {
	cfg      Config
	tasks    chan task
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(cfg Config) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	return &Pool{cfg: cfg, tasks: make(chan task, cfg.QueueSize), stop: make(chan struct{})}
}

func (p *Pool) Start() {
	for i := 0; i < p.cfg.Concurrency; i++ {
		p.wg.Add(1)
		go p.loop(i)
	}
}

// Stop signals workers and waits for in-flight tasks to finish.
func (p *Pool) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.stop) })
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) loop(id int) {
	defer p.wg.Done()
	log.Debug().Int("worker", id).Msg("dispatcher worker started")
	for {
		select {
		case <-p.stop:
			log.Debug().Int("worker", id).Msg("dispatcher worker stopped")
			return
		case t := <-p.tasks:
			t.done <- p.run(t)
		}
	}
}

func (p *Pool) run(t task) (err error) {
	if err := t.ctx.Err(); err != nil {
		return err
	}
	mpkg.PoolTaskStarted()
	defer mpkg.PoolTaskFinished()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("dispatcher task panicked")
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return t.fn(t.ctx)
}

// Do submits fn and blocks until a worker has run it or ctx ends.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	t := task{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case <-p.stop:
		return ErrStopped
	default:
	}
	select {
	case p.tasks <- t:
	case <-p.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-t.done:
		return err
	case <-p.stop:
		// a worker may still be finishing it; prefer its answer
		select {
		case err := <-t.done:
			return err
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}
