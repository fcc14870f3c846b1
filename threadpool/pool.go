// Package threadpool provides a fixed-width worker pool whose workers have
// stable indices, so that per-worker resources can be kept in a plain slice.
package threadpool

import (
	"context"
	"fmt"
	"sync"

	"github.com/facebookincubator/go-belt"
	"github.com/xaionaro-go/imgcodec/logger"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/xsync"
)

// Task is executed by the worker with index threadIdx (0 <= threadIdx < NumThreads()).
// It receives the context passed to Submit.
type Task = func(ctx context.Context, threadIdx int)

type submittedTask struct {
	ctx  context.Context
	task Task
}

type Pool struct {
	numThreads int
	tasks      chan submittedTask

	locker   xsync.Mutex
	isClosed bool

	pending sync.WaitGroup
	workers sync.WaitGroup
}

func New(
	ctx context.Context,
	numThreads int,
) (*Pool, error) {
	if numThreads < 1 {
		return nil, fmt.Errorf("the amount of threads must be positive, but it is %d", numThreads)
	}
	p := &Pool{
		numThreads: numThreads,
		tasks:      make(chan submittedTask, numThreads),
	}
	for threadIdx := 0; threadIdx < numThreads; threadIdx++ {
		p.workers.Add(1)
		threadIdx := threadIdx
		observability.Go(ctx, func(ctx context.Context) {
			defer p.workers.Done()
			p.worker(belt.WithField(ctx, "thread_idx", threadIdx), threadIdx)
		})
	}
	return p, nil
}

func (p *Pool) worker(ctx context.Context, threadIdx int) {
	logger.Tracef(ctx, "worker")
	defer func() { logger.Tracef(ctx, "/worker") }()
	for item := range p.tasks {
		item.task(belt.WithField(item.ctx, "thread_idx", threadIdx), threadIdx)
		p.pending.Done()
	}
}

func (p *Pool) NumThreads() int {
	return p.numThreads
}

// Submit schedules the task; it blocks while all the workers are busy and
// the queue is full.
func (p *Pool) Submit(
	ctx context.Context,
	task Task,
) error {
	return xsync.DoR1(xsync.WithNoLogging(ctx, true), &p.locker, func() error {
		if p.isClosed {
			return fmt.Errorf("the thread pool is closed")
		}
		p.pending.Add(1)
		p.tasks <- submittedTask{ctx: ctx, task: task}
		return nil
	})
}

// Wait blocks until all the submitted tasks are finished.
func (p *Pool) Wait(ctx context.Context) {
	p.pending.Wait()
}

// Close waits for the submitted tasks and stops the workers.
func (p *Pool) Close(ctx context.Context) error {
	p.locker.Do(ctx, func() {
		if p.isClosed {
			return
		}
		p.isClosed = true
		close(p.tasks)
	})
	p.workers.Wait()
	return nil
}
