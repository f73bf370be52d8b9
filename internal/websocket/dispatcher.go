package websocket

import (
	"sync"

	"go.uber.org/zap"
)

// Dispatcher runs DB-bound work on a bounded pool so a slow query on one
// connection never stalls the hub loop or another session's traffic.
type Dispatcher struct {
	tasks    chan func()
	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

// NewDispatcher starts workers goroutines draining a queue of queueSize.
func NewDispatcher(workers, queueSize int, logger *zap.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 32
	}
	if queueSize <= 0 {
		queueSize = workers * 4
	}

	d := &Dispatcher{
		tasks:  make(chan func(), queueSize),
		stop:   make(chan struct{}),
		logger: logger,
	}

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case task := <-d.tasks:
			task()
		case <-d.stop:
			// Drain what is already queued before exiting.
			for {
				select {
				case task := <-d.tasks:
					task()
				default:
					return
				}
			}
		}
	}
}

// Submit queues a task. Returns false when the queue is saturated or the
// dispatcher is stopping; callers answer the client with a retryable error
// instead of blocking the read pump.
func (d *Dispatcher) Submit(task func()) bool {
	select {
	case <-d.stop:
		return false
	default:
	}

	select {
	case d.tasks <- task:
		return true
	default:
		d.logger.Warn("dispatcher queue full, rejecting task")
		return false
	}
}

// Stop waits for the workers to finish the queued tasks.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stop)
	})
	d.wg.Wait()
}
