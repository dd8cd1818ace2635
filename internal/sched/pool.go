// Package sched implements the worker pool: N OS-thread-pinned workers
// draining one shared run queue, each cooperative with itself but
// preemptive with respect to the others, per spec.md §4.9/§5. Grounded on
// the teacher's internal/queue.Runner.ioLoop (runtime.LockOSThread +
// unix.SchedSetaffinity per queue thread), generalized from "one thread per
// ublk queue" to "one thread per scheduler worker."
package sched

import (
	"runtime"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/raleighsl/raleighsl/internal/latency"
)

// Task is one unit of work submitted to the pool.
type Task func()

// DefaultWorkerCount returns ceil(cores, 2), the worker count spec.md §4.9
// calls for.
func DefaultWorkerCount(cores int) int {
	if cores < 1 {
		cores = 1
	}
	return (cores + 1) / 2
}

// Pool is a fixed-size worker pool with a single shared FIFO run queue and a
// single condvar gating idle workers, matching spec.md's "task_ready"
// condvar with broadcast-on-many / signal-on-one wake semantics.
type Pool struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Task
	closed bool

	hist []*latency.Histogram
	wg   sync.WaitGroup
}

// NewPool starts a pool of n workers, optionally pinned round-robin across
// cpus (nil/empty means no affinity is set).
func NewPool(n int, cpus []int) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{hist: make([]*latency.Histogram, n)}
	p.cond = sync.NewCond(&p.mu)
	for i := range p.hist {
		p.hist[i] = latency.New(latency.DefaultBucketsNs)
	}
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.worker(i, cpus)
	}
	return p
}

// Submit enqueues tasks in order, broadcasting the condvar when more than
// one task arrives in a single call and signaling a single waiter otherwise
// (spec.md §4.9: "broadcast on >1 new task and a single signal on 1").
func (p *Pool) Submit(tasks ...Task) {
	if len(tasks) == 0 {
		return
	}
	p.mu.Lock()
	p.queue = append(p.queue, tasks...)
	p.mu.Unlock()
	if len(tasks) > 1 {
		p.cond.Broadcast()
	} else {
		p.cond.Signal()
	}
}

// Workers returns the number of workers in the pool.
func (p *Pool) Workers() int { return len(p.hist) }

// Histogram returns worker i's exec-latency histogram.
func (p *Pool) Histogram(i int) *latency.Histogram { return p.hist[i] }

// Close stops accepting new work's effect on idle workers, wakes every
// worker, and waits for the run queue to drain and all workers to exit.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
	p.wg.Wait()
}

func (p *Pool) worker(idx int, cpus []int) {
	defer p.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if len(cpus) > 0 {
		var mask unix.CPUSet
		mask.Set(cpus[idx%len(cpus)])
		unix.SchedSetaffinity(0, &mask)
	}

	for {
		task, ok := p.fetch()
		if !ok {
			return
		}
		t0 := time.Now()
		task()
		p.hist[idx].Observe(uint64(time.Since(t0).Nanoseconds()))
	}
}

// fetch blocks on the shared condvar while the queue is empty and the pool
// is open; this is the only suspension point inside a worker besides the
// task body itself, per spec.md §5.
func (p *Pool) fetch() (Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 && !p.closed {
		p.cond.Wait()
	}
	if len(p.queue) == 0 {
		return nil, false
	}
	task := p.queue[0]
	p.queue = p.queue[1:]
	return task, true
}
