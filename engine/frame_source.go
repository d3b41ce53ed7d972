package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/radar-scan/core"
)

// DefaultFrameInterval approximates a 60Hz display refresh
const DefaultFrameInterval = time.Second / 60

// CancelFunc withdraws a pending frame request; safe to call more than once
type CancelFunc func()

// FrameSource delivers one-shot callbacks on the next frame
type FrameSource interface {
	RequestFrame(fn func()) CancelFunc
}

type frameRequest struct {
	id uint64
	fn func()
}

// frameQueue holds pending one-shot requests shared by the frame sources
type frameQueue struct {
	mu      sync.Mutex
	nextID  uint64
	pending []frameRequest
}

func (q *frameQueue) add(fn func()) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	q.pending = append(q.pending, frameRequest{id: q.nextID, fn: fn})
	return q.nextID
}

func (q *frameQueue) remove(id uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, req := range q.pending {
		if req.id == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}

// take drains the queue; requests made while running land in the next frame
func (q *frameQueue) take() []frameRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	reqs := q.pending
	q.pending = nil
	return reqs
}

func (q *frameQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// TickerFrameSource runs pending callbacks on its own goroutine at a fixed
// cadence. With nothing pending it blocks on a wake signal instead of ticking.
type TickerFrameSource struct {
	interval time.Duration
	queue    frameQueue

	wake     chan struct{}
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	running  atomic.Bool

	frames atomic.Uint64
}

// NewTickerFrameSource creates a frame source; non-positive interval uses 60Hz
func NewTickerFrameSource(interval time.Duration) *TickerFrameSource {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &TickerFrameSource{
		interval: interval,
		wake:     make(chan struct{}, 1),
		stopChan: make(chan struct{}),
	}
}

// Interval returns the frame period
func (fs *TickerFrameSource) Interval() time.Duration {
	return fs.interval
}

// Frames returns how many frames have run callbacks
func (fs *TickerFrameSource) Frames() uint64 {
	return fs.frames.Load()
}

// RequestFrame queues fn for the next frame
func (fs *TickerFrameSource) RequestFrame(fn func()) CancelFunc {
	id := fs.queue.add(fn)
	select {
	case fs.wake <- struct{}{}:
	default:
	}
	return func() { fs.queue.remove(id) }
}

// Start launches the frame loop
func (fs *TickerFrameSource) Start() {
	if fs.running.CompareAndSwap(false, true) {
		fs.wg.Add(1)
		core.Go(fs.loop)
	}
}

// Stop halts the loop and waits for the in-flight frame to finish.
// Requests still pending are dropped.
func (fs *TickerFrameSource) Stop() {
	fs.stopOnce.Do(func() {
		close(fs.stopChan)
		if fs.running.Load() {
			fs.wg.Wait()
		}
		fs.queue.take()
	})
}

func (fs *TickerFrameSource) loop() {
	defer fs.wg.Done()

	timer := time.NewTimer(0)
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	defer timer.Stop()

	var deadline time.Time

	for {
		if fs.queue.len() == 0 {
			// Idle: no CPU until someone requests a frame
			select {
			case <-fs.stopChan:
				return
			case <-fs.wake:
				continue
			}
		}

		now := time.Now()
		if deadline.IsZero() || now.Sub(deadline) > fs.interval*2 {
			// First frame after idle, or too far behind to catch up
			deadline = now.Add(fs.interval)
		}

		timer.Reset(deadline.Sub(now))
		select {
		case <-fs.stopChan:
			return
		case <-timer.C:
		}

		deadline = deadline.Add(fs.interval)

		reqs := fs.queue.take()
		if len(reqs) == 0 {
			deadline = time.Time{}
			continue
		}
		fs.frames.Add(1)
		for _, req := range reqs {
			req.fn()
		}
	}
}

// ManualFrameSource runs frames only when told to; used by tests and
// headless stepping
type ManualFrameSource struct {
	queue  frameQueue
	frames atomic.Uint64
}

// NewManualFrameSource creates an empty manual source
func NewManualFrameSource() *ManualFrameSource {
	return &ManualFrameSource{}
}

// RequestFrame queues fn until the next Step
func (fs *ManualFrameSource) RequestFrame(fn func()) CancelFunc {
	id := fs.queue.add(fn)
	return func() { fs.queue.remove(id) }
}

// Step runs every callback pending at call time and returns how many ran
func (fs *ManualFrameSource) Step() int {
	reqs := fs.queue.take()
	if len(reqs) > 0 {
		fs.frames.Add(1)
	}
	for _, req := range reqs {
		req.fn()
	}
	return len(reqs)
}

// Pending returns the number of queued callbacks
func (fs *ManualFrameSource) Pending() int {
	return fs.queue.len()
}

// Frames returns how many Steps ran at least one callback
func (fs *ManualFrameSource) Frames() uint64 {
	return fs.frames.Load()
}
