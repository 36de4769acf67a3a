package blackbox

import (
	"context"
	"sync"
	"time"
)

// TaskResult is the completion notice of one recording task.
type TaskResult struct {
	CameraID int
	EventID  string
	Err      error
	Elapsed  time.Duration
}

// taskSet runs at most one task per camera and reports completions on a
// channel.
type taskSet struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running map[int]string
	wg      sync.WaitGroup
	results chan TaskResult
	closed  chan struct{}
	once    sync.Once
}

// newTaskSet builds a set whose tasks run under a context detached from
// parent's cancellation. Tasks are only cancelled through Cancel.
func newTaskSet(parent context.Context) *taskSet {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	return &taskSet{
		ctx:     ctx,
		cancel:  cancel,
		running: make(map[int]string),
		results: make(chan TaskResult, 8),
		closed:  make(chan struct{}),
	}
}

// Go starts fn for cameraID unless that camera already has a task. It
// returns false without running fn when the camera is busy.
func (s *taskSet) Go(cameraID int, eventID string, fn func(context.Context) error) bool {
	s.mu.Lock()
	if _, busy := s.running[cameraID]; busy {
		s.mu.Unlock()
		return false
	}
	s.running[cameraID] = eventID
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		started := time.Now()
		err := fn(s.ctx)
		s.mu.Lock()
		delete(s.running, cameraID)
		s.mu.Unlock()
		result := TaskResult{CameraID: cameraID, EventID: eventID, Err: err, Elapsed: time.Since(started)}
		s.wg.Done()
		select {
		case s.results <- result:
		case <-s.closed:
		}
	}()
	return true
}

// Busy reports whether cameraID has a running task.
func (s *taskSet) Busy(cameraID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, busy := s.running[cameraID]
	return busy
}

// Len returns the number of running tasks.
func (s *taskSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

// Results delivers task completions until Close.
func (s *taskSet) Results() <-chan TaskResult { return s.results }

// Wait blocks until every task has finished or timeout elapses. It reports
// whether all tasks finished.
func (s *taskSet) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// Cancel cancels the context of every running task.
func (s *taskSet) Cancel() { s.cancel() }

// Close stops result delivery. Pending senders give up.
func (s *taskSet) Close() {
	s.once.Do(func() {
		close(s.closed)
		s.cancel()
	})
}
