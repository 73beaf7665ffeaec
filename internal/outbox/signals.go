package outbox

import "sync"

// signals is the subscription surface for sync observability. Callbacks
// are fire-and-forget notifications invoked synchronously from the drain
// goroutine; subscribers must not block.
type signals struct {
	mu        sync.Mutex
	started   []func()
	completed []func(success bool)
	progress  []func(current, total int)
	reauth    []func()
}

func (s *signals) onStarted(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = append(s.started, fn)
}

func (s *signals) onCompleted(fn func(bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, fn)
}

func (s *signals) onProgress(fn func(int, int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, fn)
}

func (s *signals) onReauth(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reauth = append(s.reauth, fn)
}

func (s *signals) emitStarted() {
	s.mu.Lock()
	fns := append([]func(){}, s.started...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (s *signals) emitCompleted(success bool) {
	s.mu.Lock()
	fns := append([]func(bool){}, s.completed...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(success)
	}
}

func (s *signals) emitProgress(current, total int) {
	s.mu.Lock()
	fns := append([]func(int, int){}, s.progress...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(current, total)
	}
}

func (s *signals) emitReauth() {
	s.mu.Lock()
	fns := append([]func(){}, s.reauth...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
