package sim

import (
	"sync"

	"github.com/fxnlabs/cudabind/driver"
)

const streamQueueDepth = 256

type op func() driver.Status

type stream struct {
	ops  chan op
	done chan struct{}

	mu      sync.Mutex
	cond    *sync.Cond
	pending int
	err     driver.Status
}

func newStream() *stream {
	s := &stream{
		ops:  make(chan op, streamQueueDepth),
		done: make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

func (s *stream) run() {
	defer close(s.done)
	for fn := range s.ops {
		st := fn()
		s.mu.Lock()
		if st != driver.StatusSuccess && s.err == driver.StatusSuccess {
			s.err = st
		}
		s.pending--
		s.cond.Broadcast()
		s.mu.Unlock()
	}
}

func (s *stream) enqueue(fn op) {
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()
	s.ops <- fn
}

// wait blocks until the queue is empty and returns, then clears, the sticky error.
func (s *stream) wait() driver.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.pending > 0 {
		s.cond.Wait()
	}
	st := s.err
	s.err = driver.StatusSuccess
	return st
}

func (s *stream) idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending == 0
}

func (s *stream) close() {
	close(s.ops)
	<-s.done
}

// drainAll waits for every named stream and returns the first sticky error.
// It must be called without d.mu held.
func (d *Driver) drainAll() driver.Status {
	d.mu.Lock()
	all := make([]*stream, 0, len(d.streams))
	for _, s := range d.streams {
		all = append(all, s)
	}
	d.mu.Unlock()

	result := driver.StatusSuccess
	for _, s := range all {
		if st := s.wait(); st != driver.StatusSuccess && result == driver.StatusSuccess {
			result = st
		}
	}
	return result
}

// submit runs fn on the given stream, or inline after draining every stream
// when h is the null stream.
func (d *Driver) submit(h driver.Handle, fn op) driver.Status {
	if h == 0 {
		if st := d.drainAll(); st != driver.StatusSuccess {
			return st
		}
		return fn()
	}
	d.mu.Lock()
	s, ok := d.streams[h]
	d.mu.Unlock()
	if !ok {
		return StatusInvalidHandle
	}
	s.enqueue(fn)
	return driver.StatusSuccess
}

func (d *Driver) StreamCreate() driver.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ready() != driver.StatusSuccess {
		return 0
	}
	s := newStream()
	h := d.newHandle(s)
	d.streams[h] = s
	return h
}

func (d *Driver) StreamDestroy(h driver.Handle) driver.Status {
	d.mu.Lock()
	s, ok := d.streams[h]
	if ok {
		delete(d.streams, h)
		delete(d.objects, h)
	}
	d.mu.Unlock()
	if !ok {
		return StatusInvalidHandle
	}
	s.wait()
	s.close()
	return driver.StatusSuccess
}

func (d *Driver) StreamSync(h driver.Handle) driver.Status {
	if h == 0 {
		return d.drainAll()
	}
	d.mu.Lock()
	s, ok := d.streams[h]
	d.mu.Unlock()
	if !ok {
		return StatusInvalidHandle
	}
	return s.wait()
}

// StreamQuery reports whether h has finished its work. The null stream is
// finished once every named stream is idle.
func (d *Driver) StreamQuery(h driver.Handle) driver.Status {
	d.mu.Lock()
	if h == 0 {
		busy := false
		for _, s := range d.streams {
			if !s.idle() {
				busy = true
				break
			}
		}
		d.mu.Unlock()
		if busy {
			return driver.StatusNotReady
		}
		return driver.StatusSuccess
	}
	s, ok := d.streams[h]
	d.mu.Unlock()
	if !ok {
		return StatusInvalidHandle
	}
	if !s.idle() {
		return driver.StatusNotReady
	}
	return driver.StatusSuccess
}
