package camera

import (
	"context"
	"sync"

	"gateway/internal/apperror"
	"gateway/internal/logger"
)

// ClientBuffer is how many frames a slow reader may lag before frames are dropped for it.
const ClientBuffer = 5

// Device is an opened capture device producing JPEG frames.
type Device interface {
	ReadFrame() ([]byte, error)
	Close() error
}

// Opener opens the capture device.
type Opener func() (Device, error)

type State int

const (
	StateUnopened State = iota
	StateOpened
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpened:
		return "opened"
	case StateReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Session is the single process-wide camera handle shared by every reader.
// The device is opened by the first reader and released when the last one
// detaches, on read failure, or on an explicit Release.
type Session struct {
	open   Opener
	logger *logger.Logger

	mu         sync.Mutex
	state      State
	generation uint64
	clients    map[chan []byte]struct{}
	stopCh     chan struct{}
	loopDone   chan struct{}
	opening    chan struct{} // zamykany po zakonczeniu otwierania urzadzenia
	closed     bool
	lastErr    error
}

func NewSession(open Opener, logger *logger.Logger) *Session {
	return &Session{
		open:    open,
		logger:  logger,
		state:   StateUnopened,
		clients: make(map[chan []byte]struct{}),
	}
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Readers returns the number of attached readers.
func (s *Session) Readers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Attach registers a reader, opening the device if needed. The device is
// opened without holding the session lock; concurrent callers wait for that
// open, and every wait gives up when ctx is done. The returned channel is
// closed when the session ends; detach must be called once the reader is
// done and is safe to call more than once.
func (s *Session) Attach(ctx context.Context) (<-chan []byte, func(), error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, nil, apperror.DeviceError("camera session closed", nil)
		}
		if s.state == StateOpened {
			ch, detach := s.addClient()
			s.mu.Unlock()
			return ch, detach, nil
		}

		// inny czytelnik juz otwiera urzadzenie albo poprzednia petla jeszcze go nie zamknela
		wait := s.opening
		if wait == nil && s.loopDone != nil && !isClosed(s.loopDone) {
			wait = s.loopDone
		}
		if wait != nil {
			s.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			}
		}

		opening := make(chan struct{})
		s.opening = opening
		s.mu.Unlock()

		device, err := s.open()

		s.mu.Lock()
		s.opening = nil
		close(opening)

		if err != nil {
			s.lastErr = err
			s.mu.Unlock()
			s.logger.Error("Failed to open camera: %v", err)
			return nil, nil, apperror.DeviceError("camera unavailable", err)
		}
		if s.closed || ctx.Err() != nil {
			s.mu.Unlock()
			device.Close()
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			return nil, nil, apperror.DeviceError("camera session closed", nil)
		}

		s.generation++
		s.state = StateOpened
		s.lastErr = nil
		s.stopCh = make(chan struct{})
		s.loopDone = make(chan struct{})
		go s.capture(device, s.generation, s.stopCh, s.loopDone)
		s.logger.Info("Camera opened")

		ch, detach := s.addClient()
		s.mu.Unlock()
		return ch, detach, nil
	}
}

// addClient must be called with s.mu held.
func (s *Session) addClient() (<-chan []byte, func()) {
	ch := make(chan []byte, ClientBuffer)
	s.clients[ch] = struct{}{}
	gen := s.generation

	var once sync.Once
	detach := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if gen != s.generation {
				return
			}
			if _, ok := s.clients[ch]; !ok {
				return
			}
			delete(s.clients, ch)
			close(ch)
			if len(s.clients) == 0 && s.state == StateOpened {
				s.logger.Info("Last camera reader detached")
				s.releaseLocked()
			}
		})
	}
	return ch, detach
}

// Release tears the session down. A no-op when the device is not open.
func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateOpened {
		s.releaseLocked()
	}
}

// Close releases the session, refuses further readers and waits until the
// device handle is closed.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	if s.state == StateOpened {
		s.releaseLocked()
	}
	done := s.loopDone
	s.mu.Unlock()

	if done != nil {
		<-done
	}
}

// LastError returns the error that ended or prevented the last session.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) releaseLocked() {
	s.state = StateReleased
	close(s.stopCh)
	for ch := range s.clients {
		close(ch)
	}
	s.clients = make(map[chan []byte]struct{})
	s.logger.Info("Camera released")
}

func (s *Session) capture(device Device, gen uint64, stop <-chan struct{}, done chan struct{}) {
	defer close(done)
	defer device.Close()

	for {
		select {
		case <-stop:
			return
		default:
		}

		frame, err := device.ReadFrame()
		if err != nil {
			s.fail(gen, err)
			return
		}
		s.broadcast(gen, frame)
	}
}

func (s *Session) fail(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.state != StateOpened {
		return
	}
	s.lastErr = apperror.DeviceError("camera read failed", err)
	s.logger.Error("Camera read failed, ending session: %v", err)
	s.releaseLocked()
}

func (s *Session) broadcast(gen uint64, frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return
	}
	for ch := range s.clients {
		select {
		case ch <- frame:
		default:
			// wolny klient, pomijamy klatke
		}
	}
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
