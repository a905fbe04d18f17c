package camera

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gateway/internal/apperror"
	"gateway/internal/logger"
)

type fakeDevice struct {
	failAfter int32
	reads     atomic.Int32
	closed    atomic.Bool
}

func (d *fakeDevice) ReadFrame() ([]byte, error) {
	n := d.reads.Add(1)
	if d.failAfter > 0 && n > d.failAfter {
		return nil, errors.New("unplugged")
	}
	time.Sleep(time.Millisecond)
	return []byte{0xFF, 0xD8, byte(n), 0xFF, 0xD9}, nil
}

func (d *fakeDevice) Close() error {
	d.closed.Store(true)
	return nil
}

type fakeOpener struct {
	mu      sync.Mutex
	opened  []*fakeDevice
	fail    error
	factory func() *fakeDevice
}

func (o *fakeOpener) open() (Device, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail != nil {
		return nil, o.fail
	}
	// only one handle may be open at a time
	for _, d := range o.opened {
		if !d.closed.Load() {
			return nil, errors.New("device busy")
		}
	}
	d := &fakeDevice{}
	if o.factory != nil {
		d = o.factory()
	}
	o.opened = append(o.opened, d)
	return d, nil
}

func (o *fakeOpener) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.opened)
}

func waitFrame(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case frame, ok := <-ch:
		if !ok {
			t.Fatal("Stream closed unexpectedly")
		}
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for frame")
	}
	return nil
}

func waitClosed(t *testing.T, ch <-chan []byte) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("Timed out waiting for stream end")
		}
	}
}

func TestSession_SharedReaders(t *testing.T) {
	opener := &fakeOpener{}
	s := NewSession(opener.open, logger.NewNop())

	a, detachA, err := s.Attach(context.Background())
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	b, detachB, err := s.Attach(context.Background())
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	waitFrame(t, a)
	waitFrame(t, b)
	if opener.count() != 1 {
		t.Errorf("Expected one device open, got %d", opener.count())
	}
	if s.Readers() != 2 {
		t.Errorf("Expected 2 readers, got %d", s.Readers())
	}

	detachA()
	detachA()
	if s.State() != StateOpened {
		t.Errorf("Expected session to stay open with one reader, got %s", s.State())
	}

	detachB()
	if s.State() != StateReleased {
		t.Errorf("Expected released after last reader, got %s", s.State())
	}
	s.Close()
	if !opener.opened[0].closed.Load() {
		t.Error("Expected device closed")
	}
}

func TestSession_ReopenAfterRelease(t *testing.T) {
	opener := &fakeOpener{}
	s := NewSession(opener.open, logger.NewNop())

	ch, detach, err := s.Attach(context.Background())
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	waitFrame(t, ch)

	s.Release()
	waitClosed(t, ch)
	detach()

	// fake opener refuses a second handle while the first is open
	ch2, detach2, err := s.Attach(context.Background())
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer detach2()
	waitFrame(t, ch2)

	if opener.count() != 2 {
		t.Errorf("Expected 2 opens, got %d", opener.count())
	}
}

func TestSession_ReleaseWhenNotOpen(t *testing.T) {
	s := NewSession((&fakeOpener{}).open, logger.NewNop())
	s.Release()
	s.Close()
	if s.State() != StateUnopened {
		t.Errorf("Expected unopened, got %s", s.State())
	}
}

func TestSession_ReadFailureEndsAllReaders(t *testing.T) {
	opener := &fakeOpener{factory: func() *fakeDevice { return &fakeDevice{failAfter: 3} }}
	s := NewSession(opener.open, logger.NewNop())

	a, detachA, err := s.Attach(context.Background())
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	defer detachA()
	b, detachB, _ := s.Attach(context.Background())
	defer detachB()

	waitClosed(t, a)
	waitClosed(t, b)

	if s.State() != StateReleased {
		t.Errorf("Expected released, got %s", s.State())
	}
	if !apperror.Is(s.LastError(), apperror.KindDevice) {
		t.Errorf("Expected device error, got %v", s.LastError())
	}
}

func TestSession_OpenFailure(t *testing.T) {
	s := NewSession((&fakeOpener{fail: errors.New("no such device")}).open, logger.NewNop())

	_, _, err := s.Attach(context.Background())
	if !apperror.Is(err, apperror.KindDevice) {
		t.Fatalf("Expected device error, got %v", err)
	}
	if s.State() != StateUnopened {
		t.Errorf("Expected unopened, got %s", s.State())
	}
}

func TestSession_SlowReaderDoesNotBlock(t *testing.T) {
	opener := &fakeOpener{}
	s := NewSession(opener.open, logger.NewNop())
	defer s.Close()

	_, detachSlow, _ := s.Attach(context.Background())
	defer detachSlow()
	fast, detachFast, _ := s.Attach(context.Background())
	defer detachFast()

	// the slow reader never reads; the fast one must keep receiving
	for i := 0; i < ClientBuffer*3; i++ {
		waitFrame(t, fast)
	}
}

// gatedOpener blocks every open until release is closed.
type gatedOpener struct {
	fakeOpener
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedOpener() *gatedOpener {
	return &gatedOpener{started: make(chan struct{}), release: make(chan struct{})}
}

func (o *gatedOpener) open() (Device, error) {
	o.once.Do(func() { close(o.started) })
	<-o.release
	return o.fakeOpener.open()
}

func TestSession_SlowOpenDoesNotBlockQueries(t *testing.T) {
	opener := newGatedOpener()
	s := NewSession(opener.open, logger.NewNop())
	defer s.Close()

	type result struct {
		ch     <-chan []byte
		detach func()
		err    error
	}
	attached := make(chan result, 1)
	go func() {
		ch, detach, err := s.Attach(context.Background())
		attached <- result{ch, detach, err}
	}()
	<-opener.started

	queried := make(chan struct{})
	go func() {
		s.State()
		s.Readers()
		s.Release()
		close(queried)
	}()
	select {
	case <-queried:
	case <-time.After(time.Second):
		t.Fatal("State/Readers/Release blocked while the device was opening")
	}

	close(opener.release)
	res := <-attached
	if res.err != nil {
		t.Fatalf("Attach failed: %v", res.err)
	}
	defer res.detach()
	waitFrame(t, res.ch)
	if opener.count() != 1 {
		t.Errorf("Expected one device open, got %d", opener.count())
	}
}

func TestSession_CanceledAttachWhileOpening(t *testing.T) {
	opener := newGatedOpener()
	s := NewSession(opener.open, logger.NewNop())
	defer s.Close()

	first := make(chan error, 1)
	go func() {
		_, detach, err := s.Attach(context.Background())
		if err == nil {
			detach()
		}
		first <- err
	}()
	<-opener.started

	// a second reader waits for the open in progress and gives up with its context
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	if _, _, err := s.Attach(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Canceled attach did not return promptly")
	}

	close(opener.release)
	if err := <-first; err != nil {
		t.Errorf("First attach failed: %v", err)
	}
}

func TestSession_CanceledOpenClosesDevice(t *testing.T) {
	opener := newGatedOpener()
	s := NewSession(opener.open, logger.NewNop())
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := s.Attach(ctx)
		done <- err
	}()
	<-opener.started
	cancel()
	close(opener.release)

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if opener.count() != 1 || !opener.opened[0].closed.Load() {
		t.Error("Device opened for a canceled reader must be closed")
	}
	if s.State() == StateOpened {
		t.Error("Session must not stay open without readers")
	}
}

func TestSession_AttachAfterClose(t *testing.T) {
	s := NewSession((&fakeOpener{}).open, logger.NewNop())
	s.Close()

	if _, _, err := s.Attach(context.Background()); !apperror.Is(err, apperror.KindDevice) {
		t.Errorf("Expected device error after Close, got %v", err)
	}
}
