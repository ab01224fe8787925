package upstreamspi

import (
	"errors"
	"testing"
	"time"
)

type fakeSPI struct {
	err    error
	lastW  []byte
	lastR  []byte
	called chan struct{}
}

func (f *fakeSPI) Tx(w, r []byte) error {
	f.lastW, f.lastR = w, r
	if f.called != nil {
		close(f.called)
	}
	return f.err
}

type fakeCompleter struct {
	completed chan struct{}
	errs      chan error
}

func newFakeCompleter() *fakeCompleter {
	return &fakeCompleter{completed: make(chan struct{}, 1), errs: make(chan error, 1)}
}

func (f *fakeCompleter) HandleTransferComplete()    { f.completed <- struct{}{} }
func (f *fakeCompleter) HandleTransferError(e error) { f.errs <- e }

func TestBlockingTransportReportsCompletion(t *testing.T) {
	spi := &fakeSPI{called: make(chan struct{})}
	ctl := newFakeCompleter()
	tr := NewBlockingTransport(spi, ctl)

	buf := make([]byte, 4)
	if err := tr.StartTransfer(buf, buf); err != nil {
		t.Fatalf("StartTransfer: %v", err)
	}

	select {
	case <-ctl.completed:
	case <-time.After(time.Second):
		t.Fatal("HandleTransferComplete was not called")
	}
}

func TestBlockingTransportReportsError(t *testing.T) {
	spi := &fakeSPI{err: errors.New("bus fault")}
	ctl := newFakeCompleter()
	tr := NewBlockingTransport(spi, ctl)

	buf := make([]byte, 4)
	_ = tr.StartTransfer(buf, buf)

	select {
	case err := <-ctl.errs:
		if err == nil {
			t.Fatal("expected a non-nil error")
		}
	case <-time.After(time.Second):
		t.Fatal("HandleTransferError was not called")
	}
}

func TestGPIOReadyLineInstallsFallingEdge(t *testing.T) {
	pin := &fakeIRQPin{}
	rl := NewGPIOReadyLine(pin)
	fired := false
	rl.SetFallingEdgeHandler(func() { fired = true })

	if pin.edge != EdgeFalling {
		t.Fatalf("expected falling-edge registration, got %v", pin.edge)
	}
	pin.handler()
	if !fired {
		t.Fatal("handler should have run")
	}
}

type fakeIRQPin struct {
	edge    Edge
	handler func()
}

func (f *fakeIRQPin) SetIRQ(edge Edge, handler func()) error {
	f.edge = edge
	f.handler = handler
	return nil
}
func (f *fakeIRQPin) ClearIRQ() error { f.edge = EdgeNone; f.handler = nil; return nil }

func TestGPIOChipSelectAssertDeassert(t *testing.T) {
	var level *bool
	pin := outputPinFunc(func(l bool) { level = &l })
	cs := NewGPIOChipSelect(pin)

	cs.Assert()
	if level == nil || *level != false {
		t.Fatal("Assert should drive the line low")
	}
	cs.Deassert()
	if level == nil || *level != true {
		t.Fatal("Deassert should drive the line high")
	}
}

type outputPinFunc func(bool)

func (f outputPinFunc) Set(level bool) { f(level) }
