// Package upstreamspi adapts real hardware (a blocking SPI bus, a
// falling-edge GPIO ready line, a chip-select pin) to the three interfaces
// spilink.Controller depends on. Nothing here knows about the link protocol;
// it only turns tinygo.org/x/drivers-shaped hardware into spilink.Transport,
// spilink.ReadyLine and spilink.ChipSelect.
package upstreamspi

import "upstreamspi/spilink"

// SPI is the subset of tinygo.org/x/drivers (and machine.SPI) this package
// needs: a single blocking full-duplex transfer. It is intentionally
// narrower than drivers.SPI so a test fake needs to implement only one
// method.
type SPI interface {
	Tx(w, r []byte) error
}

// completer is the subset of *spilink.Controller this package calls back
// into; declared as an interface so tests can substitute a recorder instead
// of a live Controller.
type completer interface {
	HandleTransferComplete()
	HandleTransferError(err error)
}

// BlockingTransport adapts a blocking SPI.Tx call to spilink.Transport's
// non-blocking contract: StartTransfer must return promptly, with
// completion reported later. Ported in spirit from the teacher's
// gpioirq.Worker, which does the same thing for blocking GPIO/I2C work —
// run the blocking call off the calling goroutine, report the outcome
// through a callback rather than a return value.
type BlockingTransport struct {
	bus SPI
	ctl completer
}

var _ spilink.Transport = (*BlockingTransport)(nil)

// NewBlockingTransport wires bus to ctl. ctl is typically the
// *spilink.Controller that owns this Transport (set via Attach); the two
// are necessarily constructed together since each needs the other.
func NewBlockingTransport(bus SPI, ctl completer) *BlockingTransport {
	return &BlockingTransport{bus: bus, ctl: ctl}
}

// StartTransfer launches the transfer on its own goroutine and returns
// immediately. tx and rx may alias the same slice (spec.md §9); SPI.Tx is
// expected to tolerate that exactly as the hardware peripheral does.
func (t *BlockingTransport) StartTransfer(tx, rx []byte) error {
	go func() {
		if err := t.bus.Tx(tx, rx); err != nil {
			t.ctl.HandleTransferError(err)
			return
		}
		t.ctl.HandleTransferComplete()
	}()
	return nil
}
