package spilink

// Transport is the out-of-scope SPI peripheral driver (spec.md §1): a
// non-blocking full-duplex transfer primitive. StartTransfer must return
// promptly; completion is reported later via Controller.HandleTransferComplete
// or Controller.HandleTransferError, which the concrete implementation (see
// drivers/upstreamspi) invokes from whatever goroutine it uses to learn the
// underlying bus finished.
//
// tx and rx may be the same slice (spec.md §9, "Aliased DMA buffers").
type Transport interface {
	StartTransfer(tx, rx []byte) error
}

// ReadyLine is the out-of-scope GPIO edge primitive (spec.md §1): downstream
// pulses this line low when it is ready for the next frame. handler is
// invoked from whatever context the implementation's edge interrupt runs in;
// Controller.handleReadyEdge is safe to call from there directly.
type ReadyLine interface {
	SetFallingEdgeHandler(handler func())
}

// ChipSelect is the out-of-scope NSS primitive (spec.md §1), software-driven
// by upstream, active low.
type ChipSelect interface {
	Assert()
	Deassert()
}

// DiagPin is the same Assert/Deassert shape as ChipSelect, reused for a
// single diagnostic output pin (SPEC_FULL.md §7) rather than the SPI NSS
// line. Kept as a distinct name from ChipSelect so call sites read as
// "the diagnostic pin", even though any ChipSelect implementation (e.g.
// drivers/upstreamspi.GPIOChipSelect on a spare GPIO) satisfies it.
type DiagPin = ChipSelect
