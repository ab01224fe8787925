package upstreamspi

import "upstreamspi/spilink"

// Edge mirrors services/hal/internal/halcore.Edge; duplicated here (rather
// than imported) because halcore lives under services/hal/internal and is
// off-limits outside that subtree.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

// IRQPin is the subset of a GPIO pin with edge-interrupt support that this
// package needs, shaped after halcore.IRQPin.
type IRQPin interface {
	SetIRQ(edge Edge, handler func()) error
	ClearIRQ() error
}

// GPIOReadyLine adapts an IRQPin to spilink.ReadyLine. Unlike
// gpioirq.Worker's RegisterInput, this never debounces or coalesces edges:
// spec.md §6 requires every ready pulse to be seen, since ready edges carry
// link-framing meaning, not human-input noise.
type GPIOReadyLine struct {
	pin IRQPin
}

var _ spilink.ReadyLine = (*GPIOReadyLine)(nil)

func NewGPIOReadyLine(pin IRQPin) *GPIOReadyLine { return &GPIOReadyLine{pin: pin} }

// SetFallingEdgeHandler installs handler directly on the pin's falling-edge
// interrupt. Any previously installed handler is replaced by re-arming the
// IRQ, matching SetIRQ's documented "replaces any existing handler"
// semantics in the teacher's GPIO adaptor.
func (g *GPIOReadyLine) SetFallingEdgeHandler(handler func()) {
	_ = g.pin.ClearIRQ()
	_ = g.pin.SetIRQ(EdgeFalling, handler)
}
