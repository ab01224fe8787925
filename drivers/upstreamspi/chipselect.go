package upstreamspi

import "upstreamspi/spilink"

// OutputPin is the subset of a GPIO output pin this package needs, shaped
// after halcore.GPIOPin.
type OutputPin interface {
	Set(level bool)
}

// GPIOChipSelect adapts a software-driven, active-low NSS pin to
// spilink.ChipSelect.
type GPIOChipSelect struct {
	pin OutputPin
}

var _ spilink.ChipSelect = (*GPIOChipSelect)(nil)

func NewGPIOChipSelect(pin OutputPin) *GPIOChipSelect { return &GPIOChipSelect{pin: pin} }

// Assert pulls the line low (active).
func (g *GPIOChipSelect) Assert() { g.pin.Set(false) }

// Deassert releases the line high (inactive).
func (g *GPIOChipSelect) Deassert() { g.pin.Set(true) }
