package spilink

import "upstreamspi/x/mathx"

// Config carries the link's tunables. In the original firmware these were
// compile-time constants; here they are loaded once at boot (see
// services/linksvc/config.go) so the same binary can be retargeted to a
// downstream variant with a different payload ceiling.
type Config struct {
	// LenMin is the minimum legal length_words, header-only. The original
	// hard-codes 2; exposed here only so a caller cannot configure
	// something smaller than the two header words.
	LenMin uint16

	// LenMax is the largest length_words a packet may carry, consistent
	// between upstream and downstream.
	LenMax uint16

	// CommandClassMask is the bitmask under which reply-class must equal
	// request-class.
	CommandClassMask uint8

	// ErrorClass/DeviceDisconnected are the reserved reply codes that mean
	// "downstream reports device disconnection", not a link fault.
	ErrorClass         uint8
	DeviceDisconnected uint8
}

// DefaultConfig mirrors the original firmware's compiled-in constants.
func DefaultConfig() Config {
	return Config{
		LenMin:             2,
		LenMax:             64,
		CommandClassMask:   0xFF,
		ErrorClass:         0xFF,
		DeviceDisconnected: 0xFF,
	}
}

// normalize enforces LenMin >= 2 and LenMax >= LenMin without mutating the
// caller's struct, matching spec.md's "LEN_MIN >= 2" requirement.
func (c Config) normalize() Config {
	c.LenMin = mathx.Max(c.LenMin, 2)
	c.LenMax = mathx.Max(c.LenMax, c.LenMin)
	return c
}

// lenMaxBytes is LEN_MAX_BYTES = 2 * LEN_MAX from spec.md §3.
func (c Config) lenMaxBytes() int { return int(c.LenMax) * 2 }
