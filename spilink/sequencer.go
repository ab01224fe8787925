package spilink

import (
	"encoding/binary"

	"upstreamspi/errcode"
	"upstreamspi/x/mathx"
)

// Wire format is big-endian MSB-first (spec.md §6). These two functions are
// the only places that encode/decode the 16-bit size word, grounded on the
// small codec-helper shape of drivers/ltc4015/codec.go.

func putSizeWord(buf []byte, n uint16) { binary.BigEndian.PutUint16(buf, n) }
func sizeWord(buf []byte) uint16       { return binary.BigEndian.Uint16(buf) }

// bodyWords applies spec.md §4.3's "max(2, length_words)" floor used by both
// the TX-body and RX-body transfers.
func bodyWords(lengthWords uint16) uint16 { return mathx.Max(lengthWords, 2) }

// bodyByteLen is bodyWords expressed in bytes (2 bytes per 16-bit word).
func bodyByteLen(lengthWords uint16) int { return int(bodyWords(lengthWords)) * 2 }

// beginTransmitSizeLocked starts the TX-size phase: transmit
// current.length_words, receive into a throwaway word. Ported from
// Upstream_BeginTransmitPacketSize.
func (c *Controller) beginTransmitSizeLocked() {
	c.state = stateTxSize
	c.cs.Assert()
	putSizeWord(c.current.sizeWire[:], c.current.lengthWords)
	if err := c.transport.StartTransfer(c.current.sizeWire[:], c.rxDiscard[:]); err != nil {
		c.freak("begin_transmit_size:transport", err)
	}
}

// beginTransmitBodyLocked starts the TX-body phase: transmit from
// current.command_class onward for max(2, length_words) words; the receive
// buffer aliases the transmit buffer per spec.md §9 (the hardware requires
// RX even during TX). Ported from Upstream_BeginTransmitPacketBody.
func (c *Controller) beginTransmitBodyLocked() {
	c.state = stateTxPacket
	c.cs.Assert()
	buf := c.current.frame[:bodyByteLen(c.current.lengthWords)]
	if err := c.transport.StartTransfer(buf, buf); err != nil {
		c.freak("begin_transmit_body:transport", err)
	}
}

// beginReceiveSizeLocked starts the RX-size phase on a freshly acquired
// packet: transmit a zero word (so downstream recognises a dummy/receive
// request), receive into current.length_words, which is pre-zeroed before
// the transaction starts. Ported from Upstream_BeginReceivePacketSize; it is
// registered as the pool's FreePacketFunc so it runs once a slot is free,
// whether that happens synchronously or later.
func (c *Controller) beginReceiveSizeLocked(freePacket *Packet) {
	if c.state >= stateError {
		return
	}
	if c.state != stateRxSizeWait {
		c.freak("begin_receive_size:bad_state", errcode.UnknownState)
		return
	}
	c.state = stateRxSize
	c.current = freePacket
	c.current.lengthWords = 0
	c.cs.Assert()
	if err := c.transport.StartTransfer(c.txZero[:], c.current.sizeWire[:]); err != nil {
		c.freak("begin_receive_size:transport", err)
	}
}

// beginReceiveBodyLocked starts the RX-body phase: transmit from
// current.command_class (ignored by downstream), receive into the same
// region for max(2, length_words) words. Ported from
// Upstream_BeginReceivePacketBody.
func (c *Controller) beginReceiveBodyLocked() {
	c.state = stateRxPacket
	c.cs.Assert()
	buf := c.current.frame[:bodyByteLen(c.current.lengthWords)]
	if err := c.transport.StartTransfer(buf, buf); err != nil {
		c.freak("begin_receive_body:transport", err)
	}
}
