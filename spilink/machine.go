package spilink

import "upstreamspi/errcode"

// This file carries the transition table of spec.md §4.2, ported line for
// line from Upstream_TransmitPacket / Upstream_SPIProcess /
// Upstream_ReceivePacket / Upstream_CheckBeginPacketReception /
// Upstream_TxOkInterrupt in upstream_spi.c. Every exported entry point in
// api.go and completion.go holds Controller.region before calling into
// these *Locked methods.

// handleReadyEdgeLocked is the ready_edge transition, ported from
// Upstream_TxOkInterrupt.
func (c *Controller) handleReadyEdgeLocked() {
	if c.state >= stateError {
		return
	}
	switch c.state {
	case stateIdle:
		c.txReadyPending = true

	case stateTxSizeWait:
		c.beginTransmitSizeLocked()

	case stateTxPacketWait:
		c.beginTransmitBodyLocked()

	case stateRxSizeWait:
		c.getFreePacketLocked(c.beginReceiveSizeLocked)

	case stateRxPacketWait:
		c.beginReceiveBodyLocked()

	default:
		c.freak("ready_edge:bad_state", errcode.UnknownState)
	}
}

// transmitLocked is submit_tx, ported from Upstream_TransmitPacket.
func (c *Controller) transmitLocked(p *Packet) error {
	if c.state >= stateError {
		return errcode.LinkError
	}
	if !c.pool.isSlot(p) {
		c.freak("transmit_packet:not_pool_slot", errcode.PoolMisuse)
		return errcode.PoolMisuse
	}
	if !p.IsBusy() || p.lengthWords < c.cfg.LenMin || p.lengthWords > c.cfg.LenMax {
		c.freak("transmit_packet:invalid_packet", errcode.InvalidParams)
		return errcode.InvalidParams
	}
	if c.nextTx != nil {
		c.freak("transmit_packet:next_tx_full", errcode.Busy)
		return errcode.Busy
	}

	switch {
	case isTxState(c.state):
		c.nextTx = p

	case c.state == stateIdle:
		c.state = stateTxSizeWait
		c.current = p
		c.sentCommandClass = p.CommandClass()
		c.sentCommand = p.Command()

		// Downstream may have pulsed ready before we wanted to transmit;
		// in that case go ahead and start now.
		if c.txReadyPending {
			c.txReadyPending = false
			c.beginTransmitSizeLocked()
		}

	default:
		c.freak("transmit_packet:bad_state", errcode.UnknownState)
		return errcode.UnknownState
	}
	return nil
}

// receiveLocked is submit_rx, ported from Upstream_ReceivePacket.
func (c *Controller) receiveLocked(cb ReceiveFunc) error {
	if c.state >= stateError {
		return errcode.LinkError
	}
	if c.receiveWaiter != nil {
		c.freak("receive_packet:waiter_already_registered", errcode.Busy)
		return errcode.Busy
	}
	c.receiveWaiter = cb
	return c.checkBeginReceptionLocked()
}

// checkBeginReceptionLocked is internal-only, ported from
// Upstream_CheckBeginPacketReception. It is called both from receiveLocked
// and from the end of a TX sub-sequence when a receive is already armed.
func (c *Controller) checkBeginReceptionLocked() error {
	if c.state >= stateError {
		return errcode.LinkError
	}
	if c.state >= stateRxSizeWait {
		c.freak("check_begin_reception:bad_state", errcode.UnknownState)
		return errcode.UnknownState
	}
	if c.state == stateIdle {
		c.state = stateRxSizeWait
		if c.txReadyPending {
			c.txReadyPending = false
			c.getFreePacketLocked(c.beginReceiveSizeLocked)
		}
	}
	return nil
}

// doSPIProcessLocked is spi_complete, ported from Upstream_SPIProcess. It
// runs under Controller.region, entered by HandleTransferComplete and
// exited by Pump once this returns (see completion.go).
func (c *Controller) doSPIProcessLocked() {
	c.cs.Deassert()
	if c.state >= stateError {
		return
	}

	switch c.state {
	case stateTxSize:
		c.state = stateTxPacketWait
		if c.txReadyPending {
			c.txReadyPending = false
			c.beginTransmitBodyLocked()
		}

	case stateTxPacket:
		c.endTransmitPacketLocked()

	case stateRxSize:
		c.current.lengthWords = sizeWord(c.current.sizeWire[:])
		if c.current.lengthWords < c.cfg.LenMin || c.current.lengthWords > c.cfg.LenMax {
			c.freak("rx_size:length_out_of_range", errcode.InvalidPayload)
			return
		}
		c.state = stateRxPacketWait
		if c.txReadyPending {
			c.txReadyPending = false
			c.beginReceiveBodyLocked()
		}

	case stateRxPacket:
		c.endReceivePacketLocked()

	default:
		c.freak("spi_process:bad_state", errcode.UnknownState)
	}
}

// endTransmitPacketLocked is spec.md §4.2's "End of TX_PACKET": decide the
// next state first, release the just-transmitted packet last, so a
// released-packet callback never observes an inconsistent link state.
func (c *Controller) endTransmitPacketLocked() {
	if c.pool.waiter != nil && c.nextTx == nil {
		c.freak("end_transmit:waiter_without_next_tx", errcode.PoolMisuse)
		return
	}

	justSent := c.current

	if c.nextTx != nil {
		c.state = stateTxSizeWait
		c.current = c.nextTx
		c.nextTx = nil
		c.sentCommandClass = c.current.CommandClass()
		c.sentCommand = c.current.Command()
		if c.txReadyPending {
			c.txReadyPending = false
			c.beginTransmitSizeLocked()
		}
	} else {
		c.current = nil
		c.state = stateIdle
		if c.receiveWaiter != nil {
			c.checkBeginReceptionLocked()
		}
	}

	c.pool.releaseLocked(justSent)
}

// endReceivePacketLocked is spec.md §4.2's "End of RX_PACKET".
func (c *Controller) endReceivePacketLocked() {
	c.state = stateIdle
	if c.receiveWaiter == nil {
		c.freak("end_receive:no_waiter", errcode.PoolMisuse)
		return
	}

	pkt := c.current
	c.current = nil

	if pkt.CommandClass() == c.cfg.ErrorClass && pkt.Command() == c.cfg.DeviceDisconnected {
		// Protocol-level disconnect, not a link fault: release silently,
		// do not invoke the waiter, forward to the device-attach layer.
		c.pool.releaseLocked(pkt)
		c.receiveWaiter = nil
		if c.disconnectHandler != nil {
			c.disconnectHandler()
		}
		return
	}

	delivered := pkt
	if (pkt.CommandClass()&c.cfg.CommandClassMask) != (c.sentCommandClass&c.cfg.CommandClassMask) ||
		pkt.Command() != c.sentCommand {
		c.freak("end_receive:desync", errcode.Desync)
		c.pool.releaseLocked(pkt)
		delivered = nil // null sentinel: waiter is told this is an error
	}

	// Clear the waiter before invoking it: the callback may immediately
	// register a new receive.
	waiter := c.receiveWaiter
	c.receiveWaiter = nil
	waiter(delivered)
}
