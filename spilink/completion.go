package spilink

// This file is the Completion Router (C4): the Go re-expression of the
// NVIC priority-floor handshake in HAL_SPI_TxRxCpltCallback /
// Upstream_SPIProcess_InterruptSafe / Upstream_SPIProcess. Controller.region
// is used asymmetrically:
//
//   - HandleTransferComplete locks region and returns without unlocking —
//     "entering the link region" on the way out of the completion callback,
//     exactly as the original raises the priority floor before returning
//     from HAL_SPI_TxRxCpltCallback.
//   - Pump checks the lock-free Controller.pending flag first; if a
//     completion is pending, it runs the spi_complete transition and then
//     unlocks region — "exiting the link region" — matching the original's
//     __set_BASEPRI(0) at the end of Upstream_SPIProcess_InterruptSafe.
//
// Every other entry point (public API calls, the ready-edge handler) takes
// region with an ordinary Lock/Unlock pair, modeling "same priority level,
// mutually exclusive with each other, masked while the completion path's
// floor is raised".

// HandleTransferComplete is called by the Transport implementation's own
// goroutine or interrupt path when a StartTransfer call finishes without
// error. It must return promptly: all protocol work is deferred to Pump.
func (c *Controller) HandleTransferComplete() {
	c.region.Lock() // enter link region; Pump exits it.
	c.pending.Store(true)
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// HandleTransferError is called by the Transport implementation when a
// transfer fails (CRC mismatch or any other peripheral error). Unlike a
// successful completion, an error is handled immediately and atomically:
// there is nothing left to defer once the link is headed for ERROR. Ported
// from HAL_SPI_ErrorCallback.
func (c *Controller) HandleTransferError(err error) {
	c.region.Lock()
	defer c.region.Unlock()

	if c.state >= stateError {
		return
	}
	c.freak("spi_error", err)

	if c.receiveWaiter != nil {
		w := c.receiveWaiter
		c.receiveWaiter = nil
		w(nil) // null sentinel: the callback is told this is an error
	}
}

// Pump drains a pending completion. Call it from a loop in the service that
// owns the Controller (services/linksvc); it is the Go analogue of calling
// Upstream_SPIProcess_InterruptSafe() from main(). Pump is cheap to call
// spuriously: the atomic check means an empty Pump does not touch the mutex
// at all.
func (c *Controller) Pump() {
	if !c.pending.Load() {
		return
	}
	c.pending.Store(false)
	c.doSPIProcessLocked()
	c.region.Unlock() // exit link region entered by HandleTransferComplete.
}

// Notify returns a channel that receives a value whenever a transfer
// completion is pending Pump's attention, so a service loop can block on it
// instead of busy-polling.
func (c *Controller) Notify() <-chan struct{} { return c.notify }

// handleReadyEdge is registered with the ReadyLine implementation during
// Attach. It is the ready_edge transition's lock-acquiring entry point.
func (c *Controller) handleReadyEdge() {
	c.region.Lock()
	defer c.region.Unlock()
	c.handleReadyEdgeLocked()
}
