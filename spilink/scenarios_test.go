package spilink

import "testing"

// Scenario 1: TX-only round trip (spec.md §8.1).
func TestScenarioTxOnlyRoundTrip(t *testing.T) {
	c, tr, ready, cs, tags := newTestController()

	p, err := c.GetFreePacketImmediate()
	if err != nil {
		t.Fatalf("GetFreePacketImmediate: %v", err)
	}
	p.SetLengthWords(4)
	p.SetCommandClass(0x10)
	p.SetCommand(0x01)

	if err := c.TransmitPacket(p); err != nil {
		t.Fatalf("TransmitPacket: %v", err)
	}
	if c.state != stateTxSizeWait {
		t.Fatalf("expected TX_SIZE_WAIT, got %s", c.state)
	}

	ready.fire()
	if c.state != stateTxSize {
		t.Fatalf("expected TX_SIZE, got %s", c.state)
	}
	if !cs.asserted {
		t.Fatal("chip select should be asserted during the size phase")
	}
	if tr.startCount != 1 {
		t.Fatalf("expected one transfer started, got %d", tr.startCount)
	}

	complete(c)
	if c.state != stateTxPacketWait {
		t.Fatalf("expected TX_PACKET_WAIT, got %s", c.state)
	}

	ready.fire()
	if c.state != stateTxPacket {
		t.Fatalf("expected TX_PACKET, got %s", c.state)
	}
	if tr.lastTx == nil || &tr.lastTx[0] != &tr.lastRx[0] {
		t.Fatal("body phase must alias TX and RX buffers (spec.md §9)")
	}

	complete(c)
	if c.state != stateIdle {
		t.Fatalf("expected IDLE, got %s", c.state)
	}
	if p.IsBusy() {
		t.Fatal("packet should be FREE again after the round trip")
	}
	if len(*tags) != 0 {
		t.Fatalf("unexpected freakouts: %v", *tags)
	}
}

// Scenario 2: ready-before-submit (spec.md §8.2).
func TestScenarioReadyBeforeSubmit(t *testing.T) {
	c, tr, ready, _, _ := newTestController()

	ready.fire() // IDLE + ready_edge => tx_ready_pending = true
	if !c.txReadyPending {
		t.Fatal("expected tx_ready_pending to be set")
	}

	p, _ := c.GetFreePacketImmediate()
	p.SetLengthWords(2)
	if err := c.TransmitPacket(p); err != nil {
		t.Fatalf("TransmitPacket: %v", err)
	}

	// The pending edge should have been consumed immediately: no further
	// edge needed to begin the size phase.
	if c.state != stateTxSize {
		t.Fatalf("expected immediate TX_SIZE, got %s", c.state)
	}
	if tr.startCount != 1 {
		t.Fatalf("expected exactly one transfer, got %d", tr.startCount)
	}
	if c.txReadyPending {
		t.Fatal("tx_ready_pending should have been consumed")
	}
}

// Scenario 3: back-to-back TX queue (spec.md §8.3).
func TestScenarioBackToBackTxQueue(t *testing.T) {
	c, _, ready, _, _ := newTestController()

	p, _ := c.GetFreePacketImmediate()
	p.SetLengthWords(2)
	c.TransmitPacket(p)
	ready.fire() // -> TX_SIZE
	complete(c)  // -> TX_PACKET_WAIT
	ready.fire() // -> TX_PACKET

	q, _ := c.GetFreePacketImmediate()
	q.SetLengthWords(2)
	if err := c.TransmitPacket(q); err != nil {
		t.Fatalf("queuing TransmitPacket(q) during TX_PACKET should succeed: %v", err)
	}
	if c.nextTx != q {
		t.Fatal("q should be queued into next_tx")
	}

	complete(c) // spi_complete of p: release p, q begins TX_SIZE_WAIT
	if p.IsBusy() {
		t.Fatal("p should have been released")
	}
	if c.current != q {
		t.Fatal("q should now be current")
	}
	if c.state != stateTxSizeWait {
		t.Fatalf("expected TX_SIZE_WAIT for q, got %s", c.state)
	}
	if c.nextTx != nil {
		t.Fatal("next_tx should be cleared")
	}
}

// Scenario 4: TX then RX reply, both the matching and mismatching paths
// (spec.md §8.4).
func TestScenarioTxThenRxReplyMatches(t *testing.T) {
	c, _, ready, _, tags := newTestController()

	p, _ := c.GetFreePacketImmediate()
	p.SetLengthWords(2)
	p.SetCommandClass(0x20)
	p.SetCommand(0x05)
	c.TransmitPacket(p)
	ready.fire()
	complete(c)
	ready.fire()
	complete(c) // TX round trip done, back to IDLE

	var delivered *Packet
	if err := c.ReceivePacket(func(pkt *Packet) { delivered = pkt }); err != nil {
		t.Fatalf("ReceivePacket: %v", err)
	}
	if c.state != stateRxSizeWait {
		t.Fatalf("expected RX_SIZE_WAIT, got %s", c.state)
	}

	ready.fire() // acquires a free packet, begins RX_SIZE
	if c.state != stateRxSize {
		t.Fatalf("expected RX_SIZE, got %s", c.state)
	}

	// Simulate downstream depositing a matching reply length, then
	// completing the size phase.
	putSizeWord(c.current.sizeWire[:], 3)
	complete(c)
	if c.state != stateRxPacketWait {
		t.Fatalf("expected RX_PACKET_WAIT, got %s", c.state)
	}

	ready.fire() // begins RX_PACKET
	if c.state != stateRxPacket {
		t.Fatalf("expected RX_PACKET, got %s", c.state)
	}

	// Simulate downstream depositing a matching reply body into the
	// aliased frame buffer before completion.
	c.current.SetCommandClass(0x20)
	c.current.SetCommand(0x05)
	complete(c)

	if c.state != stateIdle {
		t.Fatalf("expected IDLE, got %s", c.state)
	}
	if delivered == nil {
		t.Fatal("waiter should have been invoked with the received packet")
	}
	if delivered.CommandClass() != 0x20 || delivered.Command() != 0x05 {
		t.Fatal("delivered packet should carry the reply's command class/command")
	}
	if len(*tags) != 0 {
		t.Fatalf("unexpected freakouts: %v", *tags)
	}
}

func TestScenarioTxThenRxReplyMismatchDesyncs(t *testing.T) {
	c, _, ready, _, tags := newTestController()

	p, _ := c.GetFreePacketImmediate()
	p.SetLengthWords(2)
	p.SetCommandClass(0x20)
	p.SetCommand(0x05)
	c.TransmitPacket(p)
	ready.fire()
	complete(c)
	ready.fire()
	complete(c)

	var delivered *Packet
	gotCallback := false
	c.ReceivePacket(func(pkt *Packet) { delivered = pkt; gotCallback = true })
	ready.fire()
	putSizeWord(c.current.sizeWire[:], 2)
	complete(c)
	ready.fire()
	c.current.SetCommandClass(0x99) // mismatched reply
	c.current.SetCommand(0x05)
	complete(c)

	if !gotCallback {
		t.Fatal("waiter should be invoked even on mismatch")
	}
	if delivered != nil {
		t.Fatal("mismatch must deliver the null sentinel")
	}
	if c.state != stateError {
		t.Fatalf("mismatch must desync the link into ERROR, got %s", c.state)
	}
	found := false
	for _, tag := range *tags {
		if tag == "end_receive:desync" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a desync freakout, got %v", *tags)
	}
}

// Scenario 5: disconnect (spec.md §8.5).
func TestScenarioDisconnect(t *testing.T) {
	c, _, ready, _, tags := newTestController()
	c.cfg.ErrorClass = 0xFF
	c.cfg.DeviceDisconnected = 0xFE

	disconnected := false
	c.SetDisconnectHandler(func() { disconnected = true })

	gotCallback := false
	c.ReceivePacket(func(*Packet) { gotCallback = true })
	ready.fire()
	putSizeWord(c.current.sizeWire[:], 2)
	complete(c)
	ready.fire()
	c.current.SetCommandClass(0xFF)
	c.current.SetCommand(0xFE)
	pkt := c.current
	complete(c)

	if gotCallback {
		t.Fatal("waiter must NOT be invoked on disconnect")
	}
	if !disconnected {
		t.Fatal("device-attach disconnect handler should have fired")
	}
	if c.state != stateIdle {
		t.Fatalf("disconnect is not a link fault; expected IDLE, got %s", c.state)
	}
	if pkt.IsBusy() {
		t.Fatal("disconnect packet should have been released")
	}
	if len(*tags) != 0 {
		t.Fatalf("disconnect must not freak out: %v", *tags)
	}
}

// Scenario 6: CRC error mid-transfer (spec.md §8.6).
func TestScenarioCRCErrorMidTransfer(t *testing.T) {
	c, _, ready, _, tags := newTestController()

	calls := 0
	var lastDelivered *Packet
	c.ReceivePacket(func(pkt *Packet) { calls++; lastDelivered = pkt })
	ready.fire()
	putSizeWord(c.current.sizeWire[:], 2)
	complete(c)
	ready.fire() // now in RX_PACKET, body transfer in flight

	c.HandleTransferError(errorFor("simulated_crc_fault"))

	if c.state != stateError {
		t.Fatalf("expected ERROR after spi_error, got %s", c.state)
	}
	if calls != 1 {
		t.Fatalf("receive waiter should be invoked exactly once, got %d calls", calls)
	}
	if lastDelivered != nil {
		t.Fatal("receive waiter must be invoked with the null sentinel")
	}

	// Subsequent API calls all return failure.
	if err := c.TransmitPacket(nil); err == nil {
		t.Fatal("calls in ERROR must fail")
	}
	if err := c.ReceivePacket(func(*Packet) {}); err == nil {
		t.Fatal("calls in ERROR must fail")
	}
	if _, err := c.GetFreePacketImmediate(); err == nil {
		t.Fatal("calls in ERROR must fail")
	}

	// A second spi_error must not invoke the waiter again (already cleared).
	c.HandleTransferError(errorFor("second_fault"))
	if calls != 1 {
		t.Fatalf("waiter must not be invoked twice, got %d calls", calls)
	}
	_ = tags
}
