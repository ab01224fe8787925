package spilink

import (
	"testing"
	"time"
)

// B1: a ready-edge arriving exactly coincident with completion of the
// preceding phase must cause the next phase to begin with no deadlock. The
// asymmetric region mutex (completion.go) serialises this: the ready-edge
// handler blocks on region until Pump has processed the completion and
// unlocked, then proceeds correctly.
func TestBoundaryReadyEdgeBlocksUntilPumpExits(t *testing.T) {
	c, _, ready, _, _ := newTestController()
	p, _ := c.GetFreePacketImmediate()
	p.SetLengthWords(2)
	c.TransmitPacket(p)
	ready.fire() // TX_SIZE, transfer in flight

	c.HandleTransferComplete() // enters the link region; this goroutine holds it

	readyReturned := make(chan struct{})
	go func() {
		ready.fire() // must block until Pump exits the region
		close(readyReturned)
	}()

	select {
	case <-readyReturned:
		t.Fatal("ready edge must not proceed while the completion region is held")
	case <-time.After(20 * time.Millisecond):
		// still blocked, as required
	}

	c.Pump() // TX_SIZE -> TX_PACKET_WAIT, exits the region

	select {
	case <-readyReturned:
	case <-time.After(time.Second):
		t.Fatal("ready edge should proceed once Pump has exited the region")
	}

	if c.state != stateTxPacket {
		t.Fatalf("ready edge, once unblocked, should begin the body phase; got %s", c.state)
	}
}

// B2: a ready-edge arriving before any pending request sets tx_ready_pending
// and is consumed by the next request; a second edge while the flag is
// already set is idempotent.
func TestBoundaryReadyEdgeIdempotentWhilePending(t *testing.T) {
	c, _, ready, _, tags := newTestController()
	ready.fire()
	ready.fire()
	if !c.txReadyPending {
		t.Fatal("expected tx_ready_pending set")
	}
	if len(*tags) != 0 {
		t.Fatalf("a repeated ready edge must not freak out: %v", *tags)
	}

	p, _ := c.GetFreePacketImmediate()
	p.SetLengthWords(2)
	c.TransmitPacket(p)
	if c.txReadyPending {
		t.Fatal("tx_ready_pending should have been consumed exactly once")
	}
}

// B3: length_words received equal to LenMin-1 or LenMax+1 must trigger
// ERROR.
func TestBoundaryLengthOutOfRangeFaults(t *testing.T) {
	for _, length := range []uint16{1, 9} { // cfg: LenMin=2, LenMax=8
		c, _, ready, _, tags := newTestController()
		c.ReceivePacket(func(*Packet) {})
		ready.fire() // RX_SIZE, transfer in flight
		putSizeWord(c.current.sizeWire[:], length)
		complete(c)
		if c.state != stateError {
			t.Fatalf("length_words=%d should fault into ERROR, got %s", length, c.state)
		}
		if len(*tags) == 0 {
			t.Fatalf("expected a freakout for length_words=%d", length)
		}
	}
}
