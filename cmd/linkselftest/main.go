// cmd/linkselftest is a host-buildable self-test: it wires an in-memory
// loopback Transport/ReadyLine pair (a fake downstream that completes every
// transfer after a short delay) to drive spilink.Controller through one TX
// round trip and prints the result, grounded on bus/cmd/selftest/main.go's
// host-runnable self-test shape. No RX is exercised.
package main

import (
	"context"
	"time"

	"upstreamspi/bus"
	"upstreamspi/services/linksvc"
	"upstreamspi/spilink"
	"upstreamspi/x/fmtx"
)

// loopbackDownstream plays the part of the downstream MCU: every transfer
// completes 2ms after it starts, and ready pulses are delivered only when
// main calls fireReady. It produces no reply data.
type loopbackDownstream struct {
	ctl        *spilink.Controller
	readyFired func()
}

func (d *loopbackDownstream) StartTransfer(tx, rx []byte) error {
	go func() {
		time.Sleep(2 * time.Millisecond)
		d.ctl.HandleTransferComplete()
	}()
	return nil
}

func (d *loopbackDownstream) SetFallingEdgeHandler(h func()) { d.readyFired = h }

func (d *loopbackDownstream) fireReady() {
	if d.readyFired != nil {
		d.readyFired()
	}
}

type nullCS struct{}

func (nullCS) Assert()   {}
func (nullCS) Deassert() {}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := bus.NewBus(8)
	conn := b.NewConnection("linkselftest")
	sub := conn.Subscribe(bus.Topic{"link", "state"})
	defer conn.Unsubscribe(sub)

	transport := &loopbackDownstream{}
	// No embedded config for a bare self-test run: LoadConfig(nil) falls
	// back to spilink's own defaults, exercising the same boot-config
	// decode path cmd/pico-link-demo uses with real embedded JSON.
	cfg, err := linksvc.LoadConfig(nil)
	if err != nil {
		fmtx.Printf("FAIL: LoadConfig: %v\n", err)
		return
	}
	ctl := linksvc.Run(ctx, conn, transport, transport, nullCS{}, nil, cfg)
	transport.ctl = ctl

	p, err := ctl.GetFreePacketImmediate()
	if err != nil {
		fmtx.Printf("FAIL: GetFreePacketImmediate: %v\n", err)
		return
	}
	p.SetCommandClass(0x10)
	p.SetCommand(0x01)
	p.SetLengthWords(2)

	if err := ctl.TransmitPacket(p); err != nil {
		fmtx.Printf("FAIL: TransmitPacket: %v\n", err)
		return
	}

	// Drive the two ready pulses a TX round trip needs, printing the next
	// queued link/state publication after each. Each pulse waits for the
	// phase before it to complete, since a ready edge during an in-flight
	// transfer is a link fault.
	transport.fireReady()
	drainState(sub, 50*time.Millisecond)
	for deadline := time.Now().Add(50 * time.Millisecond); ctl.State() != "TX_PACKET_WAIT" && time.Now().Before(deadline); {
		time.Sleep(time.Millisecond)
	}
	transport.fireReady()
	drainState(sub, 50*time.Millisecond)
	for deadline := time.Now().Add(50 * time.Millisecond); ctl.State() != "IDLE" && time.Now().Before(deadline); {
		time.Sleep(time.Millisecond)
	}

	fmtx.Printf("link state after TX round trip: %s\n", ctl.State())
}

func drainState(sub *bus.Subscription, timeout time.Duration) {
	select {
	case msg := <-sub.Channel():
		if payload, ok := msg.Payload.(map[string]any); ok {
			fmtx.Printf("link/state -> %v\n", payload["state"])
		}
	case <-time.After(timeout):
	}
}
