//go:build rp2040 || rp2350

// cmd/pico-link-demo wires a real machine.SPI instance and three
// machine.Pins (ready line, chip select, diagnostic output) through
// drivers/upstreamspi into services/linksvc.Run, grounded on
// cmd/pico-hal-main/main.go's wiring shape. Link tunables, including the
// SPI baud rate, are loaded from embedded config at boot rather than
// hardcoded.
package main

import (
	"context"
	"time"

	"machine"

	"upstreamspi/bus"
	"upstreamspi/drivers/upstreamspi"
	"upstreamspi/services/linksvc"
	"upstreamspi/spilink"
)

// deferredCompleter forwards to whatever Controller is assigned to ctl
// after linksvc.Run constructs it: BlockingTransport needs a completer at
// construction time, but the Controller it reports to is only known once
// linksvc.Run returns it, mirroring spilink's own two-phase
// NewController/Attach split.
type deferredCompleter struct {
	ctl *spilink.Controller
}

func (d *deferredCompleter) HandleTransferComplete()       { d.ctl.HandleTransferComplete() }
func (d *deferredCompleter) HandleTransferError(err error) { d.ctl.HandleTransferError(err) }

// readyPin adapts machine.Pin to upstreamspi.IRQPin.
type readyPin struct{ p machine.Pin }

func (r readyPin) SetIRQ(edge upstreamspi.Edge, handler func()) error {
	var change machine.PinChange
	switch edge {
	case upstreamspi.EdgeRising:
		change = machine.PinRising
	case upstreamspi.EdgeFalling:
		change = machine.PinFalling
	default:
		change = machine.PinFalling | machine.PinRising
	}
	return r.p.SetInterrupt(change, func(machine.Pin) { handler() })
}

func (r readyPin) ClearIRQ() error {
	return r.p.SetInterrupt(0, nil)
}

// csPin adapts machine.Pin to upstreamspi.OutputPin.
type csPin struct{ p machine.Pin }

func (c csPin) Set(level bool) { c.p.Set(level) }

func main() {
	time.Sleep(2 * time.Second)
	println("[pico-link-demo] boot …")

	ctx := context.Background()

	cfg, err := linksvc.LoadBootConfig("pico")
	if err != nil {
		println("[pico-link-demo] link config load failed:", err.Error())
		return
	}

	spiBus := machine.SPI0
	if err := spiBus.Configure(machine.SPIConfig{
		Frequency: cfg.BaudHz,
		Mode:      0,
	}); err != nil {
		println("[pico-link-demo] SPI configure failed:", err.Error())
		return
	}

	ready := machine.Pin(16)
	ready.Configure(machine.PinConfig{Mode: machine.PinInputPullup})

	cs := machine.Pin(17)
	cs.Configure(machine.PinConfig{Mode: machine.PinOutput})
	cs.High()

	// diagPin is a spare GPIO dedicated to link diagnostics (SPEC_FULL.md
	// §7): the production freakout pulses it on every fault, so a scope
	// or a second MCU can catch a freakout with no UART attached.
	diagPin := machine.Pin(18)
	diagPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	diagPin.Low()

	b := bus.NewBus(8)
	conn := b.NewConnection("link")

	completer := &deferredCompleter{}
	transport := upstreamspi.NewBlockingTransport(spiBus, completer)
	readyLine := upstreamspi.NewGPIOReadyLine(readyPin{ready})
	chipSelect := upstreamspi.NewGPIOChipSelect(csPin{cs})
	diag := upstreamspi.NewGPIOChipSelect(csPin{diagPin})

	completer.ctl = linksvc.Run(ctx, conn, transport, readyLine, chipSelect, diag, cfg)

	println("[pico-link-demo] link service running")
	select {}
}
