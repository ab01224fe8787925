// Package linksvc is the ambient wiring layer around spilink.Controller:
// the main-loop pump, bus-topic republishing and request/reply surface,
// directly modeled on services/hal/hal.go's Run/service/loop shape.
package linksvc

import (
	"context"
	"time"

	"upstreamspi/bus"
	"upstreamspi/errcode"
	"upstreamspi/spilink"
	"upstreamspi/x/timex"
)

// Run constructs a spilink.Controller from cfg, attaches it to the given
// hardware collaborators, and runs the service loop until ctx is done. It
// is the Go analogue of calling Upstream_InitSPI once at boot and then
// Upstream_SPIProcess_InterruptSafe() from every iteration of main()'s
// loop.
//
// diag is the diagnostic pin SPEC_FULL.md §7 describes the production
// wiring toggling on every freakout; pass nil (the host self-test case) to
// get the logging-only default instead.
func Run(ctx context.Context, conn *bus.Connection, transport spilink.Transport, ready spilink.ReadyLine, cs spilink.ChipSelect, diag spilink.DiagPin, cfg Config) *spilink.Controller {
	ctl := spilink.NewController(cfg.toSpilink())

	var freakout spilink.FreakoutFunc
	if diag != nil {
		freakout = spilink.NewDiagnosticFreakout(ctl, diag)
	}
	ctl.Attach(transport, ready, cs, freakout)

	svc := &service{
		conn: conn,
		ctl:  ctl,
	}
	ctl.SetDisconnectHandler(svc.onDisconnect)

	go svc.loop(ctx)
	return ctl
}

type service struct {
	conn *bus.Connection
	ctl  *spilink.Controller
}

// loop is the service's single goroutine: it drains the controller's wake
// channel into Pump, republishes state, and answers the tx/rx RPC surface.
// Grounded on services/hal/hal.go's (*service).loop select statement.
func (s *service) loop(ctx context.Context) {
	submitSub := s.conn.Subscribe(bus.Topic{"link", "cap", "tx", "submit"})
	registerSub := s.conn.Subscribe(bus.Topic{"link", "cap", "rx", "register"})
	defer s.conn.Unsubscribe(submitSub)
	defer s.conn.Unsubscribe(registerSub)

	s.publishState()

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-s.ctl.Notify():
			s.ctl.Pump()
			s.publishState()

		case <-ticker.C:
			// Pump is cheap to call spuriously (it no-ops without a
			// pending completion); this ticker is a safety net in case a
			// Notify send raced a full buffer and was dropped.
			s.ctl.Pump()

		case msg := <-submitSub.Channel():
			s.handleSubmit(msg)

		case msg := <-registerSub.Channel():
			s.handleRegister(msg)
		}
	}
}

func (s *service) handleSubmit(msg *bus.Message) {
	req, ok := msg.Payload.(map[string]any)
	if !ok {
		s.conn.Reply(msg, map[string]any{"ok": false, "error": errcode.InvalidParams}, false)
		return
	}

	// GetFreePacket (not the Immediate variant) runs its callback now if a
	// slot is free, or later once one is released; either way this RPC
	// completes without forcing the link into ERROR merely because both
	// packets happen to be busy right now. The callback runs under
	// Controller.region (it may be invoked synchronously from inside
	// GetFreePacket itself), so TransmitPacket — which takes that same
	// lock — must happen on its own goroutine rather than inline, or a
	// synchronous invocation would deadlock on the non-reentrant mutex.
	err := s.ctl.GetFreePacket(func(p *spilink.Packet) {
		fillPacketFromRequest(p, req)
		go func() {
			if err := s.ctl.TransmitPacket(p); err != nil {
				s.conn.Reply(msg, map[string]any{"ok": false, "error": errcode.Of(err)}, false)
				return
			}
			s.conn.Reply(msg, map[string]any{"ok": true}, false)
		}()
	})
	if err != nil {
		s.conn.Reply(msg, map[string]any{"ok": false, "error": errcode.Of(err)}, false)
	}
}

func (s *service) handleRegister(msg *bus.Message) {
	replyTo := msg.ReplyTo
	err := s.ctl.ReceivePacket(func(p *spilink.Packet) {
		if len(replyTo) == 0 {
			return
		}
		if p == nil {
			s.conn.Publish(&bus.Message{Topic: replyTo, Payload: map[string]any{"ok": false, "error": errcode.LinkError}})
			return
		}
		s.conn.Publish(&bus.Message{Topic: replyTo, Payload: packetToReply(p)})
	})
	if err != nil {
		s.conn.Reply(msg, map[string]any{"ok": false, "error": errcode.Of(err)}, false)
	}
}

func (s *service) onDisconnect() {
	s.conn.Publish(s.conn.NewMessage(
		bus.Topic{"link", "event", "disconnected"},
		map[string]any{"ts_ms": timex.NowMs()},
		false,
	))
}

// publishState republishes the controller's state as a retained message,
// matching hal/state's "retained level/status" shape.
func (s *service) publishState() {
	s.conn.Publish(s.conn.NewMessage(
		bus.Topic{"link", "state"},
		map[string]any{"state": s.ctl.State(), "ts_ms": timex.NowMs()},
		true,
	))
}

func fillPacketFromRequest(p *spilink.Packet, req map[string]any) {
	if v, ok := req["command_class"].(float64); ok {
		p.SetCommandClass(uint8(v))
	}
	if v, ok := req["command"].(float64); ok {
		p.SetCommand(uint8(v))
	}
	body, _ := req["body"].(string)
	n := copy(p.Body(), []byte(body))
	p.SetLengthWords(uint16((n + 2 + 1) / 2)) // +2 header bytes, round up to whole words
}

func packetToReply(p *spilink.Packet) map[string]any {
	return map[string]any{
		"ok":            true,
		"command_class": p.CommandClass(),
		"command":       p.Command(),
		"body":          string(p.Body()[:bodyLen(p)]),
	}
}

func bodyLen(p *spilink.Packet) int {
	n := int(p.LengthWords())*2 - 2
	if n < 0 {
		n = 0
	}
	if n > len(p.Body()) {
		n = len(p.Body())
	}
	return n
}
