package spilink

import (
	"sync"
	"sync/atomic"

	"upstreamspi/errcode"
)

// ReceiveFunc is the one-shot callback delivered a received packet, or nil
// (the "null sentinel" of spec.md §4.2/§4.5) on link fault.
type ReceiveFunc func(*Packet)

// DisconnectFunc is invoked when downstream reports
// (ERROR_CLASS, DEVICE_DISCONNECTED) — a protocol-level signal, not a link
// fault (spec.md §4.2 end-of-RX_PACKET rule 1).
type DisconnectFunc func()

// Controller is the single Link value spec.md §9 asks for: all link state
// lives here, constructed once and referenced by pointer, never scattered
// across package-level globals.
type Controller struct {
	cfg  Config
	pool *pool

	transport Transport
	ready     ReadyLine
	cs        ChipSelect
	freakout  FreakoutFunc

	disconnectHandler DisconnectFunc

	// Link fields, spec.md §3.
	state            linkState
	current          *Packet
	nextTx           *Packet
	txReadyPending   bool
	sentCommandClass uint8
	sentCommand      uint8
	receiveWaiter    ReceiveFunc

	// Scratch wire buffers reused across transfers, never reallocated.
	rxDiscard [2]byte // throwaway RX target for the TX-size phase
	txZero    [2]byte // always-zero dummy TX source for the RX-size phase

	// region/pending/notify realise the Completion Router (completion.go).
	region  sync.Mutex
	pending atomic.Bool
	notify  chan struct{}
}

// NewController constructs a Controller with its packet pool allocated and
// state at IDLE, but not yet wired to hardware. Call Attach once the
// Transport/ReadyLine/ChipSelect implementations exist — those
// implementations typically need Controller.HandleTransferComplete /
// HandleTransferError as constructor arguments, so construction is
// necessarily two-phase (mirrors Upstream_InitSPI's packet-then-peripheral
// ordering).
func NewController(cfg Config) *Controller {
	cfg = cfg.normalize()
	return &Controller{
		cfg:    cfg,
		pool:   newPool(cfg),
		state:  stateIdle,
		notify: make(chan struct{}, 1),
	}
}

// Attach wires the Controller to its hardware collaborators. freakout may
// be nil, in which case a default logging implementation is installed.
func (c *Controller) Attach(transport Transport, ready ReadyLine, cs ChipSelect, freakout FreakoutFunc) {
	c.transport = transport
	c.ready = ready
	c.cs = cs
	if freakout == nil {
		freakout = newDefaultFreakout(c)
	}
	c.freakout = freakout
	c.ready.SetFallingEdgeHandler(c.handleReadyEdge)
}

// SetDisconnectHandler registers the device-attach notification described
// in spec.md §4.2 end-of-RX_PACKET rule 1.
func (c *Controller) SetDisconnectHandler(h DisconnectFunc) { c.disconnectHandler = h }

// State reports the current link state. Exposed for diagnostics/tests; not
// part of the original's public API surface (§4.5 lists exactly five
// functions) but does not let a caller mutate or drive transitions.
func (c *Controller) State() string {
	c.region.Lock()
	defer c.region.Unlock()
	return c.state.String()
}

// freak marks the link ERROR (absorbing, I6) and invokes the freakout hook.
// Callers that must additionally notify an armed receive waiter with the
// null sentinel do so explicitly after calling freak, matching the
// original's call sites.
func (c *Controller) freak(tag string, err error) {
	c.state = stateError
	if c.freakout != nil {
		c.freakout(tag, err)
	}
}

// --- Public API (spec.md §4.5) ---

// GetFreePacket acquires a packet asynchronously: if one is free, cb runs
// synchronously now; otherwise cb runs later from whatever context releases
// a packet. Ported from Upstream_GetFreePacket.
func (c *Controller) GetFreePacket(cb FreePacketFunc) error {
	c.region.Lock()
	defer c.region.Unlock()
	return c.getFreePacketLocked(cb)
}

func (c *Controller) getFreePacketLocked(cb FreePacketFunc) error {
	if c.state >= stateError {
		return errcode.LinkError
	}
	if !c.pool.acquireAsyncLocked(cb) {
		c.freak("get_free_packet:waiter_already_registered", errcode.PoolMisuse)
		return errcode.PoolMisuse
	}
	return nil
}

// GetFreePacketImmediate returns a free packet right now or fails; if both
// slots are busy the link is faulted into ERROR. The internal receive path
// does not use it: it acquires through the asynchronous getFreePacketLocked.
// Ported from Upstream_GetFreePacketImmediately.
func (c *Controller) GetFreePacketImmediate() (*Packet, error) {
	c.region.Lock()
	defer c.region.Unlock()

	if c.state >= stateError {
		return nil, errcode.LinkError
	}
	p := c.pool.tryAcquireNowLocked()
	if p == nil {
		c.freak("get_free_packet_immediate:pool_exhausted", errcode.PoolMisuse)
		return nil, errcode.PoolMisuse
	}
	return p, nil
}

// ReleasePacket returns p to the pool, waking any pending waiter. Ported
// from Upstream_ReleasePacket.
func (c *Controller) ReleasePacket(p *Packet) error {
	c.region.Lock()
	defer c.region.Unlock()

	if c.state >= stateError {
		return errcode.LinkError
	}
	if !c.pool.releaseLocked(p) {
		c.freak("release_packet:not_pool_slot", errcode.PoolMisuse)
		return errcode.PoolMisuse
	}
	return nil
}

// TransmitPacket submits p for transmission: valid from IDLE (begins the TX
// sub-sequence) or from any TX state (queues into next_tx, which must be
// empty). Ported from Upstream_TransmitPacket.
func (c *Controller) TransmitPacket(p *Packet) error {
	c.region.Lock()
	defer c.region.Unlock()
	return c.transmitLocked(p)
}

// ReceivePacket registers cb to receive the next incoming packet: valid
// from IDLE or any TX state. Ported from Upstream_ReceivePacket.
func (c *Controller) ReceivePacket(cb ReceiveFunc) error {
	c.region.Lock()
	defer c.region.Unlock()
	return c.receiveLocked(cb)
}
