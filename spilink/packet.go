package spilink

// busyState is the unexported ownership flag for a Packet. The type and the
// field are never exported; Packet.IsBusy is the only accessor.
type busyState uint8

const (
	packetFree busyState = iota
	packetBusy
)

// Packet is a fixed-layout buffer mirroring UpstreamPacketTypeDef in the
// original firmware. The wire-visible region (command_class onward) is
// modeled as a single contiguous frame so the identical slice can be handed
// to Transport.StartTransfer as both the TX and RX argument, preserving the
// original's intentional TX/RX buffer aliasing (spec.md §9, "Aliased DMA
// buffers").
type Packet struct {
	lengthWords uint16 // length_words: word count of frame, valid range [LenMin, LenMax]
	frame       []byte // byte 0 = command_class, byte 1 = command, bytes 2.. = payload
	sizeWire    [2]byte
	busy        busyState
}

// newPacket allocates a packet's frame once, sized from cfg.LenMax. Packets
// are never reallocated after NewController: this is this module's reading
// of spec.md's "no dynamic allocation" non-goal.
func newPacket(cfg Config) *Packet {
	return &Packet{frame: make([]byte, cfg.lenMaxBytes())}
}

// LengthWords returns the word count beginning at CommandClass.
func (p *Packet) LengthWords() uint16 { return p.lengthWords }

// SetLengthWords is exposed for upper layers filling a packet before
// TransmitPacket; the sequencer also sets it directly on the receive path.
func (p *Packet) SetLengthWords(n uint16) { p.lengthWords = n }

// CommandClass returns the packet's command-class tag.
func (p *Packet) CommandClass() uint8 { return p.frame[0] }

// SetCommandClass sets the command-class tag.
func (p *Packet) SetCommandClass(v uint8) { p.frame[0] = v }

// Command returns the packet's command tag.
func (p *Packet) Command() uint8 { return p.frame[1] }

// SetCommand sets the command tag.
func (p *Packet) SetCommand(v uint8) { p.frame[1] = v }

// Body returns the payload region following command_class/command, up to
// the packet's configured LenMax capacity. Callers fill this before
// TransmitPacket and read it after a receive delivery.
func (p *Packet) Body() []byte { return p.frame[2:] }

// Frame returns the whole wire-visible region (command_class onward). The
// sequencer passes this directly to Transport.StartTransfer.
func (p *Packet) Frame() []byte { return p.frame }

// IsBusy reports ownership state. Within this package transmitLocked uses it
// to reject a packet the caller does not hold; the tests use it as well.
func (p *Packet) IsBusy() bool { return p.busy == packetBusy }
