package spilink

// linkState mirrors InterfaceStateTypeDef from upstream_spi.c. States
// suffixed _WAIT mean "software is ready; awaiting the downstream-ready
// edge"; states without _WAIT mean "SPI transfer in progress, awaiting the
// completion callback". ERROR is absorbing: once reached, it is never left
// short of a fresh Controller (spec.md I6).
type linkState uint8

const (
	stateIdle linkState = iota
	stateTxSizeWait
	stateTxSize
	stateTxPacketWait
	stateTxPacket
	stateRxSizeWait
	stateRxSize
	stateRxPacketWait
	stateRxPacket
	stateError
)

func (s linkState) String() string {
	switch s {
	case stateIdle:
		return "IDLE"
	case stateTxSizeWait:
		return "TX_SIZE_WAIT"
	case stateTxSize:
		return "TX_SIZE"
	case stateTxPacketWait:
		return "TX_PACKET_WAIT"
	case stateTxPacket:
		return "TX_PACKET"
	case stateRxSizeWait:
		return "RX_SIZE_WAIT"
	case stateRxSize:
		return "RX_SIZE"
	case stateRxPacketWait:
		return "RX_PACKET_WAIT"
	case stateRxPacket:
		return "RX_PACKET"
	case stateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// isTxState reports whether s is one of the four TX sub-states, used both
// by TransmitPacket's queue-vs-reject decision and by invariant I4.
func isTxState(s linkState) bool {
	switch s {
	case stateTxSizeWait, stateTxSize, stateTxPacketWait, stateTxPacket:
		return true
	default:
		return false
	}
}

// isRxState reports whether s is one of the four RX sub-states.
func isRxState(s linkState) bool {
	switch s {
	case stateRxSizeWait, stateRxSize, stateRxPacketWait, stateRxPacket:
		return true
	default:
		return false
	}
}
