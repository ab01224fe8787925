package spilink

import (
	"upstreamspi/errcode"
	"upstreamspi/x/conv"
	"upstreamspi/x/fmtx"
	"upstreamspi/x/strconvx"
)

// FreakoutFunc is invoked at every internally detected anomaly (spec.md §7).
// tag identifies the call site; err carries the classification. The default
// implementation (see newDefaultFreakout) logs and lets the caller decide
// whether to set ERROR; Controller always sets ERROR itself on the call
// sites that are link faults, matching the original's escalate-by-default
// behaviour.
type FreakoutFunc func(tag string, err error)

// newDefaultFreakout returns a FreakoutFunc that only logs, used in the host
// self-test and in tests: matches SPEC_FULL.md §7 ("in the host self-test
// and in tests it logs and sets ERROR, never halts").
func newDefaultFreakout(c *Controller) FreakoutFunc {
	return func(tag string, err error) { logFreakout(c, tag, err) }
}

// NewDiagnosticFreakout returns the production FreakoutFunc SPEC_FULL.md §7
// describes: it logs exactly like the default, then pulses diag (asserted
// for the duration of the log line, then deasserted) so a scope or a second
// MCU watching that pin can catch the fault even with no UART attached.
// Intended for board wiring (cmd/pico-link-demo) where a spare GPIO is
// available to dedicate to diagnostics.
func NewDiagnosticFreakout(c *Controller, diag DiagPin) FreakoutFunc {
	return func(tag string, err error) {
		diag.Assert()
		logFreakout(c, tag, err)
		diag.Deassert()
	}
}

// logFreakout logs the tag, the error and a hex dump of the frame(s) in
// flight (if any) via fmtx, matching the teacher's host/mcu Printf split
// (x/fmtx), alloc-free hex formatting (x/conv) and alloc-free int
// formatting (x/strconvx). Shared by newDefaultFreakout and
// NewDiagnosticFreakout so the two only differ in whether a pin is toggled.
func logFreakout(c *Controller, tag string, err error) {
	var lenBuf [8]byte
	var dumpBuf [3 * maxLenBytes]byte

	lenDump := "<no frame>"
	frameDump := ""
	frameLen := "0"
	if c.current != nil {
		n := bodyByteLen(c.current.lengthWords) + 2
		if n > len(c.current.frame) {
			n = len(c.current.frame)
		}
		lenDump = string(conv.U32Hex(lenBuf[:], uint32(n)))
		frameDump = string(conv.BytesHex(dumpBuf[:], c.current.frame[:n]))
		frameLen = strconvx.Itoa(n)
	}

	fmtx.Printf("spilink: freakout tag=%s err=%v state=%s frame_bytes=%s frame_hex=%s frame=[%s]\n",
		tag, err, c.state, frameLen, lenDump, frameDump)
}

// maxLenBytes bounds the freakout's scratch dump buffer; it is larger than
// any realistic LenMax so the dump is never silently truncated for frames
// within spec.md's expected size range.
const maxLenBytes = 256

// errorFor turns an errcode.Code into an error value surfaced by the public
// API (spec.md §7's "failure return codes").
func errorFor(c errcode.Code) error { return c }
