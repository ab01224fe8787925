package spilink

// Test doubles in the style of
// services/hal/internal/devices/gpio/adaptor_test.go's fakeIRQPin: minimal
// implementations of the three external interfaces, with just enough
// recorded state for assertions.

type fakeTransport struct {
	startCount int
	lastTx     []byte
	lastRx     []byte
}

func (f *fakeTransport) StartTransfer(tx, rx []byte) error {
	f.startCount++
	f.lastTx = tx
	f.lastRx = rx
	return nil
}

type fakeReadyLine struct {
	handler func()
}

func (f *fakeReadyLine) SetFallingEdgeHandler(h func()) { f.handler = h }

// fire simulates a downstream-ready falling edge.
func (f *fakeReadyLine) fire() {
	if f.handler != nil {
		f.handler()
	}
}

type fakeChipSelect struct {
	asserted      bool
	assertCount   int
	deassertCount int
}

func (f *fakeChipSelect) Assert() {
	f.asserted = true
	f.assertCount++
}

func (f *fakeChipSelect) Deassert() {
	f.asserted = false
	f.deassertCount++
}

// newTestController builds a Controller wired to fakes, with a freakout
// that records every tag it was called with instead of logging.
func newTestController() (c *Controller, tr *fakeTransport, ready *fakeReadyLine, cs *fakeChipSelect, tags *[]string) {
	cfg := DefaultConfig()
	cfg.LenMax = 8
	c = NewController(cfg)
	tr = &fakeTransport{}
	ready = &fakeReadyLine{}
	cs = &fakeChipSelect{}
	tags = &[]string{}
	c.Attach(tr, ready, cs, func(tag string, _ error) { *tags = append(*tags, tag) })
	return
}

// complete simulates the SPI peripheral finishing the in-flight transfer
// and the main loop draining it, in one call.
func complete(c *Controller) {
	c.HandleTransferComplete()
	c.Pump()
}
