package linksvc

import (
	"context"
	"testing"
	"time"

	"upstreamspi/bus"
	"upstreamspi/spilink"
)

type fakeTransport struct{}

func (fakeTransport) StartTransfer(tx, rx []byte) error { return nil }

type fakeReadyLine struct{ handler func() }

func (f *fakeReadyLine) SetFallingEdgeHandler(h func()) { f.handler = h }

type fakeChipSelect struct{}

func (fakeChipSelect) Assert()   {}
func (fakeChipSelect) Deassert() {}

func TestRunPublishesRetainedState(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("test")
	sub := conn.Subscribe(bus.Topic{"link", "state"})
	defer conn.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := defaultConfig()
	ctl := Run(ctx, conn, fakeTransport{}, &fakeReadyLine{}, fakeChipSelect{}, nil, cfg)
	_ = ctl

	select {
	case msg := <-sub.Channel():
		payload, ok := msg.Payload.(map[string]any)
		if !ok {
			t.Fatal("expected a map payload")
		}
		if payload["state"] != "IDLE" {
			t.Fatalf("expected initial state IDLE, got %v", payload["state"])
		}
	case <-time.After(time.Second):
		t.Fatal("expected an initial retained link/state publication")
	}
}

func TestLoadConfigDefaultsWhenEmpty(t *testing.T) {
	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LenMax != spilink.DefaultConfig().LenMax {
		t.Fatalf("expected default LenMax, got %d", cfg.LenMax)
	}
	if cfg.BaudHz != defaultBaudHz {
		t.Fatalf("expected default BaudHz, got %d", cfg.BaudHz)
	}
}

func TestLoadConfigDecodesFields(t *testing.T) {
	raw := []byte(`{"len_max": 32, "command_class_mask": 15, "error_class": 255, "device_disconnected": 254, "baud_hz": 2000000}`)
	cfg, err := LoadConfig(raw)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LenMax != 32 {
		t.Fatalf("expected len_max 32, got %d", cfg.LenMax)
	}
	if cfg.CommandClassMask != 15 {
		t.Fatalf("expected command_class_mask 15, got %d", cfg.CommandClassMask)
	}
	if cfg.ErrorClass != 255 || cfg.DeviceDisconnected != 254 {
		t.Fatalf("expected error_class/device_disconnected 255/254, got %d/%d", cfg.ErrorClass, cfg.DeviceDisconnected)
	}
	if cfg.BaudHz != 2_000_000 {
		t.Fatalf("expected baud_hz 2000000, got %d", cfg.BaudHz)
	}
}

func TestLoadBootConfigKnownDevice(t *testing.T) {
	cfg, err := LoadBootConfig("pico")
	if err != nil {
		t.Fatalf("LoadBootConfig: %v", err)
	}
	if cfg.LenMax != 64 {
		t.Fatalf("expected embedded len_max 64, got %d", cfg.LenMax)
	}
	if cfg.BaudHz != 1_000_000 {
		t.Fatalf("expected embedded baud_hz 1000000, got %d", cfg.BaudHz)
	}
}

func TestLoadBootConfigUnknownDeviceFallsBackToDefault(t *testing.T) {
	cfg, err := LoadBootConfig("no-such-device")
	if err != nil {
		t.Fatalf("LoadBootConfig: %v", err)
	}
	if cfg.LenMax != spilink.DefaultConfig().LenMax {
		t.Fatalf("expected default LenMax for unknown device, got %d", cfg.LenMax)
	}
}
