package linksvc

import (
	"errors"

	"upstreamspi/spilink"
	"upstreamspi/x/mathx"

	"github.com/andreyvit/tinyjson"
)

// Config is the link's decoded tunables, generalised from
// services/config/config.go's "per-device config" to "per-link config": the
// same embedded-JSON decode, one document instead of one per device. The
// decoded config is not published on the bus.
type Config struct {
	LenMax             uint16
	CommandClassMask   uint8
	ErrorClass         uint8
	DeviceDisconnected uint8
	BaudHz             uint32
}

// defaultBaudHz is used when the embedded document omits baud_hz, or is
// missing entirely.
const defaultBaudHz = 1_000_000

func defaultConfig() Config {
	d := spilink.DefaultConfig()
	return Config{
		LenMax:             d.LenMax,
		CommandClassMask:   d.CommandClassMask,
		ErrorClass:         d.ErrorClass,
		DeviceDisconnected: d.DeviceDisconnected,
		BaudHz:             defaultBaudHz,
	}
}

// toSpilink narrows Config down to the fields spilink.Controller actually
// needs; LenMin is fixed at the protocol minimum (spec.md: "LEN_MIN >= 2" is
// not link-tunable the way LenMax is, since a shorter floor than 2 header
// words is never legal on the wire).
func (c Config) toSpilink() spilink.Config {
	return spilink.Config{
		LenMin:             2,
		LenMax:             c.LenMax,
		CommandClassMask:   c.CommandClassMask,
		ErrorClass:         c.ErrorClass,
		DeviceDisconnected: c.DeviceDisconnected,
	}
}

// EmbeddedConfigLookup resolves a device ID to its embedded link-config
// JSON, following the teacher's services/config package's
// EmbeddedConfigLookup/embeddedConfigs pattern — scoped here to just the
// link's own tunables rather than a whole device's config tree, since
// linksvc is the only service left that needs one.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedLinkConfigs[device]
	return b, ok
}

// LoadBootConfig resolves device's embedded JSON via EmbeddedConfigLookup
// and decodes it with LoadConfig; an unrecognised device (no embedded
// document) falls back to defaultConfig() rather than failing boot. A
// document that is present but does not decode to a JSON object is
// returned as LoadConfig's error.
// This is the boot-time path SPEC_FULL.md §4.8/§6 describes: tunables
// "loaded at boot ... from embedded JSON" rather than compiled-in
// constants.
func LoadBootConfig(device string) (Config, error) {
	raw, ok := EmbeddedConfigLookup(device)
	if !ok {
		return defaultConfig(), nil
	}
	return LoadConfig(raw)
}

// LoadConfig decodes a LinkConfig (len_max, command_class_mask, error_class,
// device_disconnected, baud_hz) from an embedded JSON blob, following
// services/config/config.go's tinyjson.Raw / EnsureEOF usage exactly.
func LoadConfig(raw []byte) (Config, error) {
	cfg := defaultConfig()
	if len(raw) == 0 {
		return cfg, nil
	}

	r := tinyjson.Raw(raw)
	val := r.Value()
	r.EnsureEOF()

	m, ok := val.(map[string]any)
	if !ok {
		return cfg, errors.New("link config is not a JSON object")
	}

	if v, ok := asUint(m["len_max"]); ok {
		cfg.LenMax = uint16(mathx.Clamp(v, 2, 0xFFFF))
	}
	if v, ok := asUint(m["command_class_mask"]); ok {
		cfg.CommandClassMask = uint8(v)
	}
	if v, ok := asUint(m["error_class"]); ok {
		cfg.ErrorClass = uint8(v)
	}
	if v, ok := asUint(m["device_disconnected"]); ok {
		cfg.DeviceDisconnected = uint8(v)
	}
	if v, ok := asUint(m["baud_hz"]); ok {
		cfg.BaudHz = uint32(v)
	}

	return cfg, nil
}

func asUint(v any) (uint64, bool) {
	switch n := v.(type) {
	case float64:
		return uint64(n), true
	case int:
		return uint64(n), true
	case int64:
		return uint64(n), true
	default:
		return 0, false
	}
}
