package linksvc

// Embedded link tunables, compiled in rather than read from a filesystem —
// the firmware target this is wired to has none. Populate at build time
// (code generation) or by hand during development, the same division of
// labour the teacher's services/config/defaultconfigs.go describes.
//
// Key: device ID (the same "pico" identifier the teacher's embedded config
// used). Val: raw JSON bytes for that device's link tunables.
var embeddedLinkConfigs = map[string][]byte{
	"pico": []byte(`{
  "len_max": 64,
  "command_class_mask": 255,
  "error_class": 255,
  "device_disconnected": 254,
  "baud_hz": 1000000
}`),
}
