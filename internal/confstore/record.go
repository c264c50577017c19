package confstore

import "kbd-indicator/internal/types"

const (
	flagBit   = 0
	devsShift = 1
	devsMask  = 0x7
)

// Record is the persisted keyboard configuration.
type Record struct {
	Valid  bool
	Device types.DeviceID
}

// Default is what an unset or unreadable word turns into.
func Default() Record {
	return Record{Valid: true, Device: types.DeviceUSB}
}

// Pack encodes r into the storage word: bit 0 is the validity flag and
// bits 1..3 hold the device.
func (r Record) Pack() uint32 {
	var raw uint32
	if r.Valid {
		raw |= 1 << flagBit
	}
	raw |= (uint32(r.Device) & devsMask) << devsShift
	return raw
}

// Unpack decodes a storage word. Device values the module does not know
// decode as USB.
func Unpack(raw uint32) Record {
	r := Record{
		Valid:  raw&(1<<flagBit) != 0,
		Device: types.DeviceID((raw >> devsShift) & devsMask),
	}
	if !r.Device.Valid() {
		r.Device = types.DeviceUSB
	}
	return r
}
