package dfu

// State is one of the DFU 1.1 device states (USB DFU spec table A.1),
// carried as the raw byte code when it falls outside the known range.
type State struct {
	code  uint8
	known bool
}

// The 11 named DFU states, per spec.md §4.4.
var (
	StateAppIdle              = State{0, true}
	StateAppDetach            = State{1, true}
	StateDfuIdle              = State{2, true}
	StateDfuDnloadSync        = State{3, true}
	StateDfuDnbusy            = State{4, true}
	StateDfuDnloadIdle        = State{5, true}
	StateDfuManifestSync      = State{6, true}
	StateDfuManifest          = State{7, true}
	StateDfuManifestWaitReset = State{8, true}
	StateDfuUploadIdle        = State{9, true}
	StateDfuError             = State{10, true}
)

var stateNames = map[uint8]string{
	0:  "appIdle",
	1:  "appDetach",
	2:  "dfuIdle",
	3:  "dfuDnloadSync",
	4:  "dfuDnbusy",
	5:  "dfuDnloadIdle",
	6:  "dfuManifestSync",
	7:  "dfuManifest",
	8:  "dfuManifestWaitReset",
	9:  "dfuUploadIdle",
	10: "dfuError",
}

// StateFromByte maps a GETSTATUS bState byte to a State, falling back to
// an "Other" value for codes outside the 0-10 range the spec defines.
func StateFromByte(b uint8) State {
	if _, ok := stateNames[b]; ok {
		return State{b, true}
	}
	return State{b, false}
}

// Byte returns the wire-level state code.
func (s State) Byte() uint8 {
	return s.code
}

func (s State) String() string {
	if name, ok := stateNames[s.code]; ok {
		return name
	}
	return "other"
}

// StateError reports whether the state is DfuError — the only state that
// classifies as an error condition per spec.md §4.4.
func (s State) StateError() bool {
	return s.code == StateDfuError.code
}

// forStatus rewrites the two GETSTATUS-only synchronization states into the
// state the device has just transitioned into, per spec.md §4.5: some
// devices report these sync states literally instead of the state reached
// once the sync completes.
func (s State) forStatus() State {
	switch s.code {
	case StateDfuManifestSync.code:
		return StateDfuManifest
	case StateDfuDnloadSync.code:
		return StateDfuDnbusy
	default:
		return s
	}
}

// Status is one of the DFU 1.1 status codes (USB DFU spec table A.2).
type Status struct {
	code  uint8
	known bool
}

// The 16 named DFU statuses, per spec.md §4.4.
var (
	StatusOk              = Status{0x00, true}
	StatusErrTarget       = Status{0x01, true}
	StatusErrFile         = Status{0x02, true}
	StatusErrWrite        = Status{0x03, true}
	StatusErrErase        = Status{0x04, true}
	StatusErrCheckErased  = Status{0x05, true}
	StatusErrProg         = Status{0x06, true}
	StatusErrVerify       = Status{0x07, true}
	StatusErrAddress      = Status{0x08, true}
	StatusErrNotdone      = Status{0x09, true}
	StatusErrFirmware     = Status{0x0A, true}
	StatusErrVendor       = Status{0x0B, true}
	StatusErrUsbr         = Status{0x0C, true}
	StatusErrPor          = Status{0x0D, true}
	StatusErrUnknown      = Status{0x0E, true}
	StatusErrStalledpkt   = Status{0x0F, true}
)

var statusNames = map[uint8]string{
	0x00: "ok",
	0x01: "errTarget",
	0x02: "errFile",
	0x03: "errWrite",
	0x04: "errErase",
	0x05: "errCheckErased",
	0x06: "errProg",
	0x07: "errVerify",
	0x08: "errAddress",
	0x09: "errNotdone",
	0x0A: "errFirmware",
	0x0B: "errVendor",
	0x0C: "errUsbr",
	0x0D: "errPor",
	0x0E: "errUnknown",
	0x0F: "errStalledpkt",
}

// StatusFromByte maps a GETSTATUS bStatus byte to a Status, falling back to
// an "Other" value for codes outside the 0x00-0x0F range the spec defines.
func StatusFromByte(b uint8) Status {
	if _, ok := statusNames[b]; ok {
		return Status{b, true}
	}
	return Status{b, false}
}

// Byte returns the wire-level status code.
func (s Status) Byte() uint8 {
	return s.code
}

func (s Status) String() string {
	if name, ok := statusNames[s.code]; ok {
		return name
	}
	return "other"
}

// StatusError reports whether the status is neither Ok nor an unrecognized
// ("Other") code, per spec.md §4.4. The GETSTATUS parser never raises this
// automatically (spec.md §9 Open Question (b)); callers inspect it.
func (s Status) StatusError() bool {
	return s.known && s.code != StatusOk.code
}
