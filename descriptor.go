package dfu

import "encoding/binary"

// FunctionalDescriptor is the parsed DFU functional descriptor, taken once
// from the USB extra bytes of the DFU interface, per spec.md §3/§4.1.
type FunctionalDescriptor struct {
	CanDownload            bool
	CanUpload              bool
	ManifestationTolerant  bool
	WillDetach             bool
	DetachTimeoutMs        uint16
	TransferSize           uint16
	DfuVersionMajor        uint8
	DfuVersionMinor        uint8
}

// dfuVersion10 is DFU 1.1; dfuVersion1a is the DfuSe 1.1a extension.
var (
	dfuVersion10 = [2]uint8{1, 0x10}
	dfuVersion1a = [2]uint8{1, 0x1a}
)

const functionalDescriptorType = 0x21
const functionalDescriptorLen = 9

// ParseFunctionalDescriptor parses a DFU functional descriptor from the raw
// extra bytes of a USB interface descriptor, per spec.md §4.1.
//
// It returns (_, false, nil) when the block is not a DFU functional
// descriptor at all (too short to carry a descriptor_type, or a
// descriptor_type other than 0x21) — this is not an error, it just means
// "no descriptor here". It returns a *Error with ErrCodeDataTooShort when
// the block is recognizably a DFU functional descriptor (descriptor_type
// 0x21) but is shorter than the fixed 9-byte layout.
func ParseFunctionalDescriptor(b []byte) (FunctionalDescriptor, bool, error) {
	if len(b) < 2 {
		return FunctionalDescriptor{}, false, nil
	}
	if b[1] != functionalDescriptorType {
		return FunctionalDescriptor{}, false, nil
	}
	if len(b) < functionalDescriptorLen {
		return FunctionalDescriptor{}, true, newErrorGotWant("ParseFunctionalDescriptor", ErrCodeDataTooShort, len(b), functionalDescriptorLen)
	}

	attributes := b[2]
	fd := FunctionalDescriptor{
		CanDownload:           attributes&(1<<0) != 0,
		CanUpload:             attributes&(1<<1) != 0,
		ManifestationTolerant: attributes&(1<<2) != 0,
		WillDetach:            attributes&(1<<3) != 0,
		DetachTimeoutMs:       binary.LittleEndian.Uint16(b[3:5]),
		TransferSize:          binary.LittleEndian.Uint16(b[5:7]),
		DfuVersionMinor:       b[7],
		DfuVersionMajor:       b[8],
	}
	return fd, true, nil
}

// IsDfuSe reports whether the descriptor's bcdDFUVersion is the DfuSe 1.1a
// extension rather than plain DFU 1.1.
func (fd FunctionalDescriptor) IsDfuSe() bool {
	return fd.DfuVersionMajor == dfuVersion1a[0] && fd.DfuVersionMinor == dfuVersion1a[1]
}

// IsDfu11 reports whether the descriptor's bcdDFUVersion is plain DFU 1.1.
func (fd FunctionalDescriptor) IsDfu11() bool {
	return fd.DfuVersionMajor == dfuVersion10[0] && fd.DfuVersionMinor == dfuVersion10[1]
}
