package dfu

import "encoding/binary"

// Direction is the transfer direction of a ControlTransfer.
type Direction uint8

const (
	DirectionOut Direction = iota
	DirectionIn
)

// bmRequestType values for class-specific DFU requests, per spec.md §4.3.
const (
	requestTypeOut uint8 = 0b00100001
	requestTypeIn  uint8 = 0b10100001
)

// bRequest values, per spec.md §4.3.
const (
	bRequestDetach    uint8 = 0
	bRequestDnload    uint8 = 1
	bRequestGetStatus uint8 = 3
	bRequestClrStatus uint8 = 4
)

// statusReportLen is the fixed length of a GETSTATUS reply, per spec.md §4.3.
const statusReportLen = 6

// DfuSe DNLOAD sub-command opcodes, per spec.md §4.3.
const (
	dfuseOpSetAddress uint8 = 0x21
	dfuseOpErase      uint8 = 0x41
)

// ControlTransfer is a plain record describing a pending USB control
// transfer the adapter must execute, per spec.md §3/C4. For DirectionOut,
// Payload carries the bytes to write; for DirectionIn, Payload is nil and
// the adapter should read InLength bytes.
type ControlTransfer struct {
	Direction   Direction
	RequestType uint8
	Request     uint8
	Value       uint16
	Payload     []byte
	InLength    int
}

// encodeDetach builds the DETACH control transfer, per spec.md §4.3/§4.7.
func encodeDetach(timeoutMs uint16) ControlTransfer {
	return ControlTransfer{
		Direction:   DirectionOut,
		RequestType: requestTypeOut,
		Request:     bRequestDetach,
		Value:       timeoutMs,
		Payload:     nil,
	}
}

// encodeDnload builds a DNLOAD control transfer carrying data bytes at the
// given block number, per spec.md §4.3.
func encodeDnload(blockNum uint16, data []byte) ControlTransfer {
	return ControlTransfer{
		Direction:   DirectionOut,
		RequestType: requestTypeOut,
		Request:     bRequestDnload,
		Value:       blockNum,
		Payload:     data,
	}
}

// encodeGetStatus builds the GETSTATUS control transfer, per spec.md §4.3.
func encodeGetStatus() ControlTransfer {
	return ControlTransfer{
		Direction:   DirectionIn,
		RequestType: requestTypeIn,
		Request:     bRequestGetStatus,
		Value:       0,
		InLength:    statusReportLen,
	}
}

// encodeClrStatus builds the CLRSTATUS control transfer, per spec.md §4.3.
func encodeClrStatus() ControlTransfer {
	return ControlTransfer{
		Direction:   DirectionOut,
		RequestType: requestTypeOut,
		Request:     bRequestClrStatus,
		Value:       0,
		Payload:     nil,
	}
}

// encodeErase builds the 5-byte DfuSe ERASE sub-command payload, sent as a
// DNLOAD with block_num=0, per spec.md §4.3. pageAddress is the start of
// the page being marked for erase.
func encodeErase(pageAddress uint32) ControlTransfer {
	payload := make([]byte, 5)
	payload[0] = dfuseOpErase
	binary.LittleEndian.PutUint32(payload[1:], pageAddress)
	return encodeDnload(0, payload)
}

// encodeSetAddress builds the 5-byte DfuSe SET_ADDRESS sub-command payload,
// sent as a DNLOAD with block_num=0, per spec.md §4.3.
func encodeSetAddress(address uint32) ControlTransfer {
	payload := make([]byte, 5)
	payload[0] = dfuseOpSetAddress
	binary.LittleEndian.PutUint32(payload[1:], address)
	return encodeDnload(0, payload)
}
