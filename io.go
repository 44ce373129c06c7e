package dfu

import "context"

// IO is the adapter interface a synchronous driver shell requires, per
// spec.md §6's "external interfaces" table. Engine itself never depends
// on IO; only the driver shells in package driver do.
type IO interface {
	// FunctionalDescriptor returns the device's parsed DFU functional
	// descriptor.
	FunctionalDescriptor() FunctionalDescriptor
	// Protocol returns the device's parsed protocol (plain DFU or DfuSe).
	Protocol() Protocol
	// ReadControl executes an IN control transfer and fills buf, returning
	// the number of bytes actually read.
	ReadControl(t ControlTransfer, buf []byte) (int, error)
	// WriteControl executes an OUT control transfer.
	WriteControl(t ControlTransfer) (int, error)
	// USBReset issues a USB bus reset.
	USBReset() error
}

// AsyncIO extends IO with a context-aware Sleep, required by the
// task-oriented driver shell so that a poll-wait can be cancelled.
type AsyncIO interface {
	IO
	Sleep(ctx context.Context, ms uint32) error
}
