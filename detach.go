package dfu

// Detach returns the DETACH command using the descriptor's own
// DetachTimeoutMs, per spec.md §4.7.
func (e *Engine) Detach() Command {
	return e.DetachWithTimeout(e.fd.DetachTimeoutMs)
}

// DetachWithTimeout returns the DETACH command with an explicit timeout,
// overriding the descriptor's DetachTimeoutMs. Devices that advertise
// WillDetach switch to the DFU interface on their own once the timeout
// expires; others require a USB reset. The driver shells' Detach sends
// only this command and does not issue that reset; their UsbReset does.
func (e *Engine) DetachWithTimeout(timeoutMs uint16) Command {
	return Command{Kind: CommandControlTransfer, Transfer: encodeDetach(timeoutMs)}
}
