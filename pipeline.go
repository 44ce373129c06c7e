package dfu

import "math"

// CommandKind classifies a Command the adapter must execute.
type CommandKind uint8

const (
	// CommandControlTransfer is a USB control transfer described by
	// Command.Transfer.
	CommandControlTransfer CommandKind = iota
	// CommandSleep asks the adapter to sleep for Command.SleepMs
	// milliseconds before the engine is advanced again (with a nil reply).
	CommandSleep
	// CommandUsbReset asks the adapter to issue a USB bus reset.
	CommandUsbReset
	// CommandBreak signals the pipeline has finished; no action is needed.
	CommandBreak
)

// Command is the single unit of work the engine hands back to its caller,
// per spec.md §3: "Commands (a USB control transfer to perform, or a
// sleep)". The engine never executes a Command itself.
type Command struct {
	Kind     CommandKind
	Transfer ControlTransfer
	SleepMs  uint32
}

// StepKind is the chunk-loop decision table's outcome, per spec.md §4.6.
type StepKind uint8

const (
	StepErase StepKind = iota
	StepSetAddress
	StepDownloadChunk
	StepUsbReset
	StepBreak
)

type prerollStage uint8

const (
	prerollAwaitFirstStatus prerollStage = iota
	prerollAwaitClearAck
	prerollAwaitSecondStatus
	prerollDone
)

// Engine is the sans-I/O download state machine. It never performs I/O: a
// caller drives it by executing the Command each method returns and
// feeding the reply bytes back in, per spec.md §3-§4.6. The zero value is
// not usable; construct one with NewEngine.
type Engine struct {
	fd    FunctionalDescriptor
	proto Protocol

	preroll prerollStage

	endPos    uint32
	copiedPos uint32
	erasedPos uint32
	layout    []uint32
	blockNum  uint16
	addrSet   bool
	eof       bool

	wait *WaitState
}

// NewEngine validates cfg and constructs an Engine ready to drive a single
// Download. TransferSize must be at least 1 (spec.md §4.1 invariant).
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.FunctionalDescriptor.TransferSize < 1 {
		return nil, newError("NewEngine", ErrCodeInvalidTransferSize)
	}
	return &Engine{fd: cfg.FunctionalDescriptor, proto: cfg.Protocol}, nil
}

// Download begins a transfer of length bytes and returns the first
// pre-roll Command (GETSTATUS), per spec.md §4.6 "Construction". Feed its
// reply to PrerollAdvance.
func (e *Engine) Download(length uint32) (Command, error) {
	var start uint32
	if e.proto.IsDfuSe() {
		start = e.proto.Address
	}
	end, ok := addU32Checked(start, length)
	if !ok {
		return Command{}, newError("Download", ErrCodeNoSpaceLeft)
	}

	e.endPos = end
	e.copiedPos = start
	e.erasedPos = start
	e.layout = append([]uint32(nil), e.proto.MemoryLayout...)
	e.addrSet = false
	e.eof = false
	e.wait = nil
	if e.proto.IsDfuSe() {
		e.blockNum = 2
	} else {
		e.blockNum = 0
	}
	e.preroll = prerollAwaitFirstStatus

	return Command{Kind: CommandControlTransfer, Transfer: encodeGetStatus()}, nil
}

// PrerollAdvance drives the GETSTATUS -> [CLRSTATUS] -> GETSTATUS pre-roll
// sequence of spec.md §4.6. reply is the bytes returned by the previous
// Command (ignored when that command carried no meaningful reply, i.e.
// CLRSTATUS's ack). done is true once the device has been confirmed
// DfuIdle and the caller should switch to NextStep.
func (e *Engine) PrerollAdvance(reply []byte) (cmd Command, done bool, err error) {
	switch e.preroll {
	case prerollAwaitFirstStatus:
		report, err := parseStatusReport(reply)
		if err != nil {
			return Command{}, false, err
		}
		if clr, ok := clearStatus(report); ok {
			e.preroll = prerollAwaitClearAck
			return Command{Kind: CommandControlTransfer, Transfer: clr}, false, nil
		}
		e.preroll = prerollAwaitSecondStatus
		return Command{Kind: CommandControlTransfer, Transfer: encodeGetStatus()}, false, nil

	case prerollAwaitClearAck:
		e.preroll = prerollAwaitSecondStatus
		return Command{Kind: CommandControlTransfer, Transfer: encodeGetStatus()}, false, nil

	case prerollAwaitSecondStatus:
		report, err := parseStatusReport(reply)
		if err != nil {
			return Command{}, false, err
		}
		if report.State.code != StateDfuIdle.code {
			return Command{}, false, &Error{
				Op:   "Download",
				Code: ErrCodeInvalidState,
				Got:  int(report.State.code),
				Want: int(StateDfuIdle.code),
			}
		}
		e.preroll = prerollDone
		return Command{}, true, nil

	default:
		return Command{}, true, nil
	}
}

// NextStep evaluates the chunk-loop decision table of spec.md §4.6 against
// the engine's current bookkeeping. It is side-effect free; call Erase,
// SetAddress, or WriteChunk to actually perform the chosen step.
func (e *Engine) NextStep() StepKind {
	if e.eof {
		if !e.fd.ManifestationTolerant && !e.fd.WillDetach {
			return StepUsbReset
		}
		return StepBreak
	}
	if e.proto.IsDfuSe() {
		if e.erasedPos < e.endPos {
			return StepErase
		}
		if !e.addrSet {
			return StepSetAddress
		}
	}
	return StepDownloadChunk
}

// Erase performs the StepErase step: it pops the next page off the memory
// layout, emits the DfuSe ERASE sub-command for it, and arms the
// DfuDnbusy->DfuDnloadIdle wait.
func (e *Engine) Erase() (Command, error) {
	if len(e.layout) == 0 {
		return Command{}, newError("Erase", ErrCodeNoSpaceLeft)
	}
	page := e.layout[0]
	next, ok := addU32Checked(e.erasedPos, page)
	if !ok {
		return Command{}, newError("Erase", ErrCodeEraseLimitReached)
	}
	addr := e.erasedPos
	e.layout = e.layout[1:]
	e.erasedPos = next
	e.addrSet = false

	ws := newWaitState(StateDfuDnbusy, StateDfuDnloadIdle)
	e.wait = &ws
	return Command{Kind: CommandControlTransfer, Transfer: encodeErase(addr)}, nil
}

// SetAddress performs the StepSetAddress step: it emits the DfuSe
// SET_ADDRESS sub-command for the current copy cursor and arms the
// DfuDnbusy->DfuDnloadIdle wait.
func (e *Engine) SetAddress() (Command, error) {
	e.addrSet = true
	ws := newWaitState(StateDfuDnbusy, StateDfuDnloadIdle)
	e.wait = &ws
	return Command{Kind: CommandControlTransfer, Transfer: encodeSetAddress(e.copiedPos)}, nil
}

// WriteChunk performs the StepDownloadChunk step: it takes up to
// TransferSize bytes from data (the caller supplies the read-ahead
// buffer's contents), emits the DNLOAD for them, and arms the wait for
// the state they drive the device into. n is the number of bytes actually
// consumed from data, including zero at end-of-stream (spec.md §4.6: a
// trailing zero-length DNLOAD is always sent to observe manifestation).
func (e *Engine) WriteChunk(data []byte) (cmd Command, n int, err error) {
	if uint64(len(data)) > math.MaxUint32 {
		return Command{}, 0, newError("DownloadChunk", ErrCodeBufferTooBig)
	}

	chunk := data
	if len(chunk) > int(e.fd.TransferSize) {
		chunk = chunk[:e.fd.TransferSize]
	}
	n = len(chunk)

	newCopied, ok := addU32Checked(e.copiedPos, uint32(n))
	if !ok {
		return Command{}, 0, newError("DownloadChunk", ErrCodeMaximumTransferExceeded)
	}
	blockNum := e.blockNum
	newBlock, ok := addU16Checked(blockNum, 1)
	if !ok {
		return Command{}, 0, newError("DownloadChunk", ErrCodeMaximumChunksExceeded)
	}

	e.copiedPos = newCopied
	e.blockNum = newBlock
	cmd = Command{Kind: CommandControlTransfer, Transfer: encodeDnload(blockNum, chunk)}

	if n == 0 {
		e.eof = true
		if e.fd.ManifestationTolerant {
			ws := newWaitState(StateDfuManifest, StateDfuIdle)
			e.wait = &ws
		} else {
			ws := newWaitState(StateDfuManifest, StateDfuManifest)
			e.wait = &ws
		}
		return cmd, n, nil
	}

	ws := newWaitState(StateDfuDnbusy, StateDfuDnloadIdle)
	e.wait = &ws
	return cmd, n, nil
}

// Wait returns the first WaitStep of the session armed by the most recent
// Erase, SetAddress, or WriteChunk call: always an immediate GETSTATUS
// with a zero poll timeout.
func (e *Engine) Wait() WaitStep {
	return e.wait.next()
}

// WaitAdvance feeds a GETSTATUS reply into the in-flight wait session. When
// the returned WaitStep.Done is true, the session is over and NextStep
// should be consulted again; otherwise sleep PollTimeoutMs and issue
// WaitStep.Command, feeding its reply back in here.
func (e *Engine) WaitAdvance(reply []byte) (WaitStep, error) {
	report, err := parseStatusReport(reply)
	if err != nil {
		return WaitStep{}, err
	}
	step, err := e.wait.advance("Wait", report)
	if err != nil {
		return WaitStep{}, err
	}
	if step.Done {
		e.wait = nil
	} else {
		e.wait = &step.wait
	}
	return step, nil
}

// Reset returns the UsbReset command used to end a manifestation-intolerant
// transfer and the standalone Reset operation of spec.md §4.7.
func (e *Engine) Reset() Command {
	return Command{Kind: CommandUsbReset}
}

func addU32Checked(a, b uint32) (uint32, bool) {
	sum := uint64(a) + uint64(b)
	if sum > math.MaxUint32 {
		return 0, false
	}
	return uint32(sum), true
}

func addU16Checked(a uint16, b uint16) (uint16, bool) {
	sum := uint32(a) + uint32(b)
	if sum > math.MaxUint16 {
		return 0, false
	}
	return uint16(sum), true
}
