package dfu

// StatusReport is the parsed 6-byte GETSTATUS reply, per spec.md §3/§4.5.
type StatusReport struct {
	Status        Status
	PollTimeoutMs uint32
	State         State
	IStringIndex  uint8
}

// parseStatusReport decodes a GETSTATUS reply, per spec.md §4.5: bStatus
// (byte 0), bwPollTimeout (bytes 1-3, little-endian 24-bit, widened to
// 32 bits), bState (byte 4, rewritten through State.forStatus), and
// iString (byte 5). It fails with ErrCodeResponseTooShort when len(b) < 6;
// it never inspects Status for an error condition itself (spec.md §9 Open
// Question (b) — the caller does that).
func parseStatusReport(b []byte) (StatusReport, error) {
	if len(b) < statusReportLen {
		return StatusReport{}, newErrorGotWant("GetStatus", ErrCodeResponseTooShort, len(b), statusReportLen)
	}

	pollTimeout := uint32(b[1]) | uint32(b[2])<<8 | uint32(b[3])<<16

	return StatusReport{
		Status:        StatusFromByte(b[0]),
		PollTimeoutMs: pollTimeout,
		State:         StateFromByte(b[4]).forStatus(),
		IStringIndex:  b[5],
	}, nil
}

// waitTarget bundles the (intermediate, target) pair a WaitState session is
// driving toward, per spec.md §4.5.
type waitTarget struct {
	intermediate State
	target       State
}

// WaitState is the GETSTATUS poll-wait sub-machine described in spec.md
// §4.5: "repeatedly GETSTATUS, sleeping poll_timeout_ms between queries,
// until the reported state equals target ... while the state equals
// intermediate, keep polling; any other state is a protocol violation".
//
// It holds only the minimal continuation payload (the wait target), never
// a reference to the Engine, per spec.md §9's cyclic-reference design
// note: once Done, the Engine re-evaluates the chunk-loop decision table
// itself rather than WaitState carrying a resume tag for it.
type WaitState struct {
	target waitTarget
}

// WaitStep is one iteration's outcome: either the target state was reached
// (Break) or the caller must sleep and re-poll (Wait).
type WaitStep struct {
	// Done is true when the target state has been reached; Command and
	// PollTimeoutMs are meaningless in that case.
	Done bool

	// Command is the GETSTATUS control transfer to execute when !Done.
	Command ControlTransfer

	// PollTimeoutMs is how long to sleep before issuing Command, when
	// !Done. It is honoured exactly, including zero (spec.md §5).
	PollTimeoutMs uint32

	wait WaitState
}

func newWaitState(intermediate, target State) WaitState {
	return WaitState{target: waitTarget{intermediate: intermediate, target: target}}
}

// next returns the first WaitStep of a WaitState session: always a
// GETSTATUS to issue immediately (poll timeout 0 for the very first poll,
// matching the original's WaitState::new having poll_timeout 0 until a
// reply sets it).
func (w WaitState) next() WaitStep {
	return WaitStep{Command: encodeGetStatus(), PollTimeoutMs: 0, wait: w}
}

// advance feeds a GETSTATUS reply into the WaitState session and returns
// either the terminal Break (target reached) or the next Wait step, per
// spec.md §4.5. op names the calling context for error messages.
func (w WaitState) advance(op string, report StatusReport) (WaitStep, error) {
	switch report.State.code {
	case w.target.target.code:
		return WaitStep{Done: true}, nil
	case w.target.intermediate.code:
		return WaitStep{
			Command:       encodeGetStatus(),
			PollTimeoutMs: report.PollTimeoutMs,
			wait:          w,
		}, nil
	default:
		return WaitStep{}, &Error{
			Op:   op,
			Code: ErrCodeInvalidState,
			Got:  int(report.State.code),
			Want: int(w.target.intermediate.code),
		}
	}
}

// clearStatus implements spec.md §4.5's ClearStatus: given a prior
// GETSTATUS reply, it returns a CLRSTATUS command to issue when the
// reported state is DfuError, or ok=false when no I/O is needed.
func clearStatus(report StatusReport) (cmd ControlTransfer, ok bool) {
	if report.State.code == StateDfuError.code {
		return encodeClrStatus(), true
	}
	return ControlTransfer{}, false
}
