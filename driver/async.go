package driver

import (
	"bytes"
	"context"
	"io"
	"math"

	dfu "github.com/ehrlich-b/go-dfu"
	"github.com/ehrlich-b/go-dfu/internal/chunkbuf"
)

// Async is the task-oriented driver shell (C7): identical to Sync except
// that the inter-poll sleep is an awaitable dfu.AsyncIO.Sleep call instead
// of a blocking time.Sleep, so it can be driven from a cooperative
// scheduler and cancelled via ctx. Per spec.md §5, cancelling between
// commands is safe; cancelling mid-transfer is not attempted to be healed.
type Async struct {
	io       dfu.AsyncIO
	opts     *Options
	override *uint32
}

// NewAsync builds an Async shell reading its functional descriptor and
// protocol from adapter.
func NewAsync(adapter dfu.AsyncIO, opts *Options) *Async {
	return &Async{io: adapter, opts: opts}
}

// OverrideAddress replaces the descriptor-derived DfuSe start address for
// every subsequent Download/DownloadFromSlice/DownloadAll call on this
// shell. It has no effect on plain DFU 1.1 targets, which carry no address.
func (a *Async) OverrideAddress(addr uint32) {
	a.override = &addr
}

// protocol returns the adapter's reported protocol with a.override applied
// to a DfuSe target's start address, if one was set.
func (a *Async) protocol() dfu.Protocol {
	proto := a.io.Protocol()
	if a.override != nil && proto.IsDfuSe() {
		proto.Address = *a.override
	}
	return proto
}

// WillDetach reports the underlying descriptor's will_detach flag.
func (a *Async) WillDetach() bool {
	return a.io.FunctionalDescriptor().WillDetach
}

// ManifestationTolerant reports the underlying descriptor's
// manifestation_tolerant flag.
func (a *Async) ManifestationTolerant() bool {
	return a.io.FunctionalDescriptor().ManifestationTolerant
}

// Detach issues the DETACH request using the descriptor's own timeout.
func (a *Async) Detach(ctx context.Context) error {
	cfg := dfu.Config{FunctionalDescriptor: a.io.FunctionalDescriptor(), Protocol: a.protocol()}
	engine, err := dfu.NewEngine(cfg)
	if err != nil {
		return err
	}
	_, err = a.execute(ctx, engine.Detach())
	return err
}

// UsbReset issues a standalone USB bus reset.
func (a *Async) UsbReset() error {
	return a.io.USBReset()
}

// DownloadFromSlice downloads data in full.
func (a *Async) DownloadFromSlice(ctx context.Context, data []byte) error {
	return a.Download(ctx, bytes.NewReader(data), uint32(len(data)))
}

// DownloadAll determines r's length by seeking to its end and back, then
// calls Download. It fails with ErrCodeOutOfCapabilities if the stream is
// larger than a uint32 can represent.
func (a *Async) DownloadAll(ctx context.Context, r io.ReadSeeker) error {
	cur, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return dfu.WrapTransport("DownloadAll.Seek", err)
	}
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return dfu.WrapTransport("DownloadAll.Seek", err)
	}
	length := end - cur
	if length > math.MaxUint32 {
		return dfu.NewError("DownloadAll", dfu.ErrCodeOutOfCapabilities)
	}
	if _, err := r.Seek(cur, io.SeekStart); err != nil {
		return dfu.WrapTransport("DownloadAll.Seek", err)
	}
	return a.Download(ctx, r, uint32(length))
}

// Download drives the full download pipeline for length bytes read from r,
// suspending at each control transfer and inter-poll sleep so ctx can
// cancel it between commands (spec.md §5).
func (a *Async) Download(ctx context.Context, r io.Reader, length uint32) error {
	cfg := dfu.Config{FunctionalDescriptor: a.io.FunctionalDescriptor(), Protocol: a.protocol()}
	engine, err := dfu.NewEngine(cfg)
	if err != nil {
		return err
	}

	log := a.opts.logger()
	log.Debug("async download starting", "length", length)

	cmd, err := engine.Download(length)
	if err != nil {
		return err
	}
	reply, err := a.execute(ctx, cmd)
	if err != nil {
		return err
	}

	for {
		next, done, err := engine.PrerollAdvance(reply)
		if err != nil {
			return err
		}
		if done {
			break
		}
		reply, err = a.execute(ctx, next)
		if err != nil {
			return err
		}
	}
	log.Debug("pre-roll complete, device idle")

	buf := chunkbuf.New(r, int(a.io.FunctionalDescriptor().TransferSize))
	var copied uint32

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch engine.NextStep() {
		case dfu.StepErase:
			cmd, err := engine.Erase()
			if err != nil {
				return err
			}
			if _, err := a.execute(ctx, cmd); err != nil {
				return err
			}
			if err := a.waitLoop(ctx, engine); err != nil {
				return err
			}

		case dfu.StepSetAddress:
			cmd, err := engine.SetAddress()
			if err != nil {
				return err
			}
			if _, err := a.execute(ctx, cmd); err != nil {
				return err
			}
			if err := a.waitLoop(ctx, engine); err != nil {
				return err
			}

		case dfu.StepDownloadChunk:
			chunk, err := buf.Fill()
			if err != nil {
				return dfu.WrapTransport("Download.Read", err)
			}
			cmd, n, err := engine.WriteChunk(chunk)
			if err != nil {
				return err
			}
			if _, err := a.execute(ctx, cmd); err != nil {
				return err
			}
			buf.Consume(n)
			if n > 0 {
				copied += uint32(n)
				a.opts.onChunk(copied, length)
			}
			if err := a.waitLoop(ctx, engine); err != nil {
				return err
			}

		case dfu.StepUsbReset:
			log.Debug("manifestation intolerant device, resetting bus")
			if _, err := a.execute(ctx, dfu.Command{Kind: dfu.CommandUsbReset}); err != nil {
				return err
			}
			return nil

		case dfu.StepBreak:
			log.Debug("download complete")
			return nil
		}
	}
}

// waitLoop drives the engine's current WaitState session to completion,
// awaiting a.io.Sleep between GETSTATUS polls.
func (a *Async) waitLoop(ctx context.Context, engine *dfu.Engine) error {
	step := engine.Wait()
	for {
		reply, err := a.executeTransfer(ctx, step.Command)
		if err != nil {
			return err
		}
		next, err := engine.WaitAdvance(reply)
		if err != nil {
			return err
		}
		if next.Done {
			return nil
		}
		if err := a.io.Sleep(ctx, next.PollTimeoutMs); err != nil {
			return dfu.WrapTransport("Sleep", err)
		}
		step = next
	}
}

func (a *Async) execute(ctx context.Context, cmd dfu.Command) ([]byte, error) {
	switch cmd.Kind {
	case dfu.CommandControlTransfer:
		return a.executeTransfer(ctx, cmd.Transfer)
	case dfu.CommandUsbReset:
		if err := a.io.USBReset(); err != nil {
			return nil, dfu.WrapTransport("USBReset", err)
		}
		return nil, nil
	default:
		return nil, nil
	}
}

func (a *Async) executeTransfer(ctx context.Context, t dfu.ControlTransfer) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.Direction == dfu.DirectionIn {
		buf := make([]byte, t.InLength)
		n, err := a.io.ReadControl(t, buf)
		if err != nil {
			return nil, dfu.WrapTransport("ReadControl", err)
		}
		return buf[:n], nil
	}
	if _, err := a.io.WriteControl(t); err != nil {
		return nil, dfu.WrapTransport("WriteControl", err)
	}
	return nil, nil
}
