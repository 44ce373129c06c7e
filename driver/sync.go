package driver

import (
	"bytes"
	"io"
	"math"
	"time"

	dfu "github.com/ehrlich-b/go-dfu"
	"github.com/ehrlich-b/go-dfu/internal/chunkbuf"
)

// Sync is the synchronous driver shell (C7): it drives a dfu.Engine to
// exhaustion against a dfu.IO adapter, blocking on time.Sleep between
// GETSTATUS polls, mirroring the teacher's queue.Runner loop that drains
// work against an interfaces.Backend to completion.
type Sync struct {
	io       dfu.IO
	opts     *Options
	override *uint32
}

// NewSync builds a Sync shell reading its functional descriptor and
// protocol from adapter.
func NewSync(adapter dfu.IO, opts *Options) *Sync {
	return &Sync{io: adapter, opts: opts}
}

// OverrideAddress replaces the descriptor-derived DfuSe start address for
// every subsequent Download/DownloadFromSlice/DownloadAll call on this
// shell. It has no effect on plain DFU 1.1 targets, which carry no address.
func (s *Sync) OverrideAddress(addr uint32) {
	s.override = &addr
}

// protocol returns the adapter's reported protocol with s.override applied
// to a DfuSe target's start address, if one was set.
func (s *Sync) protocol() dfu.Protocol {
	proto := s.io.Protocol()
	if s.override != nil && proto.IsDfuSe() {
		proto.Address = *s.override
	}
	return proto
}

// WillDetach reports the underlying descriptor's will_detach flag.
func (s *Sync) WillDetach() bool {
	return s.io.FunctionalDescriptor().WillDetach
}

// ManifestationTolerant reports the underlying descriptor's
// manifestation_tolerant flag.
func (s *Sync) ManifestationTolerant() bool {
	return s.io.FunctionalDescriptor().ManifestationTolerant
}

// Detach issues the DETACH request using the descriptor's own timeout.
func (s *Sync) Detach() error {
	cfg := dfu.Config{FunctionalDescriptor: s.io.FunctionalDescriptor(), Protocol: s.protocol()}
	engine, err := dfu.NewEngine(cfg)
	if err != nil {
		return err
	}
	_, err = s.execute(engine.Detach())
	return err
}

// UsbReset issues a standalone USB bus reset.
func (s *Sync) UsbReset() error {
	return s.io.USBReset()
}

// DownloadFromSlice downloads data in full.
func (s *Sync) DownloadFromSlice(data []byte) error {
	return s.Download(bytes.NewReader(data), uint32(len(data)))
}

// DownloadAll determines r's length by seeking to its end and back, then
// calls Download. It fails with ErrCodeOutOfCapabilities if the stream is
// larger than a uint32 can represent.
func (s *Sync) DownloadAll(r io.ReadSeeker) error {
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
	return s.Download(r, uint32(length))
}

// Download drives the full download pipeline for length bytes read from r,
// per spec.md §4.6-§4.8: pre-roll status clearing, the chunk loop (erase /
// set-address / download-chunk interleaved with WaitState poll cycles),
// and manifestation/reset handling.
func (s *Sync) Download(r io.Reader, length uint32) error {
	cfg := dfu.Config{FunctionalDescriptor: s.io.FunctionalDescriptor(), Protocol: s.protocol()}
	engine, err := dfu.NewEngine(cfg)
	if err != nil {
		return err
	}

	log := s.opts.logger()
	log.Debug("download starting", "length", length)

	cmd, err := engine.Download(length)
	if err != nil {
		return err
	}
	reply, err := s.execute(cmd)
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
		reply, err = s.execute(next)
		if err != nil {
			return err
		}
	}
	log.Debug("pre-roll complete, device idle")

	buf := chunkbuf.New(r, int(s.io.FunctionalDescriptor().TransferSize))
	var copied uint32

	for {
		switch engine.NextStep() {
		case dfu.StepErase:
			cmd, err := engine.Erase()
			if err != nil {
				return err
			}
			if _, err := s.execute(cmd); err != nil {
				return err
			}
			if err := s.waitLoop(engine); err != nil {
				return err
			}

		case dfu.StepSetAddress:
			cmd, err := engine.SetAddress()
			if err != nil {
				return err
			}
			if _, err := s.execute(cmd); err != nil {
				return err
			}
			if err := s.waitLoop(engine); err != nil {
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
			if _, err := s.execute(cmd); err != nil {
				return err
			}
			buf.Consume(n)
			if n > 0 {
				copied += uint32(n)
				s.opts.onChunk(copied, length)
			}
			if err := s.waitLoop(engine); err != nil {
				return err
			}

		case dfu.StepUsbReset:
			log.Debug("manifestation intolerant device, resetting bus")
			if _, err := s.execute(dfu.Command{Kind: dfu.CommandUsbReset}); err != nil {
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
// sleeping between GETSTATUS polls per the poll_timeout_ms each reply
// carries (spec.md §4.5/§5/P6).
func (s *Sync) waitLoop(engine *dfu.Engine) error {
	step := engine.Wait()
	for {
		reply, err := s.executeTransfer(step.Command)
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
		time.Sleep(time.Duration(next.PollTimeoutMs) * time.Millisecond)
		step = next
	}
}

// execute performs whatever Command describes and returns its reply bytes
// (nil for OUT transfers, resets, and Break).
func (s *Sync) execute(cmd dfu.Command) ([]byte, error) {
	switch cmd.Kind {
	case dfu.CommandControlTransfer:
		return s.executeTransfer(cmd.Transfer)
	case dfu.CommandUsbReset:
		if err := s.io.USBReset(); err != nil {
			return nil, dfu.WrapTransport("USBReset", err)
		}
		return nil, nil
	default:
		return nil, nil
	}
}

func (s *Sync) executeTransfer(t dfu.ControlTransfer) ([]byte, error) {
	if t.Direction == dfu.DirectionIn {
		buf := make([]byte, t.InLength)
		n, err := s.io.ReadControl(t, buf)
		if err != nil {
			return nil, dfu.WrapTransport("ReadControl", err)
		}
		return buf[:n], nil
	}
	if _, err := s.io.WriteControl(t); err != nil {
		return nil, dfu.WrapTransport("WriteControl", err)
	}
	return nil, nil
}
