// Package driver implements the two interchangeable driver shells (C7)
// that drain a byte stream through a dfu.Engine: Sync (blocking sleeps)
// and Async (context-aware sleeps), per spec.md §4.8.
package driver

import "github.com/ehrlich-b/go-dfu/internal/logging"

// Options configures a driver shell's ambient behaviour. It is shared by
// Sync and Async the way the teacher's queue.Config carries an optional
// Logger and Observer alongside the mandatory fields.
type Options struct {
	// Logger receives the shell's debug lines for a download: its start,
	// the end of the pre-roll, the manifestation USB reset, and completion.
	// Individual commands and WaitState polls are not logged. Defaults to
	// logging.Default() when nil.
	Logger *logging.Logger

	// OnChunk, when set, is called after each successful non-empty DNLOAD
	// (not the trailing zero-length one) with the
	// cumulative bytes copied so far and the total length requested. It
	// is the supplemented progress-reporting hook from the original's
	// driver loops (SPEC_FULL.md §4); rendering a progress bar from it
	// remains a Non-goal.
	OnChunk func(copied, total uint32)
}

func (o *Options) logger() *logging.Logger {
	if o == nil || o.Logger == nil {
		return logging.Default()
	}
	return o.Logger
}

func (o *Options) onChunk(copied, total uint32) {
	if o == nil || o.OnChunk == nil {
		return
	}
	o.OnChunk(copied, total)
}
