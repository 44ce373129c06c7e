//go:build gousb
// +build gousb

// Command dfu-flash is a thin demonstration of wiring the driver and
// gousb adapter together. It exists to show the pieces fit, not to be a
// real CLI: option parsing, file reading, and progress rendering beyond a
// log line are explicit Non-goals of the core (spec.md §1), so this stays
// intentionally small, grounded on the teacher's cmd/ublk-mem/main.go
// (flag parsing, logging setup, a single top-level driver call).
package main

import (
	"flag"
	"os"
	"strconv"

	dfu "github.com/ehrlich-b/go-dfu"
	gousbadapter "github.com/ehrlich-b/go-dfu/adapter/gousb"
	"github.com/ehrlich-b/go-dfu/driver"
	"github.com/ehrlich-b/go-dfu/internal/logging"
)

func main() {
	var (
		vid        = flag.String("vid", "0483", "USB vendor ID, hex")
		pid        = flag.String("pid", "df11", "USB product ID, hex")
		file       = flag.String("file", "", "firmware file to download")
		transferSz = flag.Uint("transfer-size", 2048, "functional descriptor transfer_size, if not read from the device")
		verbose    = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	if *file == "" {
		logger.Error("missing -file")
		os.Exit(1)
	}

	vidN, err := strconv.ParseUint(*vid, 16, 16)
	if err != nil {
		logger.Error("invalid -vid", "error", err)
		os.Exit(1)
	}
	pidN, err := strconv.ParseUint(*pid, 16, 16)
	if err != nil {
		logger.Error("invalid -pid", "error", err)
		os.Exit(1)
	}

	// A real caller reads these nine bytes from the device's interface
	// descriptor "extra" block; here we synthesize a plain-DFU 1.1
	// descriptor with a caller-supplied transfer size since this demo's
	// point is the wiring, not USB descriptor enumeration.
	fd := dfu.FunctionalDescriptor{
		CanDownload:           true,
		ManifestationTolerant: true,
		TransferSize:          uint16(*transferSz),
		DfuVersionMajor:       1,
		DfuVersionMinor:       0x10,
	}
	proto := dfu.DfuProtocol()

	adapter, err := gousbadapter.Open(uint16(vidN), uint16(pidN), fd, proto, gousbadapter.DefaultOptions())
	if err != nil {
		logger.Error("failed to open device", "error", err)
		os.Exit(1)
	}
	defer adapter.Close()

	data, err := os.ReadFile(*file)
	if err != nil {
		logger.Error("failed to read firmware file", "error", err)
		os.Exit(1)
	}

	opts := &driver.Options{
		Logger: logger,
		OnChunk: func(copied, total uint32) {
			logger.Debug("chunk sent", "copied", copied, "total", total)
		},
	}

	logger.Info("starting download", "file", *file, "bytes", len(data))
	shell := driver.NewSync(adapter, opts)
	if err := shell.DownloadFromSlice(data); err != nil {
		logger.Error("download failed", "error", err)
		os.Exit(1)
	}
	logger.Info("download complete")
}
