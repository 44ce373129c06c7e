package dfu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngineRejectsZeroTransferSize(t *testing.T) {
	_, err := NewEngine(Config{FunctionalDescriptor: FunctionalDescriptor{TransferSize: 0}, Protocol: DfuProtocol()})
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeInvalidTransferSize))
}

func plainEngine(t *testing.T, manifestationTolerant bool, transferSize uint16) *Engine {
	t.Helper()
	e, err := NewEngine(Config{
		FunctionalDescriptor: FunctionalDescriptor{
			CanDownload:           true,
			ManifestationTolerant: manifestationTolerant,
			TransferSize:          transferSize,
		},
		Protocol: DfuProtocol(),
	})
	require.NoError(t, err)
	return e
}

func TestPrerollAdvanceWithoutClear(t *testing.T) {
	e := plainEngine(t, true, 4)
	_, err := e.Download(4)
	require.NoError(t, err)

	cmd, done, err := e.PrerollAdvance([]byte{0, 0, 0, 0, StateDfuIdle.Byte(), 0})
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, bRequestGetStatus, cmd.Transfer.Request)

	_, done, err = e.PrerollAdvance([]byte{0, 0, 0, 0, StateDfuIdle.Byte(), 0})
	require.NoError(t, err)
	assert.True(t, done)
}

func TestPrerollAdvanceWithClear(t *testing.T) {
	e := plainEngine(t, true, 4)
	_, err := e.Download(4)
	require.NoError(t, err)

	cmd, done, err := e.PrerollAdvance([]byte{0, 0, 0, 0, StateDfuError.Byte(), 0})
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, bRequestClrStatus, cmd.Transfer.Request)

	cmd, done, err = e.PrerollAdvance(nil)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, bRequestGetStatus, cmd.Transfer.Request)

	_, done, err = e.PrerollAdvance([]byte{0, 0, 0, 0, StateDfuIdle.Byte(), 0})
	require.NoError(t, err)
	assert.True(t, done)
}

func TestPrerollAdvanceRejectsNonIdleSecondStatus(t *testing.T) {
	e := plainEngine(t, true, 4)
	_, err := e.Download(4)
	require.NoError(t, err)

	_, _, err = e.PrerollAdvance([]byte{0, 0, 0, 0, StateDfuIdle.Byte(), 0})
	require.NoError(t, err)

	_, _, err = e.PrerollAdvance([]byte{0, 0, 0, 0, StateAppIdle.Byte(), 0})
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeInvalidState))
}

func prerollEngine(t *testing.T, e *Engine, length uint32) {
	t.Helper()
	_, err := e.Download(length)
	require.NoError(t, err)
	_, done, err := e.PrerollAdvance([]byte{0, 0, 0, 0, StateDfuIdle.Byte(), 0})
	require.NoError(t, err)
	if done {
		return
	}
	_, done, err = e.PrerollAdvance([]byte{0, 0, 0, 0, StateDfuIdle.Byte(), 0})
	require.NoError(t, err)
	require.True(t, done)
}

func TestPlainDfuChunkLoopBlockNumbersAndZeroLengthFinal(t *testing.T) {
	e := plainEngine(t, true, 4)
	prerollEngine(t, e, 8)

	assert.Equal(t, StepDownloadChunk, e.NextStep())
	cmd, n, err := e.WriteChunk([]byte("abcd"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, uint16(0), cmd.Transfer.Value)

	_, err = e.WaitAdvance([]byte{0, 0, 0, 0, StateDfuDnloadIdle.Byte(), 0})
	require.NoError(t, err)

	assert.Equal(t, StepDownloadChunk, e.NextStep())
	cmd, n, err = e.WriteChunk([]byte("efgh"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, uint16(1), cmd.Transfer.Value)
	_, err = e.WaitAdvance([]byte{0, 0, 0, 0, StateDfuDnloadIdle.Byte(), 0})
	require.NoError(t, err)

	assert.Equal(t, StepDownloadChunk, e.NextStep())
	cmd, n, err = e.WriteChunk(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, uint16(2), cmd.Transfer.Value)
	assert.Empty(t, cmd.Transfer.Payload)

	step, err := e.WaitAdvance([]byte{0, 0, 0, 0, StateDfuIdle.Byte(), 0})
	require.NoError(t, err)
	assert.True(t, step.Done)

	assert.Equal(t, StepBreak, e.NextStep())
}

func TestManifestationIntolerantRequestsUsbReset(t *testing.T) {
	e := plainEngine(t, false, 4)
	prerollEngine(t, e, 4)

	_, _, err := e.WriteChunk([]byte("abcd"))
	require.NoError(t, err)
	_, err = e.WaitAdvance([]byte{0, 0, 0, 0, StateDfuDnloadIdle.Byte(), 0})
	require.NoError(t, err)

	_, _, err = e.WriteChunk(nil)
	require.NoError(t, err)

	step, err := e.WaitAdvance([]byte{0, 0, 0, 0, StateDfuManifest.Byte(), 0})
	require.NoError(t, err)
	assert.True(t, step.Done)

	assert.Equal(t, StepUsbReset, e.NextStep())
}

func TestDfuSeErasesAndSetsAddressBeforeChunks(t *testing.T) {
	e, err := NewEngine(Config{
		FunctionalDescriptor: FunctionalDescriptor{CanDownload: true, ManifestationTolerant: true, TransferSize: 4},
		Protocol:             DfuSeProtocol(0, []uint32{4, 4}),
	})
	require.NoError(t, err)
	prerollEngine(t, e, 8)

	assert.Equal(t, StepErase, e.NextStep())
	eraseCmd, err := e.Erase()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), leU32(eraseCmd.Transfer.Payload[1:]))
	_, err = e.WaitAdvance([]byte{0, 0, 0, 0, StateDfuDnloadIdle.Byte(), 0})
	require.NoError(t, err)

	assert.Equal(t, StepErase, e.NextStep())
	eraseCmd, err = e.Erase()
	require.NoError(t, err)
	assert.Equal(t, uint32(4), leU32(eraseCmd.Transfer.Payload[1:]))
	_, err = e.WaitAdvance([]byte{0, 0, 0, 0, StateDfuDnloadIdle.Byte(), 0})
	require.NoError(t, err)

	assert.Equal(t, StepSetAddress, e.NextStep())
	setCmd, err := e.SetAddress()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), leU32(setCmd.Transfer.Payload[1:]))
	_, err = e.WaitAdvance([]byte{0, 0, 0, 0, StateDfuDnloadIdle.Byte(), 0})
	require.NoError(t, err)

	assert.Equal(t, StepDownloadChunk, e.NextStep())
	dataCmd, n, err := e.WriteChunk([]byte("abcdefgh"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, uint16(2), dataCmd.Transfer.Value)
}

func TestReset(t *testing.T) {
	e := plainEngine(t, true, 4)
	cmd := e.Reset()
	assert.Equal(t, CommandUsbReset, cmd.Kind)
}

func TestAddU32CheckedOverflow(t *testing.T) {
	_, ok := addU32Checked(1<<32-1, 2)
	assert.False(t, ok)
	v, ok := addU32Checked(1, 2)
	assert.True(t, ok)
	assert.Equal(t, uint32(3), v)
}

func TestAddU16CheckedOverflow(t *testing.T) {
	_, ok := addU16Checked(1<<16-1, 2)
	assert.False(t, ok)
	v, ok := addU16Checked(1, 2)
	assert.True(t, ok)
	assert.Equal(t, uint16(3), v)
}
