package dfu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatusReport(t *testing.T) {
	b := []byte{0x00, 0x0A, 0x00, 0x00, 5, 7}
	r, err := parseStatusReport(b)
	require.NoError(t, err)
	assert.Equal(t, StatusOk, r.Status)
	assert.Equal(t, uint32(10), r.PollTimeoutMs)
	assert.Equal(t, StateDfuDnloadIdle, r.State)
	assert.Equal(t, uint8(7), r.IStringIndex)
}

func TestParseStatusReportRewritesSyncStates(t *testing.T) {
	b := []byte{0x00, 0, 0, 0, StateDfuManifestSync.Byte(), 0}
	r, err := parseStatusReport(b)
	require.NoError(t, err)
	assert.Equal(t, StateDfuManifest, r.State)
}

func TestParseStatusReportTooShort(t *testing.T) {
	_, err := parseStatusReport([]byte{0, 0, 0})
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeResponseTooShort))
}

func TestClearStatusOnlyWhenStateIsDfuError(t *testing.T) {
	_, ok := clearStatus(StatusReport{State: StateDfuError})
	assert.True(t, ok)

	_, ok = clearStatus(StatusReport{State: StateDfuIdle})
	assert.False(t, ok)
}

func TestWaitStateReachesTargetImmediately(t *testing.T) {
	w := newWaitState(StateDfuDnbusy, StateDfuDnloadIdle)
	step := w.next()
	assert.False(t, step.Done)
	assert.Equal(t, uint32(0), step.PollTimeoutMs)

	next, err := w.advance("Test", StatusReport{State: StateDfuDnloadIdle})
	require.NoError(t, err)
	assert.True(t, next.Done)
}

func TestWaitStatePollsThroughIntermediate(t *testing.T) {
	w := newWaitState(StateDfuDnbusy, StateDfuDnloadIdle)

	next, err := w.advance("Test", StatusReport{State: StateDfuDnbusy, PollTimeoutMs: 30})
	require.NoError(t, err)
	assert.False(t, next.Done)
	assert.Equal(t, uint32(30), next.PollTimeoutMs)

	final, err := next.wait.advance("Test", StatusReport{State: StateDfuDnloadIdle})
	require.NoError(t, err)
	assert.True(t, final.Done)
}

func TestWaitStateRejectsUnexpectedState(t *testing.T) {
	w := newWaitState(StateDfuDnbusy, StateDfuDnloadIdle)
	_, err := w.advance("Test", StatusReport{State: StateDfuError})
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeInvalidState))
}
