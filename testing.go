package dfu

import (
	"context"
	"sync"
)

// MockIO is a scriptable fake of IO/AsyncIO for driver-shell and engine
// tests. GETSTATUS replies are queued in one FIFO with
// PushStatus/PushStatusReport and handed out by ReadControl; calls are
// counted for assertions, mirroring the teacher's MockBackend call
// counters.
type MockIO struct {
	mu sync.Mutex

	fd    FunctionalDescriptor
	proto Protocol

	statusReplies [][]byte
	writeErr      error
	readErr       error
	resetErr      error

	readCalls  int
	writeCalls int
	resetCalls int
	written    []ControlTransfer
}

// NewMockIO builds a MockIO reporting the given descriptor and protocol.
func NewMockIO(fd FunctionalDescriptor, proto Protocol) *MockIO {
	return &MockIO{fd: fd, proto: proto}
}

func (m *MockIO) FunctionalDescriptor() FunctionalDescriptor {
	return m.fd
}

func (m *MockIO) Protocol() Protocol {
	return m.proto
}

// PushStatus queues a raw 6-byte GETSTATUS reply to be returned by the
// next ReadControl call, in FIFO order.
func (m *MockIO) PushStatus(b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusReplies = append(m.statusReplies, b)
}

// PushStatusReport is a convenience wrapper around PushStatus that encodes
// a StatusReport into its 6-byte wire form.
func (m *MockIO) PushStatusReport(status Status, pollTimeoutMs uint32, state State, iStringIndex uint8) {
	b := make([]byte, statusReportLen)
	b[0] = status.Byte()
	b[1] = byte(pollTimeoutMs)
	b[2] = byte(pollTimeoutMs >> 8)
	b[3] = byte(pollTimeoutMs >> 16)
	b[4] = state.Byte()
	b[5] = iStringIndex
	m.PushStatus(b)
}

// FailReadControl makes every subsequent ReadControl call return err.
func (m *MockIO) FailReadControl(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

// FailWriteControl makes every subsequent WriteControl call return err.
func (m *MockIO) FailWriteControl(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// FailUSBReset makes every subsequent USBReset call return err.
func (m *MockIO) FailUSBReset(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetErr = err
}

func (m *MockIO) ReadControl(t ControlTransfer, buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readCalls++
	if m.readErr != nil {
		return 0, m.readErr
	}
	if len(m.statusReplies) == 0 {
		return 0, newError("MockIO.ReadControl", ErrCodeResponseTooShort)
	}
	reply := m.statusReplies[0]
	m.statusReplies = m.statusReplies[1:]
	n := copy(buf, reply)
	return n, nil
}

func (m *MockIO) WriteControl(t ControlTransfer) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeCalls++
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	if t.Payload != nil {
		t.Payload = append([]byte(nil), t.Payload...)
	}
	m.written = append(m.written, t)
	return len(t.Payload), nil
}

func (m *MockIO) USBReset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetCalls++
	return m.resetErr
}

// WrittenTransfers returns every OUT control transfer executed so far, in
// order.
func (m *MockIO) WrittenTransfers() []ControlTransfer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ControlTransfer, len(m.written))
	copy(out, m.written)
	return out
}

// CallCounts returns how many times each method has been invoked.
func (m *MockIO) CallCounts() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]int{
		"read":  m.readCalls,
		"write": m.writeCalls,
		"reset": m.resetCalls,
	}
}

var (
	_ IO      = (*MockIO)(nil)
	_ AsyncIO = (*mockAsyncIO)(nil)
)

// mockAsyncIO adapts MockIO to AsyncIO with an instant, non-blocking sleep
// for tests that exercise the task-oriented driver shell without real
// delays.
type mockAsyncIO struct {
	*MockIO
	sleepCalls int
	sleepMu    sync.Mutex
}

// NewMockAsyncIO builds an AsyncIO fake whose Sleep returns immediately
// (or ctx.Err() if already cancelled), recording how many times it was
// called.
func NewMockAsyncIO(fd FunctionalDescriptor, proto Protocol) *mockAsyncIO {
	return &mockAsyncIO{MockIO: NewMockIO(fd, proto)}
}

// Sleep implements AsyncIO. It never actually sleeps; it only honours
// ctx cancellation, so driver-shell tests run instantly while still
// exercising the sleep call count and cancellation plumbing.
func (m *mockAsyncIO) Sleep(ctx context.Context, ms uint32) error {
	m.sleepMu.Lock()
	m.sleepCalls++
	m.sleepMu.Unlock()
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// SleepCalls returns how many times Sleep has been invoked.
func (m *mockAsyncIO) SleepCalls() int {
	m.sleepMu.Lock()
	defer m.sleepMu.Unlock()
	return m.sleepCalls
}
