package dfu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetachUsesDescriptorTimeout(t *testing.T) {
	e, err := NewEngine(Config{
		FunctionalDescriptor: FunctionalDescriptor{TransferSize: 1, DetachTimeoutMs: 500},
		Protocol:             DfuProtocol(),
	})
	assert.NoError(t, err)

	cmd := e.Detach()
	assert.Equal(t, CommandControlTransfer, cmd.Kind)
	assert.Equal(t, bRequestDetach, cmd.Transfer.Request)
	assert.Equal(t, uint16(500), cmd.Transfer.Value)
}

func TestDetachWithTimeoutOverridesDescriptor(t *testing.T) {
	e, err := NewEngine(Config{
		FunctionalDescriptor: FunctionalDescriptor{TransferSize: 1, DetachTimeoutMs: 500},
		Protocol:             DfuProtocol(),
	})
	assert.NoError(t, err)

	cmd := e.DetachWithTimeout(1000)
	assert.Equal(t, uint16(1000), cmd.Transfer.Value)
}
