package dfu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDfuSeInterfaceStringPlainVersionIgnoresString(t *testing.T) {
	proto, err := ParseDfuSeInterfaceString("garbage", 1, 0x10)
	require.NoError(t, err)
	assert.False(t, proto.IsDfuSe())
}

func TestParseDfuSeInterfaceStringDfuSe(t *testing.T) {
	proto, err := ParseDfuSeInterfaceString("@Internal Flash/0x08000000/16*016Kg,1*064Kg,7*128Kg", 1, 0x1a)
	require.NoError(t, err)
	require.True(t, proto.IsDfuSe())
	assert.Equal(t, uint32(0x08000000), proto.Address)
	assert.Len(t, proto.MemoryLayout, 16+1+7)
	assert.Equal(t, uint32(16*1024), proto.MemoryLayout[0])
	assert.Equal(t, uint32(64*1024), proto.MemoryLayout[16])
	assert.Equal(t, uint32(128*1024), proto.MemoryLayout[17])
}

func TestParseDfuSeInterfaceStringUnknownVersion(t *testing.T) {
	_, err := ParseDfuSeInterfaceString("@x/0x0/4*4g", 2, 0)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeUnknownProtocol))
}

func TestParseDfuSeInterfaceStringMissingSlashes(t *testing.T) {
	_, err := ParseDfuSeInterfaceString("@nolayoutsep", 1, 0x1a)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeInvalidInterfaceString))

	_, err = ParseDfuSeInterfaceString("nosecondslash/4*4g", 1, 0x1a)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeInvalidInterfaceString))
}

func TestParseDfuSeInterfaceStringBadAddress(t *testing.T) {
	_, err := ParseDfuSeInterfaceString("@x/08000000/4*4g", 1, 0x1a)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeInvalidAddress))
}

func TestParseDfuSeInterfaceStringBadLayout(t *testing.T) {
	_, err := ParseDfuSeInterfaceString("@x/0x08000000/not-a-layout", 1, 0x1a)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeMemoryLayout))
}

func TestDfuProtocolAndDfuSeProtocolConstructors(t *testing.T) {
	assert.False(t, DfuProtocol().IsDfuSe())
	assert.True(t, DfuSeProtocol(0x1000, []uint32{4, 4}).IsDfuSe())
}
