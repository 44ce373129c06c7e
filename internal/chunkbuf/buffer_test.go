package chunkbuf

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillChunksExactMultiple(t *testing.T) {
	b := New(strings.NewReader("thisisnotafirmwareorisit"), 6)

	var got []string
	for {
		chunk, err := b.Fill()
		require.NoError(t, err)
		if len(chunk) == 0 {
			got = append(got, "")
			break
		}
		got = append(got, string(chunk))
		b.Consume(len(chunk))
	}

	assert.Equal(t, []string{"thisis", "notafi", "rmware", "orisit", ""}, got)
}

func TestFillPartialFinalChunk(t *testing.T) {
	b := New(strings.NewReader("hello"), 4)

	chunk, err := b.Fill()
	require.NoError(t, err)
	assert.Equal(t, []byte("hell"), chunk)
	b.Consume(len(chunk))

	chunk, err = b.Fill()
	require.NoError(t, err)
	assert.Equal(t, []byte("o"), chunk)
	b.Consume(len(chunk))

	chunk, err = b.Fill()
	require.NoError(t, err)
	assert.Empty(t, chunk)
}

func TestFillEmptyInput(t *testing.T) {
	b := New(bytes.NewReader(nil), 8)
	chunk, err := b.Fill()
	require.NoError(t, err)
	assert.Empty(t, chunk)
}

// partialReader returns at most n bytes per Read call, simulating the
// "small partial reads" condition spec.md §8 requires tests to exercise.
type partialReader struct {
	data []byte
	n    int
}

func (p *partialReader) Read(buf []byte) (int, error) {
	if len(p.data) == 0 {
		return 0, io.EOF
	}
	max := p.n
	if max > len(buf) {
		max = len(buf)
	}
	if max > len(p.data) {
		max = len(p.data)
	}
	n := copy(buf, p.data[:max])
	p.data = p.data[n:]
	var err error
	if len(p.data) == 0 {
		err = io.EOF
	}
	return n, err
}

func TestFillAssemblesFromPartialReads(t *testing.T) {
	r := &partialReader{data: []byte("thisisnotafirmwareorisit"), n: 2}
	b := New(r, 6)

	chunk, err := b.Fill()
	require.NoError(t, err)
	assert.Equal(t, []byte("thisis"), chunk)
}
