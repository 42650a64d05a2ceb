package cli

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputPumpAbandonsReadOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	pump := newInputPump(pr, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := pump.read(ctx, make([]byte, 8))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// input typed after the abandoned prompt goes to the next reader
	go func() { _, _ = pw.Write([]byte("yes\n")) }()
	buf := make([]byte, 2)
	n, err := pump.read(context.Background(), buf)
	require.NoError(t, err)
	assert.Equal(t, "ye", string(buf[:n]))
	n, err = pump.read(context.Background(), buf)
	require.NoError(t, err)
	assert.Equal(t, "s\n", string(buf[:n]))
}

func TestInputPumpReportsEOF(t *testing.T) {
	pr, pw := io.Pipe()
	pump := newInputPump(pr, 0)
	require.NoError(t, pw.Close())

	_, err := ctxReader{ctx: context.Background(), pump: pump}.Read(make([]byte, 4))
	assert.ErrorIs(t, err, io.EOF)
}
