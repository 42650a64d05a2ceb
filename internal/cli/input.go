package cli

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/AlecAivazis/survey/v2"
)

// inputPump owns the only read loop on an input stream. Prompts read through it with a
// context, so a prompt whose context ends returns at once instead of leaving a read on
// stdin that would steal the next prompt's input.
type inputPump struct {
	fd    uintptr
	src   io.Reader
	start sync.Once
	data  chan []byte
	err   error // set before data is closed

	mu   sync.Mutex
	rest []byte
}

var stdinInput = newInputPump(os.Stdin, os.Stdin.Fd())

func newInputPump(src io.Reader, fd uintptr) *inputPump {
	return &inputPump{fd: fd, src: src, data: make(chan []byte)}
}

func (p *inputPump) run() {
	for {
		buf := make([]byte, 256)
		n, err := p.src.Read(buf)
		if n > 0 {
			p.data <- buf[:n]
		}
		if err != nil {
			p.err = err
			close(p.data)
			return
		}
	}
}

func (p *inputPump) read(ctx context.Context, b []byte) (int, error) {
	p.start.Do(func() { go p.run() })

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.rest) == 0 {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case chunk, ok := <-p.data:
			if !ok {
				return 0, p.err
			}
			p.rest = chunk
		}
	}
	n := copy(b, p.rest)
	p.rest = p.rest[n:]
	return n, nil
}

// stdio binds survey's input to ctx.
func (p *inputPump) stdio(ctx context.Context) survey.AskOpt {
	return survey.WithStdio(ctxReader{ctx: ctx, pump: p}, os.Stdout, os.Stderr)
}

// ctxReader implements terminal.FileReader; Fd lets survey switch the terminal mode.
type ctxReader struct {
	ctx  context.Context
	pump *inputPump
}

func (r ctxReader) Read(b []byte) (int, error) { return r.pump.read(r.ctx, b) }

func (r ctxReader) Fd() uintptr { return r.pump.fd }
