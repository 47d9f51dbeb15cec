// Package oto is a monitor output on top of the oto playback library: the
// engine's master mix can be written to it for local listening, independent
// of the capture backend.
package oto

import (
	"fmt"
	"io"
	"sync"

	"github.com/ebitengine/oto/v3"

	"patchbay"
)

type (
	// OtoContext wraps an oto context as a patchbay audio context.
	OtoContext struct {
		ctx *oto.Context
	}

	// OtoOutput feeds a stereo float stream to an oto player. The player
	// pulls from a buffered reader; WriteAudio blocks when the buffer is
	// full, which paces a faster-than-realtime caller to the device.
	OtoOutput struct {
		player *oto.Player
		buf    *streamBuffer
		tmp    []byte
	}

	// streamBuffer is the io.Reader the player drains. Writes and reads
	// happen on different goroutines.
	streamBuffer struct {
		mu     sync.Mutex
		cond   *sync.Cond
		data   []byte
		closed bool
	}
)

const otoBufferSize = 8192

// NewContext opens the playback device at the given sample rate, stereo
// 16-bit.
func NewContext(sampleRate int) (*OtoContext, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &OtoContext{ctx: ctx}, nil
}

func (c *OtoContext) Output() patchbay.AudioSink {
	buf := newStreamBuffer()
	player := c.ctx.NewPlayer(buf)
	player.Play()
	return &OtoOutput{player: player, buf: buf}
}

func (c *OtoContext) Close() error {
	if err := c.ctx.Suspend(); err != nil {
		return fmt.Errorf("cannot suspend oto context: %w", err)
	}
	return nil
}

func (o *OtoOutput) WriteAudio(floatBuffer []float32) error {
	// the tmp buffer keeps its capacity across calls
	o.tmp = FloatBufferTo16BitLE(floatBuffer, o.tmp[:0])
	if err := o.buf.write(o.tmp); err != nil {
		return fmt.Errorf("cannot write to player: %w", err)
	}
	return nil
}

func (o *OtoOutput) Close() error {
	o.buf.close()
	if err := o.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}

func newStreamBuffer() *streamBuffer {
	b := &streamBuffer{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *streamBuffer) write(p []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.data) >= otoBufferSize && !b.closed {
		b.cond.Wait()
	}
	if b.closed {
		return io.ErrClosedPipe
	}
	b.data = append(b.data, p...)
	b.cond.Broadcast()
	return nil
}

func (b *streamBuffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.data) == 0 && !b.closed {
		b.cond.Wait()
	}
	if len(b.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, b.data)
	b.data = b.data[n:]
	b.cond.Broadcast()
	return n, nil
}

func (b *streamBuffer) close() {
	b.mu.Lock()
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()
}
