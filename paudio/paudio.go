// Package paudio exchanges audio with the soundcard through portaudio. It
// implements the audio half of the patchbay backend contract: the engine's
// backend-owned stereo ports pull from the capture side and push to the
// playback side, and the owner of the stream advances it once per block.
package paudio

import (
	"errors"
	"fmt"

	"github.com/gordonklaus/portaudio"

	"patchbay"
)

type (
	// Backend is a duplex portaudio stream with one stereo capture pair and
	// one stereo playback pair.
	Backend struct {
		stream      *portaudio.Stream
		sampleRate  int
		blockLength int
		in, out     [][]float32
	}

	handle struct {
		channel int
		output  bool
	}
)

var ErrUnsupportedKind = errors.New("portaudio backend only handles audio ports")

// New initializes portaudio and opens the default duplex stream in blocking
// mode with the given block length.
func New(sampleRate, blockLength int) (*Backend, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("unable to set up portaudio: %w", err)
	}
	b := &Backend{
		sampleRate:  sampleRate,
		blockLength: blockLength,
		in:          [][]float32{make([]float32, blockLength), make([]float32, blockLength)},
		out:         [][]float32{make([]float32, blockLength), make([]float32, blockLength)},
	}
	stream, err := portaudio.OpenDefaultStream(2, 2, float64(sampleRate), blockLength, &b.in, &b.out)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("opening default duplex stream: %w", err)
	}
	b.stream = stream
	return b, nil
}

// Start begins the stream.
func (b *Backend) Start() error { return b.stream.Start() }

// Read fills the capture buffers with the next block from the device.
// Blocks until a full block has arrived.
func (b *Backend) Read() error { return b.stream.Read() }

// Write sends the playback buffers to the device. Blocks until the device
// has taken the block.
func (b *Backend) Write() error { return b.stream.Write() }

// Close stops the stream and terminates portaudio.
func (b *Backend) Close() error {
	err := b.stream.Close()
	if terr := portaudio.Terminate(); err == nil {
		err = terr
	}
	return err
}

func (b *Backend) RegisterPort(id patchbay.PortIdentifier) (patchbay.BackendHandle, error) {
	if id.Kind != patchbay.KindAudio && id.Kind != patchbay.KindCV {
		return nil, ErrUnsupportedKind
	}
	h := handle{output: id.Flow == patchbay.FlowOutput}
	if id.Flags.Has(patchbay.FlagStereoR) {
		h.channel = 1
	}
	return h, nil
}

func (b *Backend) UnregisterPort(patchbay.BackendHandle) error { return nil }

func (b *Backend) PullAudio(h patchbay.BackendHandle, buf []float32, startFrame, nframes int) {
	hh, ok := h.(handle)
	if !ok || hh.output {
		return
	}
	src := b.in[hh.channel]
	for i := startFrame; i < startFrame+nframes && i < len(src) && i < len(buf); i++ {
		buf[i] += src[i]
	}
}

func (b *Backend) PushAudio(h patchbay.BackendHandle, buf []float32, startFrame, nframes int) {
	hh, ok := h.(handle)
	if !ok || !hh.output {
		return
	}
	dst := b.out[hh.channel]
	for i := startFrame; i < startFrame+nframes && i < len(dst) && i < len(buf); i++ {
		dst[i] = buf[i]
	}
}

func (b *Backend) PullEvents(h patchbay.BackendHandle, events []patchbay.MidiEvent, startFrame, nframes int) []patchbay.MidiEvent {
	return events
}

func (b *Backend) PushEvents(patchbay.BackendHandle, []patchbay.MidiEvent, int, int) {}
