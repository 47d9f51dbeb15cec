// Package gomidi exchanges MIDI with hardware through rtmidi. It implements
// the event half of the patchbay backend contract: incoming messages are
// timestamped by the driver, buffered, and handed to the engine block by
// block with frame positions mapped onto the engine clock.
package gomidi

import (
	"errors"
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"patchbay"
)

type (
	RTMIDIBackend struct {
		driver             *rtmididrv.Driver
		sampleRate         int
		currentIn          drivers.In
		send               func(midi.Message) error
		inputDevices       []RTMIDIDevice
		devicesInitialized bool
		events             chan timestampedMsg
		pending            []timestampedMsg

		// engine clock, in frames since the stream started
		clockFrame int64
		// maps driver timestamps onto the engine clock; set from the first
		// message and then chased slowly to absorb drift
		startFrame    int64
		startFrameSet bool
	}

	RTMIDIDevice struct {
		backend *RTMIDIBackend
		in      drivers.In
	}

	timestampedMsg struct {
		frame int64
		msg   midi.Message
	}

	handle struct {
		output bool
	}
)

var ErrUnsupportedKind = errors.New("rtmidi backend only handles event ports")

// New opens the rtmidi driver. A missing driver is not an error; the backend
// simply has no devices then.
func New(sampleRate int) *RTMIDIBackend {
	b := &RTMIDIBackend{
		sampleRate: sampleRate,
		events:     make(chan timestampedMsg, 1024),
	}
	// there's not much we can do if this fails, so just use b.driver = nil
	// to indicate no driver available
	b.driver, _ = rtmididrv.New()
	return b
}

// InputDevices iterates over the available MIDI inputs.
func (b *RTMIDIBackend) InputDevices(yield func(RTMIDIDevice) bool) {
	if b.devicesInitialized {
		for _, device := range b.inputDevices {
			if !yield(device) {
				break
			}
		}
		return
	}
	if b.driver == nil {
		return
	}
	ins, err := b.driver.Ins()
	if err != nil {
		return
	}
	for i := 0; i < len(ins); i++ {
		device := RTMIDIDevice{backend: b, in: ins[i]}
		b.inputDevices = append(b.inputDevices, device)
		if !yield(device) {
			break
		}
	}
	b.devicesInitialized = true
}

// TryToOpenBy opens the first input whose name starts with namePrefix, or
// just the first input when takeFirst is set.
func (b *RTMIDIBackend) TryToOpenBy(namePrefix string, takeFirst bool) error {
	if namePrefix == "" && !takeFirst {
		return nil
	}
	var found bool
	b.InputDevices(func(device RTMIDIDevice) bool {
		if takeFirst || strings.HasPrefix(device.String(), namePrefix) {
			found = device.Open() == nil
			return false
		}
		return true
	})
	if !found {
		return fmt.Errorf("no MIDI input matching %q", namePrefix)
	}
	return nil
}

// OpenOutput opens the first available MIDI output for the engine's MIDI out
// port.
func (b *RTMIDIBackend) OpenOutput() error {
	if b.driver == nil {
		return errors.New("no driver available")
	}
	outs, err := b.driver.Outs()
	if err != nil || len(outs) == 0 {
		return errors.New("no MIDI output available")
	}
	if err := outs[0].Open(); err != nil {
		return fmt.Errorf("opening MIDI output failed: %w", err)
	}
	b.send, err = midi.SendTo(outs[0])
	return err
}

// Open opens the device for listening, closing the currently open one if
// necessary.
func (d RTMIDIDevice) Open() error {
	b := d.backend
	if b.currentIn == d.in {
		return nil
	}
	if b.driver == nil {
		return errors.New("no driver available")
	}
	if b.HasDeviceOpen() {
		b.currentIn.Close()
	}
	b.currentIn = d.in
	if err := d.in.Open(); err != nil {
		b.currentIn = nil
		return fmt.Errorf("opening MIDI input failed: %w", err)
	}
	if _, err := midi.ListenTo(d.in, b.handleMessage); err != nil {
		d.in.Close()
		b.currentIn = nil
		return err
	}
	return nil
}

func (d RTMIDIDevice) String() string { return d.in.String() }

func (b *RTMIDIBackend) HasDeviceOpen() bool {
	return b.currentIn != nil && b.currentIn.IsOpen()
}

func (b *RTMIDIBackend) Close() {
	if b.driver == nil {
		return
	}
	if b.currentIn != nil && b.currentIn.IsOpen() {
		b.currentIn.Close()
	}
	b.driver.Close()
}

func (b *RTMIDIBackend) handleMessage(msg midi.Message, timestampms int32) {
	m := timestampedMsg{
		frame: int64(timestampms) * int64(b.sampleRate) / 1000,
		msg:   msg,
	}
	select {
	case b.events <- m:
	default: // if the channel is full, just drop the message
	}
}

func (b *RTMIDIBackend) RegisterPort(id patchbay.PortIdentifier) (patchbay.BackendHandle, error) {
	if id.Kind != patchbay.KindEvent {
		return nil, ErrUnsupportedKind
	}
	return handle{output: id.Flow == patchbay.FlowOutput}, nil
}

func (b *RTMIDIBackend) UnregisterPort(patchbay.BackendHandle) error { return nil }

func (b *RTMIDIBackend) PullAudio(patchbay.BackendHandle, []float32, int, int) {}
func (b *RTMIDIBackend) PushAudio(patchbay.BackendHandle, []float32, int, int) {}

// PullEvents places the messages received since the last block into the
// window, clamped to it. The timestamp-to-frame mapping chases the engine
// clock so that a drifting driver clock moves events around gently instead
// of jumping.
func (b *RTMIDIBackend) PullEvents(h patchbay.BackendHandle, events []patchbay.MidiEvent, startFrame, nframes int) []patchbay.MidiEvent {
	hh, ok := h.(handle)
	if !ok || hh.output {
		return events
	}
F:
	for {
		select {
		case m := <-b.events:
			if !b.startFrameSet {
				b.startFrame = m.frame - b.clockFrame
				b.startFrameSet = true
			}
			b.pending = append(b.pending, m)
		default:
			break F
		}
	}
	consumed := 0
	for _, m := range b.pending {
		if len(events) >= cap(events) {
			break
		}
		rel := m.frame - b.startFrame - b.clockFrame
		frame := int(rel) + startFrame
		if frame >= startFrame+nframes {
			break
		}
		if frame < startFrame {
			// the event was due earlier than this window; play it now and
			// nudge the mapping towards the driver clock
			b.startFrame += rel / 5
			frame = startFrame
		}
		events = append(events, patchbay.MidiEvent{Frame: frame, Message: m.msg})
		consumed++
	}
	b.pending = b.pending[:copy(b.pending, b.pending[consumed:])]
	b.clockFrame += int64(nframes)
	return events
}

func (b *RTMIDIBackend) PushEvents(h patchbay.BackendHandle, events []patchbay.MidiEvent, startFrame, nframes int) {
	hh, ok := h.(handle)
	if !ok || !hh.output || b.send == nil {
		return
	}
	for _, ev := range events {
		if ev.Frame < startFrame || ev.Frame >= startFrame+nframes {
			continue
		}
		b.send(ev.Message)
	}
}
