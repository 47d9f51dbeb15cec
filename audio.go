package patchbay

import "errors"

type (
	// BackendHandle is the opaque per-port handle returned by a Backend when
	// a port is registered with it. Its concrete type belongs to the backend.
	BackendHandle interface{}

	// Backend is the data-exchange contract with a low-latency audio/MIDI
	// backend. The engine only calls these; concrete backends live in the
	// adapter packages. All frame windows are block-local: [startFrame,
	// startFrame+nframes) within the current processing block. The Pull/Push
	// calls run on the real-time path and must not block or allocate.
	Backend interface {
		// RegisterPort exposes a port to the backend and returns a handle for
		// the data calls.
		RegisterPort(id PortIdentifier) (BackendHandle, error)
		// UnregisterPort removes a previously registered port.
		UnregisterPort(h BackendHandle) error
		// PullAudio adds externally arrived samples into buf over the window.
		PullAudio(h BackendHandle, buf []float32, startFrame, nframes int)
		// PushAudio sends buf's window to the backend output.
		PushAudio(h BackendHandle, buf []float32, startFrame, nframes int)
		// PullEvents appends externally arrived events within the window to
		// events and returns the extended slice. It must not grow the slice
		// beyond its capacity.
		PullEvents(h BackendHandle, events []MidiEvent, startFrame, nframes int) []MidiEvent
		// PushEvents sends the events within the window to the backend
		// output.
		PushEvents(h BackendHandle, events []MidiEvent, startFrame, nframes int)
	}

	// AudioSink is a monitor output that playback can be written to.
	AudioSink interface {
		WriteAudio(buffer []float32) error
		Close() error
	}

	// AudioContext is a connection to an audio playback device.
	AudioContext interface {
		Output() AudioSink
		Close() error
	}

	// MultiBackend composes a backend handling audio ports with one handling
	// event ports, routing each registration by the port's signal kind.
	MultiBackend struct {
		Audio  Backend
		Events Backend
	}

	multiHandle struct {
		backend Backend
		handle  BackendHandle
	}
)

var ErrNoBackendForKind = errors.New("no backend for signal kind")

func (m *MultiBackend) pick(kind SignalKind) Backend {
	switch kind {
	case KindAudio, KindCV:
		return m.Audio
	case KindEvent:
		return m.Events
	}
	return nil
}

func (m *MultiBackend) RegisterPort(id PortIdentifier) (BackendHandle, error) {
	b := m.pick(id.Kind)
	if b == nil {
		return nil, ErrNoBackendForKind
	}
	h, err := b.RegisterPort(id)
	if err != nil {
		return nil, err
	}
	return multiHandle{backend: b, handle: h}, nil
}

func (m *MultiBackend) UnregisterPort(h BackendHandle) error {
	mh, ok := h.(multiHandle)
	if !ok {
		return errors.New("foreign backend handle")
	}
	return mh.backend.UnregisterPort(mh.handle)
}

func (m *MultiBackend) PullAudio(h BackendHandle, buf []float32, startFrame, nframes int) {
	if mh, ok := h.(multiHandle); ok {
		mh.backend.PullAudio(mh.handle, buf, startFrame, nframes)
	}
}

func (m *MultiBackend) PushAudio(h BackendHandle, buf []float32, startFrame, nframes int) {
	if mh, ok := h.(multiHandle); ok {
		mh.backend.PushAudio(mh.handle, buf, startFrame, nframes)
	}
}

func (m *MultiBackend) PullEvents(h BackendHandle, events []MidiEvent, startFrame, nframes int) []MidiEvent {
	if mh, ok := h.(multiHandle); ok {
		return mh.backend.PullEvents(mh.handle, events, startFrame, nframes)
	}
	return events
}

func (m *MultiBackend) PushEvents(h BackendHandle, events []MidiEvent, startFrame, nframes int) {
	if mh, ok := h.(multiHandle); ok {
		mh.backend.PushEvents(mh.handle, events, startFrame, nframes)
	}
}
