package engine

import "patchbay"

type (
	// RecordingEventKind tags what a recording event carries. The event is a
	// single pooled struct rather than one type per kind so that the
	// real-time producer can reuse a fixed-size allocation; only the fields
	// relevant to the kind are meaningful.
	RecordingEventKind int

	// RecordingEvent is the message the real-time path enqueues to notify
	// the recording consumer. Events are allocated from a fixed pool, pushed
	// onto the queue, consumed, and returned to the pool; they are never
	// individually heap-allocated during steady-state operation. An event is
	// immutable once pushed.
	RecordingEvent struct {
		Kind        RecordingEventKind
		GStartFrame int64
		LocalOffset int
		NFrames     int
		Track       int

		// split kinds carry the position where the next region begins
		LoopStart int64

		// RecEventMidi
		HasMidi bool
		Midi    patchbay.MidiEvent

		// automation kinds; value and normalized value are sampled on the
		// producer side, the consumer never touches the port
		PortID     patchbay.PortIdentifier
		Value      float32
		Normalized float32

		// RecEventAudio; capacity is the engine block length
		L, R []float32
	}
)

const (
	RecEventStartTrack RecordingEventKind = iota
	RecEventStopTrack
	RecEventSplitTrack
	RecEventStartAutomation
	RecEventStopAutomation
	RecEventSplitAutomation
	RecEventMidi
	RecEventAudio
	RecEventAutomation
)

func (k RecordingEventKind) String() string {
	switch k {
	case RecEventStartTrack:
		return "start track recording"
	case RecEventStopTrack:
		return "stop track recording"
	case RecEventSplitTrack:
		return "split track recording"
	case RecEventStartAutomation:
		return "start automation recording"
	case RecEventStopAutomation:
		return "stop automation recording"
	case RecEventSplitAutomation:
		return "split automation recording"
	case RecEventMidi:
		return "midi"
	case RecEventAudio:
		return "audio"
	case RecEventAutomation:
		return "automation"
	}
	return "unknown"
}

func (ev *RecordingEvent) reset() {
	ev.Kind = 0
	ev.GStartFrame = 0
	ev.LocalOffset = 0
	ev.NFrames = 0
	ev.Track = 0
	ev.LoopStart = 0
	ev.HasMidi = false
	ev.Midi = patchbay.MidiEvent{}
	ev.PortID = patchbay.PortIdentifier{}
	ev.Value = 0
	ev.Normalized = 0
	ev.L = ev.L[:0]
	ev.R = ev.R[:0]
}
