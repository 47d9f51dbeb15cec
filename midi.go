package patchbay

import "gitlab.com/gomidi/midi/v2"

// MidiEvent is a frame-stamped MIDI message. On an event port, Frame is
// relative to the start of the current processing block; in a recording event
// it keeps the same block-local meaning, with the block's global start frame
// carried alongside.
type MidiEvent struct {
	Frame   int
	Message midi.Message
}

// NoteOn reports whether the event is a note-on and returns its pitch and
// velocity. Note-ons with zero velocity are treated as note-offs, as on the
// wire.
func (e MidiEvent) NoteOn() (pitch, velocity uint8, ok bool) {
	var ch uint8
	if e.Message.GetNoteStart(&ch, &pitch, &velocity) {
		return pitch, velocity, true
	}
	return 0, 0, false
}

// NoteOff reports whether the event is a note-off (or a zero-velocity
// note-on) and returns its pitch.
func (e MidiEvent) NoteOff() (pitch uint8, ok bool) {
	var ch uint8
	if e.Message.GetNoteEnd(&ch, &pitch) {
		return pitch, true
	}
	return 0, false
}
