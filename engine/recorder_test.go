package engine_test

import (
	"testing"

	"gitlab.com/gomidi/midi/v2"

	"patchbay"
	"patchbay/engine"
)

// scriptBackend feeds scripted MIDI events and constant audio into the
// engine-level input ports, one script entry per processed cycle.
type scriptBackend struct {
	midiScript [][]patchbay.MidiEvent
	cycle      int
	inL, inR   float32
}

func (s *scriptBackend) RegisterPort(id patchbay.PortIdentifier) (patchbay.BackendHandle, error) {
	return id, nil
}

func (s *scriptBackend) UnregisterPort(patchbay.BackendHandle) error { return nil }

func (s *scriptBackend) PullAudio(h patchbay.BackendHandle, buf []float32, startFrame, nframes int) {
	id, ok := h.(patchbay.PortIdentifier)
	if !ok || id.Flow != patchbay.FlowInput {
		return
	}
	v := s.inL
	if id.Flags.Has(patchbay.FlagStereoR) {
		v = s.inR
	}
	for i := startFrame; i < startFrame+nframes; i++ {
		buf[i] += v
	}
}

func (s *scriptBackend) PushAudio(patchbay.BackendHandle, []float32, int, int) {}

func (s *scriptBackend) PullEvents(h patchbay.BackendHandle, events []patchbay.MidiEvent, startFrame, nframes int) []patchbay.MidiEvent {
	id, ok := h.(patchbay.PortIdentifier)
	if !ok || id.Flow != patchbay.FlowInput {
		return events
	}
	if s.cycle >= len(s.midiScript) {
		return events
	}
	for _, ev := range s.midiScript[s.cycle] {
		if len(events) < cap(events) {
			events = append(events, ev)
		}
	}
	s.cycle++
	return events
}

func (s *scriptBackend) PushEvents(patchbay.BackendHandle, []patchbay.MidiEvent, int, int) {}

type recordedActions struct {
	actions []engine.UndoableAction
}

func (u *recordedActions) Perform(a engine.UndoableAction) { u.actions = append(u.actions, a) }

func newRecordingEngine(t *testing.T, backend patchbay.Backend, typ engine.TrackType) (*engine.Engine, *engine.Track, *recordedActions) {
	t.Helper()
	undo := &recordedActions{}
	e, err := engine.New(engine.Config{
		BlockLength: 4,
		SampleRate:  44100,
		Backend:     backend,
		Undo:        undo,
	})
	if err != nil {
		t.Fatal(err)
	}
	track, err := e.AddTrack("Take", typ)
	if err != nil {
		t.Fatal(err)
	}
	track.RecordEnabled = true
	e.Transport.Rolling = true
	e.Transport.Recording = true
	return e, track, undo
}

func TestRecordMidiRegion(t *testing.T) {
	backend := &scriptBackend{
		midiScript: [][]patchbay.MidiEvent{
			{{Frame: 1, Message: midi.NoteOn(0, 60, 100)}},
			{},
			{{Frame: 2, Message: midi.NoteOff(0, 60)}},
		},
	}
	e, track, undo := newRecordingEngine(t, backend, engine.TrackMidi)

	for i := 0; i < 3; i++ {
		e.Process(4)
	}
	e.Recorder().ProcessEvents()

	if len(track.Lanes[0].Regions) != 1 {
		t.Fatalf("got %d regions, want 1", len(track.Lanes[0].Regions))
	}
	r := track.Lanes[0].Regions[0]
	if r.Start != 0 {
		t.Fatalf("region should start at 0, got %d", r.Start)
	}
	if r.End != 12 {
		t.Fatalf("region should have grown to 12, got %d", r.End)
	}
	if len(r.Notes) != 1 {
		t.Fatalf("got %d notes, want 1", len(r.Notes))
	}
	n := r.Notes[0]
	if n.Pitch != 60 || n.Start != 1 || n.End != 10 {
		t.Fatalf("note should be pitch 60 spanning [1,10], got pitch %d [%d,%d]", n.Pitch, n.Start, n.End)
	}

	// stopping emits the stop event and performs the undoable action
	e.Transport.Recording = false
	e.Process(4)
	e.Recorder().ProcessEvents()
	if len(undo.actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(undo.actions))
	}
	if got := undo.actions[0].String(); got != "record 1 region" {
		t.Fatalf("unexpected action name %q", got)
	}
}

func TestRecordingStartIsIdempotent(t *testing.T) {
	backend := &scriptBackend{}
	e, track, _ := newRecordingEngine(t, backend, engine.TrackMidi)
	for i := 0; i < 5; i++ {
		e.Process(4)
		e.Recorder().ProcessEvents()
	}
	if len(track.Lanes[0].Regions) != 1 {
		t.Fatalf("continuous recording should create exactly one region, got %d",
			len(track.Lanes[0].Regions))
	}
}

func TestRecordAudioSplitsAtLoopEnd(t *testing.T) {
	backend := &scriptBackend{inL: 0.25, inR: 0.5}
	e, track, undo := newRecordingEngine(t, backend, engine.TrackAudio)
	e.Transport.LoopEnabled = true
	e.Transport.LoopStart = 2
	e.Transport.LoopEnd = 10

	// cycles at 0, 4, then 8..10 split and continue 2..4
	for i := 0; i < 3; i++ {
		e.Process(4)
	}
	e.Recorder().ProcessEvents()

	if len(track.Lanes) < 2 {
		t.Fatalf("split should open a second lane, got %d lanes", len(track.Lanes))
	}
	if len(track.Lanes[0].Regions) != 1 || len(track.Lanes[1].Regions) != 1 {
		t.Fatalf("want one region per lane, got %d and %d",
			len(track.Lanes[0].Regions), len(track.Lanes[1].Regions))
	}
	first := track.Lanes[0].Regions[0]
	second := track.Lanes[1].Regions[0]
	if first.Start != 0 || first.End != 10 {
		t.Fatalf("first region should span [0,10), got [%d,%d)", first.Start, first.End)
	}
	if second.Start != 2 {
		t.Fatalf("second region should start at the loop start, got %d", second.Start)
	}
	if first.Clip.NumFrames() != 10 {
		t.Fatalf("first clip should hold 10 frames, got %d", first.Clip.NumFrames())
	}
	// the track records its stereo input, which the backend fills
	if first.Clip.Frames[0] != 0.25 || first.Clip.Frames[1] != 0.5 {
		t.Fatalf("clip should hold the input samples, got %v / %v",
			first.Clip.Frames[0], first.Clip.Frames[1])
	}

	e.Transport.Recording = false
	e.Process(4)
	e.Recorder().ProcessEvents()
	if len(undo.actions) != 1 {
		t.Fatalf("the whole pass should be one action, got %d", len(undo.actions))
	}
	if regions := undo.actions[0].(*engine.RecordAction).Regions(); len(regions) != 2 {
		t.Fatalf("the action should cover both regions, got %d", len(regions))
	}
}

func TestRecordSplitsWhenLoopEndOnBlockBoundary(t *testing.T) {
	backend := &scriptBackend{inL: 0.25, inR: 0.5}
	e, track, _ := newRecordingEngine(t, backend, engine.TrackAudio)
	e.Transport.LoopEnabled = true
	e.Transport.LoopStart = 0
	e.Transport.LoopEnd = 8

	// cycles at 0, 4..8 ending exactly on the loop end, then 0 again
	for i := 0; i < 3; i++ {
		e.Process(4)
	}
	e.Recorder().ProcessEvents()

	if e.Transport.Pos != 4 {
		t.Fatalf("transport should have wrapped at the loop end, playhead at %d", e.Transport.Pos)
	}
	if len(track.Lanes) < 2 {
		t.Fatalf("recording should have split into a second lane, got %d lanes", len(track.Lanes))
	}
	first := track.Lanes[0].Regions[0]
	if first.End != 8 {
		t.Fatalf("pre-boundary region should end at the loop end 8, got %d", first.End)
	}
	if first.Clip.NumFrames() != 8 {
		t.Fatalf("pre-boundary clip should hold 8 frames, got %d", first.Clip.NumFrames())
	}
	second := track.Lanes[1].Regions[0]
	if second.Start != 0 || second.End != 4 {
		t.Fatalf("post-boundary region should span [0,4), got [%d,%d)", second.Start, second.End)
	}
}

func TestRecordActionUndoRedo(t *testing.T) {
	backend := &scriptBackend{}
	e, track, undo := newRecordingEngine(t, backend, engine.TrackMidi)
	e.Process(4)
	e.Transport.Recording = false
	e.Process(4)
	e.Recorder().ProcessEvents()

	if len(undo.actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(undo.actions))
	}
	a := undo.actions[0]
	if err := a.Undo(); err != nil {
		t.Fatalf("undo failed: %v", err)
	}
	if len(track.Lanes[0].Regions) != 0 {
		t.Fatal("undo should remove the recorded region")
	}
	if err := a.Redo(); err != nil {
		t.Fatalf("redo failed: %v", err)
	}
	if len(track.Lanes[0].Regions) != 1 {
		t.Fatal("redo should restore the recorded region")
	}
}

func TestAutomationLatchRecording(t *testing.T) {
	backend := &scriptBackend{}
	e, track, _ := newRecordingEngine(t, backend, engine.TrackMidi)
	e.Transport.Recording = false // automation arming is independent of track recording
	track.RecordEnabled = false

	ctl := e.Graph.NewPort(patchbay.KindControl, patchbay.FlowInput, "Volume")
	ctl.SetOwnerTrack(track)
	ctl.SetControlRange(0, 1)
	at := e.AddAutomationTrack(track, ctl, engine.RecordModeLatch)
	at.Armed = true

	ctl.SetControlValue(0.3)
	e.Process(4)
	e.Process(4) // same value, no new point
	ctl.SetControlValue(0.6)
	e.Process(4)
	e.Recorder().ProcessEvents()

	if len(at.Regions) != 1 {
		t.Fatalf("got %d automation regions, want 1", len(at.Regions))
	}
	r := at.Regions[0]
	if len(r.Points) != 2 {
		t.Fatalf("got %d points, want 2", len(r.Points))
	}
	if r.Points[0].Pos != 0 || r.Points[0].Value != 0.3 {
		t.Fatalf("first point should be 0.3 at 0, got %v at %d", r.Points[0].Value, r.Points[0].Pos)
	}
	if r.Points[1].Pos != 8 || r.Points[1].Value != 0.6 {
		t.Fatalf("second point should be 0.6 at 8, got %v at %d", r.Points[1].Value, r.Points[1].Pos)
	}

	at.Armed = false
	e.Process(4)
	e.Recorder().ProcessEvents()
	if e.Recorder().Recording() {
		t.Fatal("disarming should close the automation recording")
	}
}

func TestPunchRangeGatesRecording(t *testing.T) {
	backend := &scriptBackend{}
	e, track, _ := newRecordingEngine(t, backend, engine.TrackMidi)
	e.Transport.PunchEnabled = true
	e.Transport.PunchStart = 4
	e.Transport.PunchEnd = 8

	for i := 0; i < 3; i++ {
		e.Process(4)
	}
	e.Recorder().ProcessEvents()

	if len(track.Lanes[0].Regions) != 1 {
		t.Fatalf("got %d regions, want 1", len(track.Lanes[0].Regions))
	}
	r := track.Lanes[0].Regions[0]
	if r.Start != 4 || r.End != 8 {
		t.Fatalf("region should cover the punch range [4,8), got [%d,%d)", r.Start, r.End)
	}
}
