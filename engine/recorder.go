package engine

import (
	"log"
	"sync"
	"time"

	"patchbay"
)

// consumerInterval is how often the recorder wakes up to drain the queue.
const consumerInterval = 12 * time.Millisecond

// Recorder is the recording consumer: a single goroutine that drains the
// event queue in arrival order and turns the notifications into regions,
// notes, clips and automation points. It owns all region mutation; the
// real-time producers never touch timeline state.
type Recorder struct {
	engine *Engine
	undo   UndoManager
	clips  ClipWriter

	// number of recordings currently open across tracks and automation
	numActive int
	action    *RecordAction

	closer    chan struct{}
	finished  chan struct{}
	closeOnce sync.Once
	started   bool
}

// ClipWriter receives the audio clip of each finished audio region, e.g. to
// write it out as a wav file.
type ClipWriter interface {
	WriteClip(name string, sampleRate int, clip *patchbay.AudioClip) error
}

func newRecorder(e *Engine, undo UndoManager, clips ClipWriter) *Recorder {
	return &Recorder{
		engine:   e,
		undo:     undo,
		clips:    clips,
		closer:   make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Recording reports whether any recording is currently open on the consumer
// side.
func (rc *Recorder) Recording() bool { return rc.numActive > 0 }

// Start launches the consumer goroutine.
func (rc *Recorder) Start() {
	if rc.started {
		return
	}
	rc.started = true
	go rc.run()
}

// Close stops the consumer after a final drain and waits for it to finish.
// Safe to call without Start, and more than once.
func (rc *Recorder) Close() {
	rc.closeOnce.Do(func() {
		close(rc.closer)
		if !rc.started {
			close(rc.finished)
		}
	})
	<-rc.finished
}

func (rc *Recorder) run() {
	defer close(rc.finished)
	ticker := time.NewTicker(consumerInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rc.closer:
			rc.ProcessEvents()
			return
		case <-ticker.C:
			rc.ProcessEvents()
		}
	}
}

// ProcessEvents drains the queue completely, handling events in the order
// the producers pushed them. Normally called from the consumer goroutine;
// tests call it directly.
func (rc *Recorder) ProcessEvents() {
	for {
		ev, ok := rc.engine.queue.pop()
		if !ok {
			return
		}
		rc.handle(ev)
		rc.engine.queue.ret(ev)
	}
}

func (rc *Recorder) handle(ev *RecordingEvent) {
	if ev.Track < 0 || ev.Track >= len(rc.engine.Tracks) {
		log.Printf("recorder: event %v for unknown track %d", ev.Kind, ev.Track)
		return
	}
	tr := rc.engine.Tracks[ev.Track]
	switch ev.Kind {
	case RecEventStartTrack:
		rc.startTrack(tr, ev)
	case RecEventStopTrack:
		rc.stopTrack(tr)
	case RecEventSplitTrack:
		rc.splitTrack(tr, ev)
	case RecEventMidi:
		rc.recordMidi(tr, ev)
	case RecEventAudio:
		rc.recordAudio(tr, ev)
	case RecEventStartAutomation:
		rc.startAutomation(tr, ev)
	case RecEventStopAutomation:
		rc.stopAutomation(tr, ev)
	case RecEventSplitAutomation:
		rc.splitAutomation(tr, ev)
	case RecEventAutomation:
		rc.recordAutomation(tr, ev)
	}
}

// created registers a region with the pending action. A split creates a new
// region without opening a new recording, so the active count is kept
// separately by the start and stop handlers.
func (rc *Recorder) created(t *Track, r *patchbay.Region) {
	if rc.action == nil {
		rc.action = &RecordAction{}
	}
	rc.action.add(t, r)
}

// closed decrements the open-recording count; when the last one stops, the
// whole pass becomes one undoable action and finished audio clips are
// handed to the clip writer.
func (rc *Recorder) closed() {
	rc.numActive--
	if rc.numActive > 0 {
		return
	}
	rc.numActive = 0
	if rc.action == nil {
		return
	}
	if rc.clips != nil {
		for _, r := range rc.action.Regions() {
			if r.ID.Type != patchbay.RegionAudio || r.Clip == nil {
				continue
			}
			if err := rc.clips.WriteClip(r.Name, rc.engine.SampleRate, r.Clip); err != nil {
				log.Printf("recorder: writing clip %q: %v", r.Name, err)
			}
		}
	}
	if rc.undo != nil {
		rc.undo.Perform(rc.action)
	}
	rc.action = nil
}

func regionType(t *Track) patchbay.RegionType {
	if t.Type == TrackAudio {
		return patchbay.RegionAudio
	}
	return patchbay.RegionMidi
}

func (rc *Recorder) newTrackRegion(t *Track, lane int, start, end int64) *patchbay.Region {
	r := patchbay.NewRegion(regionType(t), patchbay.RegionIdentifier{
		Type:  regionType(t),
		Track: t.Pos,
		Lane:  lane,
	}, start, end)
	r.Name = t.Name + " - recording"
	t.AddRegion(r)
	rc.created(t, r)
	return r
}

func (rc *Recorder) startTrack(t *Track, ev *RecordingEvent) {
	if t.recordingRegion != nil {
		return
	}
	lane := len(t.Lanes) - 1
	t.recordingRegion = rc.newTrackRegion(t, lane, ev.GStartFrame, ev.GStartFrame+int64(ev.NFrames))
	rc.numActive++
}

func (rc *Recorder) stopTrack(t *Track) {
	r := t.recordingRegion
	if r == nil {
		return
	}
	r.EndAllNotes(r.Length())
	t.recordingRegion = nil
	rc.closed()
}

// splitTrack closes the open region exactly at the loop end and continues
// recording into a fresh region, one lane down, starting at the loop start.
func (rc *Recorder) splitTrack(t *Track, ev *RecordingEvent) {
	r := t.recordingRegion
	if r == nil {
		return
	}
	boundary := ev.GStartFrame + int64(ev.NFrames)
	r.SetEnd(boundary)
	r.EndAllNotes(boundary - r.Start)
	if r.Clip != nil {
		r.Clip.Resize(r.Length())
	}
	t.recordingRegion = rc.newTrackRegion(t, r.ID.Lane+1, ev.LoopStart, ev.LoopStart)
}

func (rc *Recorder) recordMidi(t *Track, ev *RecordingEvent) {
	r := t.recordingRegion
	if r == nil {
		return
	}
	end := ev.GStartFrame + int64(ev.NFrames)
	if end > r.End {
		r.SetEnd(end)
	}
	if !ev.HasMidi {
		return
	}
	pos := ev.GStartFrame + int64(ev.Midi.Frame-ev.LocalOffset) - r.Start
	if pitch, vel, ok := ev.Midi.NoteOn(); ok {
		r.StartNote(pitch, vel, pos)
	} else if pitch, ok := ev.Midi.NoteOff(); ok {
		if !r.EndNote(pitch, pos) {
			log.Printf("recorder: note off for pitch %d with no open note", pitch)
		}
	}
}

func (rc *Recorder) recordAudio(t *Track, ev *RecordingEvent) {
	r := t.recordingRegion
	if r == nil || r.Clip == nil {
		return
	}
	end := ev.GStartFrame + int64(ev.NFrames)
	if end > r.End {
		r.SetEnd(end)
	}
	startRel := ev.GStartFrame - r.Start
	if startRel < 0 {
		return
	}
	if r.Clip.NumFrames() < startRel+int64(ev.NFrames) {
		r.Clip.Resize(startRel + int64(ev.NFrames))
	}
	for i := 0; i < ev.NFrames; i++ {
		j := ev.LocalOffset + i
		if j >= len(ev.L) || j >= len(ev.R) {
			break
		}
		r.Clip.WriteStereo(startRel+int64(i), ev.L[j], ev.R[j])
	}
}

func (rc *Recorder) newAutomationRegion(at *AutomationTrack, start, end int64) *patchbay.Region {
	r := patchbay.NewRegion(patchbay.RegionAutomation, patchbay.RegionIdentifier{
		Type:  patchbay.RegionAutomation,
		Track: at.Track.Pos,
		Lane:  at.Index,
	}, start, end)
	r.Name = at.PortID.Label + " - automation"
	at.Track.AddRegion(r)
	rc.created(at.Track, r)
	return r
}

func (rc *Recorder) startAutomation(t *Track, ev *RecordingEvent) {
	at := t.automationForPort(&ev.PortID)
	if at == nil || at.recordingRegion != nil {
		return
	}
	// continue into an existing region when the playhead is inside one
	if r := at.RegionBefore(ev.GStartFrame); r != nil && r.End >= ev.GStartFrame {
		r.ClearLastRecordedPoint()
		at.recordingRegion = r
	} else {
		at.recordingRegion = rc.newAutomationRegion(at, ev.GStartFrame, ev.GStartFrame+int64(ev.NFrames))
	}
	at.haveLastValue = false
	rc.numActive++
}

func (rc *Recorder) stopAutomation(t *Track, ev *RecordingEvent) {
	at := t.automationForPort(&ev.PortID)
	if at == nil || at.recordingRegion == nil {
		return
	}
	at.recordingRegion.ClearLastRecordedPoint()
	at.recordingRegion = nil
	at.haveLastValue = false
	rc.closed()
}

func (rc *Recorder) splitAutomation(t *Track, ev *RecordingEvent) {
	at := t.automationForPort(&ev.PortID)
	if at == nil || at.recordingRegion == nil {
		return
	}
	r := at.recordingRegion
	boundary := ev.GStartFrame + int64(ev.NFrames)
	if boundary > r.End {
		r.SetEnd(boundary)
	}
	r.ClearLastRecordedPoint()
	at.recordingRegion = rc.newAutomationRegion(at, ev.LoopStart, ev.LoopStart)
	at.haveLastValue = false
}

// recordAutomation writes one sampled control value. A point is placed only
// when the value differs from the previously recorded one; in latch mode
// every pre-existing point the recording rolls over is deleted.
func (rc *Recorder) recordAutomation(t *Track, ev *RecordingEvent) {
	at := t.automationForPort(&ev.PortID)
	if at == nil || at.recordingRegion == nil {
		return
	}
	r := at.recordingRegion
	end := ev.GStartFrame + int64(ev.NFrames)
	if end > r.End {
		r.SetEnd(end)
	}
	pos := ev.GStartFrame - r.Start
	if at.Mode == RecordModeLatch {
		for {
			idx := r.PointsSinceLastRecorded(pos)
			if len(idx) == 0 {
				break
			}
			r.RemovePoint(idx[len(idx)-1])
		}
	}
	if at.haveLastValue && at.lastRecordedValue == ev.Value {
		return
	}
	r.AddPoint(patchbay.AutomationPoint{Pos: pos, Value: ev.Value, Normalized: ev.Normalized})
	at.lastRecordedValue = ev.Value
	at.haveLastValue = true
}
