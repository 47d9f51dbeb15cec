package engine

import "time"

// TrackProcessor is the real-time producer for one track: once per cycle it
// decides the recording transitions for the track and its automation lanes
// and enqueues pooled events describing the slice of signal just produced.
// All state it consults lives on the producer side; the consumer keeps its
// own region pointers.
type TrackProcessor struct {
	engine *Engine
	track  *Track

	recordingStarted bool
}

func newTrackProcessor(e *Engine, t *Track) *TrackProcessor {
	return &TrackProcessor{engine: e, track: t}
}

// Recording reports whether the producer currently has a recording open for
// the track.
func (tp *TrackProcessor) Recording() bool { return tp.recordingStarted }

func (tp *TrackProcessor) enqueue(kind RecordingEventKind, gStart int64, localOffset, nframes int) *RecordingEvent {
	ev := tp.engine.queue.get()
	if ev == nil {
		// pool exhausted: the notification for this cycle is dropped, the
		// signal processing is unaffected
		return nil
	}
	ev.Kind = kind
	ev.GStartFrame = gStart
	ev.LocalOffset = localOffset
	ev.NFrames = nframes
	ev.Track = tp.track.Pos
	return ev
}

// handleRecording runs the per-cycle recording logic: transition decisions
// first (start/stop/split for the track and each automation lane), then the
// captured material (MIDI events, the audio block, automation samples).
// reachedLoopEnd marks a range ending exactly at the loop end, with another
// call following from the loop start.
func (tp *TrackProcessor) handleRecording(gStart int64, localOffset, nframes int, reachedLoopEnd bool) {
	tr := tp.track
	tpt := tp.engine.Transport
	now := time.Now()
	stopRecording := false
	insidePunch := tpt.InsidePunchRange(gStart)

	if !tpt.Recording || !tr.RecordEnabled || !tpt.Rolling || !insidePunch {
		if tr.CanRecord() && tp.recordingStarted {
			if ev := tp.enqueue(RecEventStopTrack, gStart, localOffset, nframes); ev != nil {
				tp.engine.queue.push(ev)
			}
			tp.recordingStarted = false
		}
		stopRecording = true
	}
	// the split event must follow the material of the range ending at the
	// loop end, so it is enqueued after the material below
	splitPending := false
	if !stopRecording && tr.CanRecord() {
		if reachedLoopEnd && tp.recordingStarted {
			splitPending = true
		} else if !tp.recordingStarted {
			if ev := tp.enqueue(RecEventStartTrack, gStart, localOffset, nframes); ev != nil && tp.engine.queue.push(ev) {
				tp.recordingStarted = true
			}
		}
	}

	for _, at := range tr.Automation {
		shouldRecord := tpt.Rolling && insidePunch && at.ShouldBeRecording(now)
		if !shouldRecord && at.recordingStarted {
			if ev := tp.enqueue(RecEventStopAutomation, gStart, localOffset, nframes); ev != nil {
				ev.PortID = at.PortID
				tp.engine.queue.push(ev)
			}
			at.recordingStarted = false
		}
		if shouldRecord {
			atSplit := false
			if at.recordingStarted && reachedLoopEnd {
				if ev := tp.enqueue(RecEventSplitAutomation, gStart, localOffset, nframes); ev != nil {
					ev.PortID = at.PortID
					ev.LoopStart = tpt.LoopStart
					tp.engine.queue.push(ev)
				}
				atSplit = true
			} else if !at.recordingStarted {
				if ev := tp.enqueue(RecEventStartAutomation, gStart, localOffset, nframes); ev != nil {
					ev.PortID = at.PortID
					if tp.engine.queue.push(ev) {
						at.recordingStarted = true
					}
				}
			}
			if !atSplit {
				if ev := tp.enqueue(RecEventAutomation, gStart, localOffset, nframes); ev != nil {
					ev.PortID = at.PortID
					ev.Value = at.Port.Value
					ev.Normalized = at.Port.NormalizedValue()
					tp.engine.queue.push(ev)
				}
			}
		}
	}

	if stopRecording || !tp.recordingStarted {
		return
	}

	switch tr.Type {
	case TrackMidi:
		in := tr.MidiIn
		sent := 0
		for _, me := range in.Events {
			if me.Frame < localOffset || me.Frame >= localOffset+nframes {
				continue
			}
			ev := tp.enqueue(RecEventMidi, gStart, localOffset, nframes)
			if ev == nil {
				break
			}
			ev.HasMidi = true
			ev.Midi = me
			tp.engine.queue.push(ev)
			sent++
		}
		if sent == 0 {
			// an empty MIDI event still grows the open region's end
			if ev := tp.enqueue(RecEventMidi, gStart, localOffset, nframes); ev != nil {
				tp.engine.queue.push(ev)
			}
		}
	case TrackAudio:
		ev := tp.enqueue(RecEventAudio, gStart, localOffset, nframes)
		if ev == nil {
			return
		}
		ev.L = append(ev.L, tr.StereoIn.L.Buf...)
		ev.R = append(ev.R, tr.StereoIn.R.Buf...)
		tp.engine.queue.push(ev)
	}

	if splitPending {
		if ev := tp.enqueue(RecEventSplitTrack, gStart, localOffset, nframes); ev != nil {
			ev.LoopStart = tpt.LoopStart
			tp.engine.queue.push(ev)
		}
	}
}
