package engine

import (
	"sync/atomic"
	"time"

	"patchbay"
)

type (
	// TrackType tells what kind of material a track records: MIDI tracks
	// capture notes from their event input, audio tracks capture their
	// stereo input.
	TrackType int

	// RecordMode is the automation recording policy: touch writes points
	// only while the control is being moved, latch keeps writing (and erases
	// points it rolls over) once recording has started.
	RecordMode int

	// StereoPorts is a left/right pair of audio ports.
	StereoPorts struct {
		L, R *Port
	}

	// Track is one recordable unit: its engine-side ports, its lanes of
	// recorded regions, and its automation tracks. Region state is mutated
	// only by the recording consumer; the real-time side only reads the
	// record flags and enqueues events.
	Track struct {
		Name          string
		Pos           int
		Type          TrackType
		RecordEnabled bool

		StereoIn  *StereoPorts
		StereoOut *StereoPorts
		MidiIn    *Port
		PianoRoll *Port

		PreFader *Fader
		Fader    *Fader
		Plugins  []*Plugin

		Lanes      []*Lane
		Automation []*AutomationTrack

		Processor *TrackProcessor

		// consumer-side recording state
		recordingRegion *patchbay.Region

		midiActivity atomic.Bool
	}

	// Lane is an ordered list of regions on a track.
	Lane struct {
		Regions []*patchbay.Region
	}

	// AutomationTrack records the movements of one control port into
	// automation regions.
	AutomationTrack struct {
		Index  int
		Track  *Track
		PortID patchbay.PortIdentifier
		Port   *Port
		Mode   RecordMode
		Armed  bool

		Regions []*patchbay.Region

		// producer side
		recordingStarted bool
		// consumer side
		recordingRegion   *patchbay.Region
		lastRecordedValue float32
		haveLastValue     bool
	}

	// Fader applies gain and pan between a stereo in and out pair. The same
	// type serves as the prefader passthrough processor, distinguished by
	// its owner kind.
	Fader struct {
		track *Track
		owner patchbay.OwnerKind

		StereoIn  *StereoPorts
		StereoOut *StereoPorts

		Amp     float32
		Pan     float32
		PanLaw  PanLaw
		PanAlgo PanAlgorithm
	}

	// Plugin is the port surface of a hosted plugin. Hosting internals are
	// external; the engine only needs the ports for routing and identifier
	// resolution.
	Plugin struct {
		Track        *Track
		Slot         int
		InPorts      []*Port
		OutPorts     []*Port
		UnknownPorts []*Port
	}
)

const (
	TrackMidi TrackType = iota
	TrackAudio
)

const (
	RecordModeTouch RecordMode = iota
	RecordModeLatch
)

// touchTimeout is how long after the last control movement touch mode keeps
// recording.
const touchTimeout = 800 * time.Millisecond

// CanRecord reports whether the track type is recordable.
func (t *Track) CanRecord() bool {
	return t.Type == TrackMidi || t.Type == TrackAudio
}

// TakeMidiActivity returns and clears the had-activity indicator set by the
// propagator when events pass through the track's ports. Consumed by the UI
// layer.
func (t *Track) TakeMidiActivity() bool {
	return t.midiActivity.Swap(false)
}

// Lane returns the lane at the given index, growing the lane list as needed.
func (t *Track) Lane(i int) *Lane {
	for len(t.Lanes) <= i {
		t.Lanes = append(t.Lanes, &Lane{})
	}
	return t.Lanes[i]
}

// AddRegion appends a region to the lane named by the region's identifier
// (or to the automation track for automation regions) and stamps its index.
func (t *Track) AddRegion(r *patchbay.Region) {
	if r.ID.Type == patchbay.RegionAutomation {
		if r.ID.Lane < len(t.Automation) {
			at := t.Automation[r.ID.Lane]
			r.ID.Index = len(at.Regions)
			at.Regions = append(at.Regions, r)
		}
		return
	}
	lane := t.Lane(r.ID.Lane)
	r.ID.Index = len(lane.Regions)
	lane.Regions = append(lane.Regions, r)
}

// RemoveRegion detaches a region found by identifier. Used when undoing a
// record action.
func (t *Track) RemoveRegion(id patchbay.RegionIdentifier) bool {
	if id.Type == patchbay.RegionAutomation {
		if id.Lane >= len(t.Automation) {
			return false
		}
		at := t.Automation[id.Lane]
		for i, r := range at.Regions {
			if r.ID == id {
				at.Regions = append(at.Regions[:i], at.Regions[i+1:]...)
				return true
			}
		}
		return false
	}
	if id.Lane >= len(t.Lanes) {
		return false
	}
	lane := t.Lanes[id.Lane]
	for i, r := range lane.Regions {
		if r.ID == id {
			lane.Regions = append(lane.Regions[:i], lane.Regions[i+1:]...)
			return true
		}
	}
	return false
}

// FindRegion resolves a region identifier to the live region.
func (t *Track) FindRegion(id patchbay.RegionIdentifier) *patchbay.Region {
	var regions []*patchbay.Region
	if id.Type == patchbay.RegionAutomation {
		if id.Lane >= len(t.Automation) {
			return nil
		}
		regions = t.Automation[id.Lane].Regions
	} else {
		if id.Lane >= len(t.Lanes) {
			return nil
		}
		regions = t.Lanes[id.Lane].Regions
	}
	for _, r := range regions {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// automationForPort finds the automation track bound to the given control
// port.
func (t *Track) automationForPort(id *patchbay.PortIdentifier) *AutomationTrack {
	for _, at := range t.Automation {
		if at.PortID.Equal(id) {
			return at
		}
	}
	return nil
}

// ShouldBeRecording decides, once per cycle, whether the automation track
// wants to write points right now. In latch mode, once armed it records until
// disarmed. In touch mode it records only while the control has been moved
// within the touch timeout.
func (at *AutomationTrack) ShouldBeRecording(now time.Time) bool {
	if !at.Armed || at.Port == nil {
		return false
	}
	switch at.Mode {
	case RecordModeLatch:
		return true
	case RecordModeTouch:
		return !at.Port.lastChanged.IsZero() &&
			now.Sub(at.Port.lastChanged) < touchTimeout
	}
	return false
}

// RegionBefore returns the automation region whose span contains pos, or the
// latest region starting before it.
func (at *AutomationTrack) RegionBefore(pos int64) *patchbay.Region {
	var best *patchbay.Region
	for _, r := range at.Regions {
		if r.Start <= pos && (best == nil || r.Start >= best.Start) {
			best = r
		}
	}
	return best
}

// Process applies the fader gain and pan to its output pair after their
// buffers have been summed.
func (f *Fader) Process(startFrame, nframes int) {
	f.StereoOut.L.ApplyFader(f.Amp, startFrame, nframes)
	f.StereoOut.R.ApplyFader(f.Amp, startFrame, nframes)
	f.StereoOut.L.ApplyPan(f.Pan, f.PanLaw, f.PanAlgo, startFrame, nframes)
	f.StereoOut.R.ApplyPan(f.Pan, f.PanLaw, f.PanAlgo, startFrame, nframes)
}
