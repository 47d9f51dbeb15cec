package patchbay

import "sort"

type (
	// RegionType is the kind of material a region holds.
	RegionType int

	// RegionIdentifier locates a region: its type, the owning track, the lane
	// (or automation track index for automation regions) and the index within
	// that lane.
	RegionIdentifier struct {
		Type  RegionType `yaml:"type"`
		Track int        `yaml:"track"`
		Lane  int        `yaml:"lane"`
		Index int        `yaml:"index"`
	}

	// Region is a timeline span of recorded or edited material. Start and End
	// are global frame positions; LoopEnd is relative to Start. Depending on
	// Type, the region owns an audio clip, a MIDI note list, or an ordered
	// list of automation points.
	Region struct {
		ID      RegionIdentifier `yaml:"id"`
		Name    string           `yaml:"name,omitempty"`
		Start   int64            `yaml:"start"`
		End     int64            `yaml:"end"`
		LoopEnd int64            `yaml:"loopEnd"`

		Clip   *AudioClip        `yaml:"clip,omitempty"`
		Notes  []MidiNote        `yaml:"notes,omitempty"`
		Points []AutomationPoint `yaml:"points,omitempty"`

		// indices into Notes of note-ons that have not seen their note-off
		// yet, in start order
		unended []int

		// index into Points of the point placed by the most recent recorded
		// value, or -1
		lastRecorded int
	}

	// AudioClip is the raw interleaved sample storage of an audio region.
	AudioClip struct {
		Channels int       `yaml:"channels"`
		Frames   []float32 `yaml:"-"`
	}

	// MidiNote is a recorded note. Start and End are frames relative to the
	// region start; End is -1 while the note is still held.
	MidiNote struct {
		Pitch    uint8 `yaml:"pitch"`
		Velocity uint8 `yaml:"velocity"`
		Start    int64 `yaml:"start"`
		End      int64 `yaml:"end"`
	}

	// AutomationPoint is a recorded control value at a position relative to
	// the region start. Value is in the port's native range, Normalized in
	// [0,1].
	AutomationPoint struct {
		Pos        int64   `yaml:"pos"`
		Value      float32 `yaml:"value"`
		Normalized float32 `yaml:"normalized"`
	}
)

const (
	RegionMidi RegionType = iota
	RegionAudio
	RegionAutomation
)

// NewRegion creates a region of the given type spanning [start, end). Audio
// regions get an empty stereo clip.
func NewRegion(typ RegionType, id RegionIdentifier, start, end int64) *Region {
	r := &Region{
		ID:           id,
		Start:        start,
		End:          end,
		LoopEnd:      end - start,
		lastRecorded: -1,
	}
	if typ == RegionAudio {
		r.Clip = &AudioClip{Channels: 2}
	}
	return r
}

// Length returns the region length in frames.
func (r *Region) Length() int64 { return r.End - r.Start }

// SetEnd moves the region end and keeps the loop end at the region end.
func (r *Region) SetEnd(end int64) {
	r.End = end
	r.LoopEnd = end - r.Start
}

// StartNote opens a held note at the given region-relative position.
func (r *Region) StartNote(pitch, velocity uint8, start int64) {
	r.Notes = append(r.Notes, MidiNote{Pitch: pitch, Velocity: velocity, Start: start, End: -1})
	r.unended = append(r.unended, len(r.Notes)-1)
}

// EndNote closes the oldest held note with the given pitch at the given
// region-relative position. It reports whether such a note was found.
func (r *Region) EndNote(pitch uint8, end int64) bool {
	for i, ni := range r.unended {
		if r.Notes[ni].Pitch == pitch {
			r.Notes[ni].End = end
			r.unended = append(r.unended[:i], r.unended[i+1:]...)
			return true
		}
	}
	return false
}

// EndAllNotes closes every held note at the given region-relative position.
// Used when a recording splits at the loop boundary.
func (r *Region) EndAllNotes(end int64) {
	for _, ni := range r.unended {
		r.Notes[ni].End = end
	}
	r.unended = r.unended[:0]
}

// AddPoint inserts an automation point keeping the point list ordered by
// position, and marks it as the last recorded point.
func (r *Region) AddPoint(p AutomationPoint) {
	i := sort.Search(len(r.Points), func(i int) bool { return r.Points[i].Pos > p.Pos })
	r.Points = append(r.Points, AutomationPoint{})
	copy(r.Points[i+1:], r.Points[i:])
	r.Points[i] = p
	r.lastRecorded = i
}

// RemovePoint deletes the point at index i, adjusting the last-recorded
// cursor.
func (r *Region) RemovePoint(i int) {
	r.Points = append(r.Points[:i], r.Points[i+1:]...)
	if r.lastRecorded == i {
		r.lastRecorded = -1
	} else if r.lastRecorded > i {
		r.lastRecorded--
	}
}

// PointsSinceLastRecorded returns the indices of points strictly between the
// last recorded point and pos, in ascending order.
func (r *Region) PointsSinceLastRecorded(pos int64) []int {
	if r.lastRecorded < 0 {
		return nil
	}
	var idx []int
	after := r.Points[r.lastRecorded].Pos
	for i, p := range r.Points {
		if p.Pos > after && p.Pos <= pos && i != r.lastRecorded {
			idx = append(idx, i)
		}
	}
	return idx
}

// LastRecordedPoint returns the last recorded point, if any.
func (r *Region) LastRecordedPoint() (AutomationPoint, bool) {
	if r.lastRecorded < 0 || r.lastRecorded >= len(r.Points) {
		return AutomationPoint{}, false
	}
	return r.Points[r.lastRecorded], true
}

// ClearLastRecordedPoint forgets the open point, e.g. when leaving touch
// mode.
func (r *Region) ClearLastRecordedPoint() { r.lastRecorded = -1 }

// PrevPoint returns the point immediately before index i by position.
func (r *Region) PrevPoint(i int) (AutomationPoint, bool) {
	if i <= 0 || i > len(r.Points) {
		return AutomationPoint{}, false
	}
	return r.Points[i-1], true
}

// NumFrames returns the clip length in frames.
func (c *AudioClip) NumFrames() int64 {
	if c.Channels == 0 {
		return 0
	}
	return int64(len(c.Frames)) / int64(c.Channels)
}

// Resize grows or shrinks the clip to n frames, keeping existing material.
func (c *AudioClip) Resize(n int64) {
	want := int(n) * c.Channels
	if want <= cap(c.Frames) {
		old := len(c.Frames)
		c.Frames = c.Frames[:want]
		for i := old; i < want; i++ {
			c.Frames[i] = 0
		}
		return
	}
	grown := make([]float32, want)
	copy(grown, c.Frames)
	c.Frames = grown
}

// WriteStereo writes one frame of a stereo pair at the given frame offset.
func (c *AudioClip) WriteStereo(frame int64, l, r float32) {
	i := frame * int64(c.Channels)
	c.Frames[i] = l
	c.Frames[i+1] = r
}
