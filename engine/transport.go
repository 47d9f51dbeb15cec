package engine

// Transport is the playback state the engine advances every cycle: the
// global frame position, the rolling and record flags, the loop range, and
// the punch range outside of which recording is suppressed. Fields are
// mutated only between cycles or from the processing context.
type Transport struct {
	Pos       int64
	Rolling   bool
	Recording bool

	LoopEnabled bool
	LoopStart   int64
	LoopEnd     int64

	PunchEnabled bool
	PunchStart   int64
	PunchEnd     int64
}

// InsidePunchRange reports whether recording is allowed at the given global
// frame. Without punch mode everything is inside.
func (t *Transport) InsidePunchRange(frame int64) bool {
	if !t.PunchEnabled {
		return true
	}
	return frame >= t.PunchStart && frame < t.PunchEnd
}

// IsLoopPointMet reports whether the range [start, start+nframes) reaches
// the loop end while looping is enabled. A range ending exactly on the loop
// end meets it; the wrap then produces a zero-length second half.
func (t *Transport) IsLoopPointMet(start int64, nframes int) bool {
	return t.LoopEnabled && start < t.LoopEnd && start+int64(nframes) >= t.LoopEnd
}

// FramesUntilLoopEnd returns how many of nframes fit before the loop end.
func (t *Transport) FramesUntilLoopEnd(start int64, nframes int) int {
	if !t.IsLoopPointMet(start, nframes) {
		return nframes
	}
	return int(t.LoopEnd - start)
}
