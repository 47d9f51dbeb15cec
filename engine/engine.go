package engine

import (
	"fmt"

	"patchbay"
)

type (
	// Engine is the context object tying one session together: the block
	// length and sample rate, the hardware backend, the port graph, the
	// transport, the tracks and the recorder. Everything that the original
	// design reached through globals is reachable from here, so independent
	// sessions can coexist and tests need no process-wide state.
	Engine struct {
		BlockLength int
		SampleRate  int

		Backend   patchbay.Backend
		Transport *Transport
		Graph     *Graph
		Tracks    []*Track

		// engine-level backend ports
		StereoIn    *StereoPorts
		StereoOut   *StereoPorts
		MidiIn      *Port
		MidiOut     *Port
		ManualPress *Port
		// the sample processor plays auditioned files outside the timeline
		SampleProcOut *StereoPorts

		// suppress is the do-not-advance condition: while set, event ports
		// stay silent and audio ports are zeroed regardless of sources
		Suppressed bool

		queue    *eventQueue
		recorder *Recorder

		order      []*Port
		orderDirty bool
	}

	// Config carries the construction parameters of an Engine.
	Config struct {
		BlockLength int
		SampleRate  int
		Backend     patchbay.Backend
		// PoolSize bounds the recording event pool and queue; zero means the
		// default of 200.
		PoolSize int
		// Undo receives the batched record action when a recording pass
		// stops. Optional.
		Undo UndoManager
		// Clips receives finalized audio clips when a recording pass stops.
		// Optional.
		Clips ClipWriter
	}
)

// New creates an engine with its backend ports registered and wired.
func New(cfg Config) (*Engine, error) {
	if cfg.BlockLength <= 0 || cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("engine: bad block length %d or sample rate %d", cfg.BlockLength, cfg.SampleRate)
	}
	poolSize := cfg.PoolSize
	if poolSize == 0 {
		poolSize = defaultPoolSize
	}
	e := &Engine{
		BlockLength: cfg.BlockLength,
		SampleRate:  cfg.SampleRate,
		Backend:     cfg.Backend,
		Transport:   &Transport{},
	}
	e.Graph = NewGraph(cfg.BlockLength, cfg.Backend)
	e.queue = newEventQueue(poolSize, cfg.BlockLength)
	e.recorder = newRecorder(e, cfg.Undo, cfg.Clips)

	g := e.Graph
	e.StereoIn = &StereoPorts{
		L: g.NewPort(patchbay.KindAudio, patchbay.FlowInput, "Stereo in L"),
		R: g.NewPort(patchbay.KindAudio, patchbay.FlowInput, "Stereo in R"),
	}
	e.StereoOut = &StereoPorts{
		L: g.NewPort(patchbay.KindAudio, patchbay.FlowOutput, "Stereo out L"),
		R: g.NewPort(patchbay.KindAudio, patchbay.FlowOutput, "Stereo out R"),
	}
	e.StereoIn.L.ID.Flags = patchbay.FlagStereoL
	e.StereoIn.R.ID.Flags = patchbay.FlagStereoR
	e.StereoOut.L.ID.Flags = patchbay.FlagStereoL
	e.StereoOut.R.ID.Flags = patchbay.FlagStereoR
	e.MidiIn = g.NewPort(patchbay.KindEvent, patchbay.FlowInput, "MIDI in")
	e.MidiOut = g.NewPort(patchbay.KindEvent, patchbay.FlowOutput, "MIDI out")
	e.ManualPress = g.NewPort(patchbay.KindEvent, patchbay.FlowInput, "MIDI manual press")
	e.ManualPress.ID.Flags = patchbay.FlagManualPress
	e.SampleProcOut = &StereoPorts{
		L: g.NewPort(patchbay.KindAudio, patchbay.FlowOutput, "Sample processor out L"),
		R: g.NewPort(patchbay.KindAudio, patchbay.FlowOutput, "Sample processor out R"),
	}
	e.SampleProcOut.L.ID.Flags = patchbay.FlagStereoL
	e.SampleProcOut.R.ID.Flags = patchbay.FlagStereoR
	for _, p := range []*Port{
		e.StereoIn.L, e.StereoIn.R, e.StereoOut.L, e.StereoOut.R,
		e.MidiIn, e.MidiOut, e.ManualPress,
	} {
		p.SetOwnerBackend()
	}
	e.SampleProcOut.L.SetOwnerSampleProcessor()
	e.SampleProcOut.R.SetOwnerSampleProcessor()

	if cfg.Backend != nil {
		for _, p := range []*Port{
			e.StereoIn.L, e.StereoIn.R, e.StereoOut.L, e.StereoOut.R,
			e.MidiIn, e.MidiOut,
		} {
			if err := g.Expose(p); err != nil {
				return nil, err
			}
		}
	}
	return e, nil
}

// Recorder returns the recording consumer of this engine.
func (e *Engine) Recorder() *Recorder { return e.recorder }

// DroppedEvents returns the number of recording notifications lost to pool
// or queue exhaustion.
func (e *Engine) DroppedEvents() uint64 { return e.queue.Dropped() }

func (e *Engine) newStereoPorts(label string, flow patchbay.Flow) *StereoPorts {
	sp := &StereoPorts{
		L: e.Graph.NewPort(patchbay.KindAudio, flow, label+" L"),
		R: e.Graph.NewPort(patchbay.KindAudio, flow, label+" R"),
	}
	sp.L.ID.Flags = patchbay.FlagStereoL
	sp.R.ID.Flags = patchbay.FlagStereoR
	return sp
}

// AddTrack creates a track with its processor ports, prefader and fader, and
// wires the default chain: track out -> prefader -> fader -> master out.
// MIDI tracks also get their event inputs.
func (e *Engine) AddTrack(name string, typ TrackType) (*Track, error) {
	t := &Track{
		Name: name,
		Pos:  len(e.Tracks),
		Type: typ,
	}
	t.StereoIn = e.newStereoPorts("Stereo in", patchbay.FlowInput)
	t.StereoOut = e.newStereoPorts("Stereo out", patchbay.FlowOutput)
	t.MidiIn = e.Graph.NewPort(patchbay.KindEvent, patchbay.FlowInput, "MIDI in")
	t.PianoRoll = e.Graph.NewPort(patchbay.KindEvent, patchbay.FlowInput, "Piano roll")
	t.PianoRoll.ID.Flags = patchbay.FlagPianoRoll
	for _, p := range []*Port{t.StereoIn.L, t.StereoIn.R, t.StereoOut.L, t.StereoOut.R, t.MidiIn, t.PianoRoll} {
		p.SetOwnerTrack(t)
	}

	t.PreFader = e.newFader(t, patchbay.OwnerPreFader)
	t.Fader = e.newFader(t, patchbay.OwnerFader)
	t.Lanes = []*Lane{{}}
	t.Processor = newTrackProcessor(e, t)

	for _, c := range [][2]*Port{
		{t.StereoOut.L, t.PreFader.StereoIn.L},
		{t.StereoOut.R, t.PreFader.StereoIn.R},
		{t.PreFader.StereoOut.L, t.Fader.StereoIn.L},
		{t.PreFader.StereoOut.R, t.Fader.StereoIn.R},
		{t.Fader.StereoOut.L, e.StereoOut.L},
		{t.Fader.StereoOut.R, e.StereoOut.R},
	} {
		if err := Connect(c[0], c[1], true); err != nil {
			return nil, fmt.Errorf("wiring track %q: %w", name, err)
		}
	}
	if typ == TrackAudio {
		if err := Connect(e.StereoIn.L, t.StereoIn.L, false); err != nil {
			return nil, err
		}
		if err := Connect(e.StereoIn.R, t.StereoIn.R, false); err != nil {
			return nil, err
		}
		if err := Connect(t.StereoIn.L, t.StereoOut.L, true); err != nil {
			return nil, err
		}
		if err := Connect(t.StereoIn.R, t.StereoOut.R, true); err != nil {
			return nil, err
		}
	} else {
		if err := Connect(e.MidiIn, t.MidiIn, false); err != nil {
			return nil, err
		}
	}

	e.Tracks = append(e.Tracks, t)
	e.orderDirty = true
	return t, nil
}

func (e *Engine) newFader(t *Track, owner patchbay.OwnerKind) *Fader {
	label := "Fader"
	if owner == patchbay.OwnerPreFader {
		label = "Prefader"
	}
	f := &Fader{
		track:   t,
		owner:   owner,
		Amp:     1,
		Pan:     0.5,
		PanAlgo: PanSineLaw,
	}
	f.StereoIn = e.newStereoPorts(label+" in", patchbay.FlowInput)
	f.StereoOut = e.newStereoPorts(label+" out", patchbay.FlowOutput)
	for _, p := range []*Port{f.StereoIn.L, f.StereoIn.R, f.StereoOut.L, f.StereoOut.R} {
		p.SetOwnerFader(f)
	}
	if err := Connect(f.StereoIn.L, f.StereoOut.L, true); err != nil {
		panic(err) // fresh ports, cannot fail
	}
	if err := Connect(f.StereoIn.R, f.StereoOut.R, true); err != nil {
		panic(err)
	}
	return f
}

// AddAutomationTrack binds an automation lane to a control port of the
// track.
func (e *Engine) AddAutomationTrack(t *Track, port *Port, mode RecordMode) *AutomationTrack {
	at := &AutomationTrack{
		Index:  len(t.Automation),
		Track:  t,
		PortID: port.ID,
		Port:   port,
		Mode:   mode,
	}
	t.Automation = append(t.Automation, at)
	return at
}

// InvalidateOrder marks the processing order for recomputation after
// topology changes. Connect/disconnect may only happen while the graph is
// not being processed; the same holds for this call.
func (e *Engine) InvalidateOrder() { e.orderDirty = true }

// Process runs one cycle of nframes: it pulls the engine-level inputs,
// propagates signals in dependency order, runs the per-track recording
// logic, and advances the transport. When the rolling range crosses the loop
// end, the cycle is split at the boundary and the second half continues from
// the loop start.
func (e *Engine) Process(nframes int) {
	if nframes > e.BlockLength {
		nframes = e.BlockLength
	}
	if e.orderDirty || e.order == nil {
		e.order = e.Graph.ProcessOrder()
		e.orderDirty = false
	}
	for _, p := range e.Graph.Ports() {
		p.ClearBuffer()
	}

	t := e.Transport
	if t.Rolling && t.IsLoopPointMet(t.Pos, nframes) {
		until := t.FramesUntilLoopEnd(t.Pos, nframes)
		e.runCycle(t.Pos, 0, until, true)
		t.Pos = t.LoopStart
		e.runCycle(t.Pos, until, nframes-until, false)
		t.Pos += int64(nframes - until)
		return
	}
	e.runCycle(t.Pos, 0, nframes, false)
	if t.Rolling {
		t.Pos += int64(nframes)
	}
}

func (e *Engine) runCycle(gStart int64, localOffset, nframes int, reachedLoopEnd bool) {
	if nframes == 0 {
		return
	}
	// fill the engine-level inputs straight from the backend
	if e.Backend != nil && !e.Suppressed {
		e.Backend.PullAudio(e.StereoIn.L.handle, e.StereoIn.L.Buf, localOffset, nframes)
		e.Backend.PullAudio(e.StereoIn.R.handle, e.StereoIn.R.Buf, localOffset, nframes)
		e.MidiIn.Events = e.Backend.PullEvents(e.MidiIn.handle, e.MidiIn.Events, localOffset, nframes)
	}

	for _, p := range e.order {
		p.SumFromInputs(localOffset, nframes, e.Suppressed)
		if p.fader != nil && p.ID.Flow == patchbay.FlowOutput && p == p.fader.StereoOut.R {
			// apply gain and pan once per fader, after both sides are summed
			p.fader.Process(localOffset, nframes)
		}
	}

	for _, tr := range e.Tracks {
		tr.Processor.handleRecording(gStart, localOffset, nframes, reachedLoopEnd)
	}

	// hand the summed master out to the backend
	if e.Backend != nil {
		e.Backend.PushAudio(e.StereoOut.L.handle, e.StereoOut.L.Buf, localOffset, nframes)
		e.Backend.PushAudio(e.StereoOut.R.handle, e.StereoOut.R.Buf, localOffset, nframes)
		e.Backend.PushEvents(e.MidiOut.handle, e.MidiOut.Events, localOffset, nframes)
	}
}
