package engine

import (
	"fmt"
	"log"
	"time"

	"patchbay"
)

type (
	// Port is a typed signal endpoint. Audio and CV ports hold a sample
	// buffer sized to the engine block length; event ports hold a block-local
	// event list; control ports hold a scalar value with a range.
	//
	// A port's source and destination lists are mirror images: if A lists B
	// as a destination, B lists A as a source. Edge data (gain multiplier,
	// locked, enabled) lives on the source side. Both lists preserve
	// insertion order, which makes summation order deterministic.
	Port struct {
		ID     patchbay.PortIdentifier
		Buf    []float32
		Events []patchbay.MidiEvent

		srcs  []*Port
		dests []edge

		// control port state
		Value     float32
		Min, Max  float32
		baseValue float32
		// monotonic time of the last user/CV change, for automation touch
		// mode
		lastChanged time.Time
		// the last change came from reading back automation, not from the
		// user or a modulator
		changedFromReading bool

		// set when the port is exposed to the hardware backend
		backend patchbay.Backend
		handle  patchbay.BackendHandle

		graph *Graph
		track *Track // owning track, for the MIDI activity indicator
		fader *Fader // owning fader, for post-sum gain/pan
	}

	edge struct {
		port    *Port
		mult    float32
		locked  bool
		enabled bool
	}
)

func newPort(g *Graph, kind patchbay.SignalKind, flow patchbay.Flow, label string) *Port {
	p := &Port{
		ID: patchbay.PortIdentifier{
			Label:      label,
			Kind:       kind,
			Flow:       flow,
			Track:      -1,
			PluginSlot: -1,
			PortIndex:  -1,
		},
		graph: g,
		Min:   0,
		Max:   1,
	}
	switch kind {
	case patchbay.KindAudio, patchbay.KindCV:
		p.Buf = make([]float32, g.blockLength)
	case patchbay.KindEvent:
		p.Events = make([]patchbay.MidiEvent, 0, g.blockLength)
	}
	return p
}

// SetOwnerTrack stamps the identifier with track ownership.
func (p *Port) SetOwnerTrack(t *Track) {
	p.track = t
	p.ID.Owner = patchbay.OwnerTrack
	p.ID.Track = t.Pos
}

// SetOwnerFader stamps the identifier with fader or prefader ownership,
// depending on the fader's role.
func (p *Port) SetOwnerFader(f *Fader) {
	p.fader = f
	p.track = f.track
	p.ID.Owner = f.owner
	p.ID.Track = f.track.Pos
}

// SetOwnerPlugin stamps the identifier with plugin ownership at the plugin's
// slot, with the given port index within the plugin.
func (p *Port) SetOwnerPlugin(pl *Plugin, index int) {
	p.track = pl.Track
	p.ID.Owner = patchbay.OwnerPlugin
	p.ID.Track = pl.Track.Pos
	p.ID.PluginSlot = pl.Slot
	p.ID.PortIndex = index
}

// SetOwnerBackend stamps the identifier as an engine-level backend port.
func (p *Port) SetOwnerBackend() { p.ID.Owner = patchbay.OwnerBackend }

// SetOwnerSampleProcessor stamps the identifier as a sample processor port.
func (p *Port) SetOwnerSampleProcessor() { p.ID.Owner = patchbay.OwnerSampleProcessor }

// Sources returns the source ports in insertion order. The returned slice is
// shared; callers must not mutate it.
func (p *Port) Sources() []*Port { return p.srcs }

// Destinations returns the destination ports in insertion order.
func (p *Port) Destinations() []*Port {
	dests := make([]*Port, len(p.dests))
	for i, e := range p.dests {
		dests[i] = e.port
	}
	return dests
}

// ConnectedTo reports whether dst is among p's destinations.
func (p *Port) ConnectedTo(dst *Port) bool {
	return p.destEdge(dst) != nil
}

func (p *Port) destEdge(dst *Port) *edge {
	for i := range p.dests {
		if p.dests[i].port == dst {
			return &p.dests[i]
		}
	}
	return nil
}

// DestMult returns the gain multiplier of the edge to dst, defaulting to 1
// when not connected.
func (p *Port) DestMult(dst *Port) float32 {
	if e := p.destEdge(dst); e != nil {
		return e.mult
	}
	return 1
}

// SetDestMult sets the gain multiplier of the edge to dst.
func (p *Port) SetDestMult(dst *Port, mult float32) {
	if e := p.destEdge(dst); e != nil {
		e.mult = mult
	}
}

// DestEnabled reports whether the edge to dst passes signal.
func (p *Port) DestEnabled(dst *Port) bool {
	if e := p.destEdge(dst); e != nil {
		return e.enabled
	}
	return false
}

// SetDestEnabled suppresses or re-enables the edge to dst without removing
// it.
func (p *Port) SetDestEnabled(dst *Port, enabled bool) {
	if e := p.destEdge(dst); e != nil {
		e.enabled = enabled
	}
}

// DestLocked reports whether the edge to dst is locked against accidental
// disconnection.
func (p *Port) DestLocked(dst *Port) bool {
	if e := p.destEdge(dst); e != nil {
		return e.locked
	}
	return false
}

// SetControlRange sets the value range of a control port.
func (p *Port) SetControlRange(min, max float32) {
	p.Min, p.Max = min, max
}

// SetControlValue sets a control port's value from the user or a front
// panel. It stamps the touch time used by automation touch mode.
func (p *Port) SetControlValue(v float32) {
	p.Value = clampf(v, p.Min, p.Max)
	p.lastChanged = time.Now()
	p.changedFromReading = false
}

// SetControlValueFromReading sets a control port's value from played-back
// automation. It does not count as a touch.
func (p *Port) SetControlValueFromReading(v float32) {
	p.Value = clampf(v, p.Min, p.Max)
	p.changedFromReading = true
}

// NormalizedValue returns the control value mapped into [0,1].
func (p *Port) NormalizedValue() float32 {
	if p.Max == p.Min {
		return 0
	}
	return (p.Value - p.Min) / (p.Max - p.Min)
}

// ClearBuffer zeroes the sample buffer of an audio/CV port and resets the
// event list of an event port. Control ports hold a scalar, not a buffer; for
// them this is a no-op.
func (p *Port) ClearBuffer() {
	switch p.ID.Kind {
	case patchbay.KindAudio, patchbay.KindCV:
		clear(p.Buf)
	case patchbay.KindEvent:
		p.Events = p.Events[:0]
	}
}

// Designation returns the full human-readable designation of the port, in
// the form "Track/Port" or "Track/Plugin/Port".
func (p *Port) Designation() string {
	switch p.ID.Owner {
	case patchbay.OwnerPlugin:
		if p.track != nil {
			return fmt.Sprintf("%s/plugin %d/%s", p.track.Name, p.ID.PluginSlot, p.ID.Label)
		}
	case patchbay.OwnerTrack, patchbay.OwnerFader, patchbay.OwnerPreFader:
		if p.track != nil {
			return fmt.Sprintf("%s/%s", p.track.Name, p.ID.Label)
		}
	}
	return p.ID.Label
}

// Connect connects src to dst, disconnecting any prior edge between the same
// pair first. It fails with ErrIncompatibleType unless the kinds are
// compatible, and with ErrCycleRejected if the edge would close a cycle. The
// new edge gets gain 1 and is enabled. For the first CV connection into a
// control port, the control's current value is captured as the modulation
// baseline.
func Connect(src, dst *Port, locked bool) error {
	Disconnect(src, dst)
	if !patchbay.KindsCompatible(src.ID.Kind, dst.ID.Kind) {
		return fmt.Errorf("%w: %s -> %s", ErrIncompatibleType, src.ID.Kind, dst.ID.Kind)
	}
	if !trialAcyclic(src, dst) {
		return fmt.Errorf("%w: %s -> %s", ErrCycleRejected, src.Designation(), dst.Designation())
	}
	src.dests = append(src.dests, edge{port: dst, mult: 1, locked: locked, enabled: true})
	dst.srcs = append(dst.srcs, src)

	// set base value if cv -> control
	if src.ID.Kind == patchbay.KindCV && dst.ID.Kind == patchbay.KindControl {
		dst.baseValue = dst.Value
	}
	return nil
}

// Disconnect removes the edge from src to dst on both sides, preserving the
// relative order of the remaining edges. It is a no-op if no edge exists.
func Disconnect(src, dst *Port) {
	for i := range src.dests {
		if src.dests[i].port == dst {
			src.dests = append(src.dests[:i], src.dests[i+1:]...)
			break
		}
	}
	for i, s := range dst.srcs {
		if s == src {
			dst.srcs = append(dst.srcs[:i], dst.srcs[i+1:]...)
			break
		}
	}
}

// DisconnectAll removes every edge touching the port.
func (p *Port) DisconnectAll() {
	for len(p.srcs) > 0 {
		Disconnect(p.srcs[0], p)
	}
	for len(p.dests) > 0 {
		Disconnect(p, p.dests[0].port)
	}
}

// CanConnect reports whether connecting src to dst would keep the graph
// acyclic and the kinds compatible. The trial graph it builds is discarded.
func CanConnect(src, dst *Port) bool {
	return patchbay.KindsCompatible(src.ID.Kind, dst.ID.Kind) && trialAcyclic(src, dst)
}

// ApplyFader multiplies the buffer range by amp, skipping silent samples.
func (p *Port) ApplyFader(amp float32, startFrame, nframes int) {
	for i := startFrame; i < startFrame+nframes; i++ {
		if p.Buf[i] != 0 {
			p.Buf[i] *= amp
		}
	}
}

// Free releases the port's buffer and removes it from the graph. Freeing a
// port that still has connections is a programming error: it is logged and
// refused.
func (p *Port) Free() error {
	if len(p.srcs) > 0 || len(p.dests) > 0 {
		log.Printf("refusing to free still-connected port %s (%d srcs, %d dests)",
			p.Designation(), len(p.srcs), len(p.dests))
		return ErrStillConnected
	}
	if p.backend != nil && p.handle != nil {
		if err := p.backend.UnregisterPort(p.handle); err != nil {
			log.Printf("unregistering port %s: %v", p.Designation(), err)
		}
		p.backend, p.handle = nil, nil
	}
	if p.graph != nil {
		p.graph.remove(p)
		p.graph = nil
	}
	p.Buf = nil
	p.Events = nil
	return nil
}

func clampf(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
