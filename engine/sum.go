package engine

import (
	"math"

	"github.com/viterin/vek/vek32"

	"patchbay"
)

// SumFromInputs clears nothing by itself (buffers are cleared at the start of
// the cycle) and sums the port's signal from its inputs over [startFrame,
// startFrame+nframes), dispatching on the signal kind:
//
//   - event ports pull externally arrived events from the backend, append
//     each source's events in source order, and push the merged set back out
//     if exposed as an output;
//   - audio ports pull backend input and add each enabled source's buffer
//     range sample by sample, scaled by the edge gain;
//   - control ports accumulate CV modulation into their scalar value;
//   - CV ports have no summation of their own.
//
// suppress is the do-not-advance-transport condition: event ports do nothing
// and audio ports zero the range, so non-rolling states are guaranteed
// silent. It is checked before any backend pull.
func (p *Port) SumFromInputs(startFrame, nframes int, suppress bool) {
	switch p.ID.Kind {
	case patchbay.KindEvent:
		if suppress {
			return
		}
		p.pullFromBackend(startFrame, nframes)
	merge:
		for _, src := range p.srcs {
			e := src.destEdge(p)
			if e == nil || !e.enabled {
				continue
			}
			for _, ev := range src.Events {
				if ev.Frame < startFrame || ev.Frame >= startFrame+nframes {
					continue
				}
				if len(p.Events) == cap(p.Events) {
					// event list is bounded by the block length; drop the
					// rest rather than allocate on the audio path
					break merge
				}
				p.Events = append(p.Events, ev)
			}
		}
		p.pushToBackend(startFrame, nframes)
		if len(p.Events) > 0 && p.track != nil {
			p.track.midiActivity.Store(true)
		}

	case patchbay.KindAudio:
		if suppress {
			clear(p.Buf[startFrame : startFrame+nframes])
			return
		}
		p.pullFromBackend(startFrame, nframes)
		for _, src := range p.srcs {
			e := src.destEdge(p)
			if e == nil || !e.enabled {
				continue
			}
			dst := p.Buf[startFrame : startFrame+nframes]
			in := src.Buf[startFrame : startFrame+nframes]
			if e.mult == 1 {
				vek32.Add_Inplace(dst, in)
			} else {
				for i := range dst {
					dst[i] += in[i] * e.mult
				}
			}
		}
		p.pushToBackend(startFrame, nframes)

	case patchbay.KindControl:
		// control modulation is evaluated once per cycle from the first
		// sample of each CV source, in source order: the first CV starts from
		// the captured baseline, later ones accumulate onto the current value
		firstCV := true
		for _, src := range p.srcs {
			if src.ID.Kind != patchbay.KindCV {
				continue
			}
			e := src.destEdge(p)
			if e == nil || !e.enabled {
				continue
			}
			depthRange := (p.Max - p.Min) / 2
			base := p.Value
			if firstCV {
				base = p.baseValue
				firstCV = false
			}
			p.Value = clampf(base+depthRange*src.Buf[0]*e.mult, p.Min, p.Max)
		}
	}
}

func (p *Port) pullFromBackend(startFrame, nframes int) {
	// engine-level backend ports are filled directly by the engine at the
	// start of the cycle; everything else exposed to the backend pulls here
	if p.backend == nil || p.ID.Flow != patchbay.FlowInput ||
		p.ID.Owner == patchbay.OwnerBackend {
		return
	}
	switch p.ID.Kind {
	case patchbay.KindEvent:
		p.Events = p.backend.PullEvents(p.handle, p.Events, startFrame, nframes)
	case patchbay.KindAudio:
		p.backend.PullAudio(p.handle, p.Buf, startFrame, nframes)
	}
}

func (p *Port) pushToBackend(startFrame, nframes int) {
	if p.backend == nil || p.ID.Flow != patchbay.FlowOutput ||
		p.ID.Owner == patchbay.OwnerBackend {
		return
	}
	switch p.ID.Kind {
	case patchbay.KindEvent:
		p.backend.PushEvents(p.handle, p.Events, startFrame, nframes)
	case patchbay.KindAudio:
		p.backend.PushAudio(p.handle, p.Buf, startFrame, nframes)
	}
}

type (
	// PanLaw is the gain compensation applied to center pan. Only relevant to
	// the sine and square root algorithms.
	PanLaw int

	// PanAlgorithm maps a pan position in [0,1] to per-side gains.
	PanAlgorithm int
)

const (
	PanLawZeroDB PanLaw = iota
	PanLawMinus3DB
	PanLawMinus6DB
)

const (
	PanLinear PanAlgorithm = iota
	PanSquareRoot
	PanSineLaw
)

// ApplyPan scales the buffer range by the pan gain for this port's stereo
// side. pan is in [0,1], 0 hard left. The pan law sets the gain at center;
// the gains of the chosen algorithm are scaled so that center pan lands on
// it.
func (p *Port) ApplyPan(pan float32, law PanLaw, algo PanAlgorithm, startFrame, nframes int) {
	var gainL, gainR, center float32
	switch algo {
	case PanSineLaw:
		gainL = float32(math.Sin(float64(1-pan) * math.Pi / 2))
		gainR = float32(math.Sin(float64(pan) * math.Pi / 2))
		center = float32(math.Sqrt2 / 2)
	case PanSquareRoot:
		gainL = float32(math.Sqrt(float64(1 - pan)))
		gainR = float32(math.Sqrt(float64(pan)))
		center = float32(math.Sqrt2 / 2)
	case PanLinear:
		gainL = 1 - pan
		gainR = pan
		center = 0.5
	}
	var target float32
	switch law {
	case PanLawZeroDB:
		target = 1
	case PanLawMinus3DB:
		target = float32(math.Sqrt2 / 2)
	case PanLawMinus6DB:
		target = 0.5
	}
	comp := target / center
	gain := gainL * comp
	if p.ID.Flags.Has(patchbay.FlagStereoR) {
		gain = gainR * comp
	}
	for i := startFrame; i < startFrame+nframes; i++ {
		if p.Buf[i] != 0 {
			p.Buf[i] *= gain
		}
	}
}
