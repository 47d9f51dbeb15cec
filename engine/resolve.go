package engine

import (
	"fmt"

	"patchbay"
)

// ResolvePort maps a persisted identifier back to the live port by walking
// the owner-kind-specific lookup rules.
func (e *Engine) ResolvePort(id *patchbay.PortIdentifier) (*Port, error) {
	stereoSide := func(sp *StereoPorts) (*Port, error) {
		if id.Flags.Has(patchbay.FlagStereoL) {
			return sp.L, nil
		}
		if id.Flags.Has(patchbay.FlagStereoR) {
			return sp.R, nil
		}
		return nil, fmt.Errorf("%w: %s lacks a stereo side flag", ErrMissingOwner, id.Label)
	}
	track := func() (*Track, error) {
		if id.Track < 0 || id.Track >= len(e.Tracks) {
			return nil, fmt.Errorf("%w: no track %d", ErrMissingOwner, id.Track)
		}
		return e.Tracks[id.Track], nil
	}

	switch id.Owner {
	case patchbay.OwnerBackend:
		switch id.Kind {
		case patchbay.KindEvent:
			if id.Flow == patchbay.FlowInput {
				if id.Flags.Has(patchbay.FlagManualPress) {
					return e.ManualPress, nil
				}
				return e.MidiIn, nil
			}
			return e.MidiOut, nil
		case patchbay.KindAudio:
			if id.Flow == patchbay.FlowInput {
				return stereoSide(e.StereoIn)
			}
			return stereoSide(e.StereoOut)
		}
	case patchbay.OwnerSampleProcessor:
		return stereoSide(e.SampleProcOut)
	case patchbay.OwnerTrack:
		tr, err := track()
		if err != nil {
			return nil, err
		}
		switch id.Kind {
		case patchbay.KindEvent:
			if id.Flags.Has(patchbay.FlagPianoRoll) {
				return tr.PianoRoll, nil
			}
			return tr.MidiIn, nil
		case patchbay.KindAudio:
			if id.Flow == patchbay.FlowInput {
				return stereoSide(tr.StereoIn)
			}
			return stereoSide(tr.StereoOut)
		}
	case patchbay.OwnerFader, patchbay.OwnerPreFader:
		tr, err := track()
		if err != nil {
			return nil, err
		}
		f := tr.Fader
		if id.Owner == patchbay.OwnerPreFader {
			f = tr.PreFader
		}
		if id.Flow == patchbay.FlowInput {
			return stereoSide(f.StereoIn)
		}
		return stereoSide(f.StereoOut)
	case patchbay.OwnerPlugin:
		tr, err := track()
		if err != nil {
			return nil, err
		}
		if id.PluginSlot < 0 || id.PluginSlot >= len(tr.Plugins) {
			return nil, fmt.Errorf("%w: track %d has no plugin slot %d", ErrMissingOwner, id.Track, id.PluginSlot)
		}
		pl := tr.Plugins[id.PluginSlot]
		var ports []*Port
		switch id.Flow {
		case patchbay.FlowInput:
			ports = pl.InPorts
		case patchbay.FlowOutput:
			ports = pl.OutPorts
		default:
			ports = pl.UnknownPorts
		}
		if id.PortIndex < 0 || id.PortIndex >= len(ports) {
			return nil, fmt.Errorf("%w: plugin port %d out of range", ErrMissingOwner, id.PortIndex)
		}
		return ports[id.PortIndex], nil
	}
	return nil, fmt.Errorf("%w: %s", ErrMissingOwner, id.Label)
}

// ApplyState re-makes the persisted connections after load, resolving each
// identifier pair to live ports. Connections whose endpoints no longer
// resolve are skipped with an error in the returned list; loading never
// fails as a whole.
func (e *Engine) ApplyState(s *patchbay.GraphState) []error {
	var errs []error
	for _, c := range s.Connections {
		src, err := e.ResolvePort(&c.Src)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		dst, err := e.ResolvePort(&c.Dst)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := Connect(src, dst, c.Locked); err != nil {
			errs = append(errs, err)
			continue
		}
		src.SetDestMult(dst, c.Mult)
		src.SetDestEnabled(dst, c.Enabled)
	}
	e.orderDirty = true
	return errs
}
