package patchbay

import "fmt"

type (
	// SignalKind is the kind of signal a port carries: audio samples, MIDI-like
	// events, a scalar control parameter, or a CV modulation signal.
	SignalKind int

	// Flow is the direction of a port: input, output, or unknown for internal
	// ports that are neither.
	Flow int

	// OwnerKind tells what kind of object owns a port. Together with the
	// location fields of a PortIdentifier it is enough to find the live port
	// again after a project is loaded.
	OwnerKind int

	// PortFlags is a bit set refining the role of a port within its owner,
	// e.g. which side of a stereo pair it is.
	PortFlags int

	// PortIdentifier is the stable, serializable descriptor of a port. Only
	// identifiers are persisted; live ports are resolved from them after
	// loading. Track, PluginSlot and PortIndex are -1 until an owner has been
	// stamped on the port.
	PortIdentifier struct {
		Label      string     `yaml:"label"`
		Owner      OwnerKind  `yaml:"owner"`
		Kind       SignalKind `yaml:"kind"`
		Flow       Flow       `yaml:"flow"`
		Flags      PortFlags  `yaml:"flags,omitempty"`
		Track      int        `yaml:"track"`
		PluginSlot int        `yaml:"pluginSlot"`
		PortIndex  int        `yaml:"portIndex"`
	}
)

const (
	KindAudio SignalKind = iota
	KindEvent
	KindControl
	KindCV
)

const (
	FlowUnknown Flow = iota
	FlowInput
	FlowOutput
)

const (
	OwnerBackend OwnerKind = iota
	OwnerPlugin
	OwnerTrack
	OwnerFader
	OwnerPreFader
	OwnerSampleProcessor
)

const (
	// FlagStereoL and FlagStereoR pick the side of a stereo pair.
	FlagStereoL PortFlags = 1 << iota
	FlagStereoR
	// FlagPianoRoll marks the event input that receives notes played back
	// from the piano roll, as opposed to the live MIDI input.
	FlagPianoRoll
	// FlagManualPress marks the event input fed by manually pressing keys in
	// the editor.
	FlagManualPress
)

func (k SignalKind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindEvent:
		return "event"
	case KindControl:
		return "control"
	case KindCV:
		return "cv"
	}
	return fmt.Sprintf("SignalKind(%d)", int(k))
}

func (f Flow) String() string {
	switch f {
	case FlowInput:
		return "input"
	case FlowOutput:
		return "output"
	}
	return "unknown"
}

func (o OwnerKind) String() string {
	switch o {
	case OwnerBackend:
		return "backend"
	case OwnerPlugin:
		return "plugin"
	case OwnerTrack:
		return "track"
	case OwnerFader:
		return "fader"
	case OwnerPreFader:
		return "prefader"
	case OwnerSampleProcessor:
		return "sampleprocessor"
	}
	return fmt.Sprintf("OwnerKind(%d)", int(o))
}

// Has reports whether all bits of mask are set.
func (f PortFlags) Has(mask PortFlags) bool { return f&mask == mask }

// KindsCompatible reports whether a source of kind src may be connected to a
// destination of kind dst. Kinds must match, except that a CV source may
// modulate a control destination.
func KindsCompatible(src, dst SignalKind) bool {
	return src == dst || (src == KindCV && dst == KindControl)
}

// HasOwner reports whether the identifier's owner fields have been stamped.
func (id *PortIdentifier) HasOwner() bool {
	switch id.Owner {
	case OwnerBackend, OwnerSampleProcessor:
		return true
	case OwnerPlugin:
		return id.Track >= 0 && id.PluginSlot >= 0
	default:
		return id.Track >= 0
	}
}

// Equal reports whether two identifiers refer to the same port. The label is
// ignored; it exists for humans only.
func (id *PortIdentifier) Equal(other *PortIdentifier) bool {
	return id.Owner == other.Owner && id.Kind == other.Kind &&
		id.Flow == other.Flow && id.Flags == other.Flags &&
		id.Track == other.Track && id.PluginSlot == other.PluginSlot &&
		id.PortIndex == other.PortIndex
}
