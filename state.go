package patchbay

import "gopkg.in/yaml.v3"

type (
	// Connection is one persisted edge of the port graph.
	Connection struct {
		Src     PortIdentifier `yaml:"src"`
		Dst     PortIdentifier `yaml:"dst"`
		Mult    float32        `yaml:"mult"`
		Locked  bool           `yaml:"locked,omitempty"`
		Enabled bool           `yaml:"enabled"`
	}

	// GraphState is the serializable snapshot of the connection topology.
	// Ports themselves are not persisted; after loading, each identifier is
	// resolved back to a live port and the edges are re-made.
	GraphState struct {
		Connections []Connection `yaml:"connections"`
	}
)

// MarshalState serializes a graph snapshot to yaml.
func MarshalState(s *GraphState) ([]byte, error) {
	return yaml.Marshal(s)
}

// UnmarshalState parses a yaml graph snapshot.
func UnmarshalState(data []byte) (*GraphState, error) {
	var s GraphState
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
