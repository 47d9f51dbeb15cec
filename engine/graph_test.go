package engine_test

import (
	"fmt"
	"math/rand"
	"testing"

	"patchbay"
	"patchbay/engine"
)

func TestProcessOrderRespectsDependencies(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for round := 0; round < 20; round++ {
		g := engine.NewGraph(8, nil)
		ports := make([]*engine.Port, 12)
		for i := range ports {
			ports[i] = g.NewPort(patchbay.KindAudio, patchbay.FlowInput, fmt.Sprintf("p%d", i))
		}
		type pair struct{ src, dst int }
		var edges []pair
		for i := 0; i < 20; i++ {
			a, b := rnd.Intn(len(ports)), rnd.Intn(len(ports))
			if a == b {
				continue
			}
			err := engine.Connect(ports[a], ports[b], false)
			if err == nil {
				edges = append(edges, pair{a, b})
			}
		}
		order := g.ProcessOrder()
		if len(order) != len(ports) {
			t.Fatalf("round %d: order has %d ports, want %d", round, len(order), len(ports))
		}
		pos := make(map[*engine.Port]int, len(order))
		for i, p := range order {
			pos[p] = i
		}
		for _, e := range edges {
			if pos[ports[e.src]] >= pos[ports[e.dst]] {
				t.Fatalf("round %d: port %d processed before its source %d", round, e.dst, e.src)
			}
		}
	}
}

func TestProcessOrderIsDeterministic(t *testing.T) {
	g := engine.NewGraph(8, nil)
	var ports []*engine.Port
	for i := 0; i < 6; i++ {
		ports = append(ports, g.NewPort(patchbay.KindAudio, patchbay.FlowInput, fmt.Sprintf("p%d", i)))
	}
	engine.Connect(ports[3], ports[0], false)
	engine.Connect(ports[5], ports[1], false)
	first := g.ProcessOrder()
	for i := 0; i < 5; i++ {
		again := g.ProcessOrder()
		for j := range first {
			if first[j] != again[j] {
				t.Fatalf("order differs at %d between runs", j)
			}
		}
	}
}

func connectionKey(c patchbay.Connection) string {
	return fmt.Sprintf("%d/%d/%d/%s -> %d/%d/%d/%s",
		c.Src.Owner, c.Src.Track, c.Src.Flags, c.Src.Label,
		c.Dst.Owner, c.Dst.Track, c.Dst.Flags, c.Dst.Label)
}

func TestStateSurvivesSaveAndLoad(t *testing.T) {
	build := func() *engine.Engine {
		e, err := engine.New(engine.Config{BlockLength: 8, SampleRate: 44100})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := e.AddTrack("Drums", engine.TrackAudio); err != nil {
			t.Fatal(err)
		}
		if _, err := e.AddTrack("Keys", engine.TrackMidi); err != nil {
			t.Fatal(err)
		}
		return e
	}

	e := build()
	tr := e.Tracks[0]
	e.StereoIn.L.SetDestMult(tr.StereoIn.L, 0.5)
	e.StereoIn.L.SetDestEnabled(tr.StereoIn.L, false)

	data, err := patchbay.MarshalState(e.Graph.State())
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	state, err := patchbay.UnmarshalState(data)
	if err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	loaded := build()
	if errs := loaded.ApplyState(state); len(errs) != 0 {
		t.Fatalf("apply failed: %v", errs)
	}

	want := make(map[string]patchbay.Connection)
	for _, c := range e.Graph.State().Connections {
		want[connectionKey(c)] = c
	}
	got := loaded.Graph.State().Connections
	if len(got) != len(want) {
		t.Fatalf("loaded %d connections, want %d", len(got), len(want))
	}
	for _, c := range got {
		w, ok := want[connectionKey(c)]
		if !ok {
			t.Fatalf("unexpected connection %s", connectionKey(c))
		}
		if c.Mult != w.Mult || c.Locked != w.Locked || c.Enabled != w.Enabled {
			t.Fatalf("connection %s: got mult=%v locked=%v enabled=%v, want mult=%v locked=%v enabled=%v",
				connectionKey(c), c.Mult, c.Locked, c.Enabled, w.Mult, w.Locked, w.Enabled)
		}
	}
}

func TestResolvePortUnknownTrack(t *testing.T) {
	e, err := engine.New(engine.Config{BlockLength: 8, SampleRate: 44100})
	if err != nil {
		t.Fatal(err)
	}
	id := patchbay.PortIdentifier{
		Owner: patchbay.OwnerTrack,
		Kind:  patchbay.KindAudio,
		Flow:  patchbay.FlowInput,
		Flags: patchbay.FlagStereoL,
		Track: 3,
	}
	if _, err := e.ResolvePort(&id); err == nil {
		t.Fatal("resolving a port on a missing track should fail")
	}
}
