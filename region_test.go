package patchbay_test

import (
	"testing"

	"patchbay"
)

func TestRegionNotes(t *testing.T) {
	r := patchbay.NewRegion(patchbay.RegionMidi, patchbay.RegionIdentifier{Type: patchbay.RegionMidi}, 0, 100)
	r.StartNote(60, 100, 10)
	r.StartNote(64, 90, 12)
	r.StartNote(60, 80, 20)
	if !r.EndNote(60, 30) {
		t.Fatal("ending a held note should succeed")
	}
	// the oldest held note with the pitch ends first
	if r.Notes[0].End != 30 {
		t.Fatalf("first note should end at 30, got %d", r.Notes[0].End)
	}
	if r.Notes[2].End != -1 {
		t.Fatal("the later note with the same pitch should still be held")
	}
	if r.EndNote(72, 40) {
		t.Fatal("ending a pitch that was never started should fail")
	}
	r.EndAllNotes(50)
	for i, n := range r.Notes {
		if n.End == -1 {
			t.Fatalf("note %d should be ended", i)
		}
	}
	if r.Notes[1].End != 50 || r.Notes[2].End != 50 {
		t.Fatal("held notes should end at the given position")
	}
	if r.Notes[0].End != 30 {
		t.Fatal("already ended notes should keep their end")
	}
}

func TestRegionPointsStaySorted(t *testing.T) {
	r := patchbay.NewRegion(patchbay.RegionAutomation, patchbay.RegionIdentifier{Type: patchbay.RegionAutomation}, 0, 100)
	for _, pos := range []int64{50, 10, 30, 70, 20} {
		r.AddPoint(patchbay.AutomationPoint{Pos: pos, Value: float32(pos)})
	}
	for i := 1; i < len(r.Points); i++ {
		if r.Points[i-1].Pos > r.Points[i].Pos {
			t.Fatalf("points out of order at %d: %d > %d", i, r.Points[i-1].Pos, r.Points[i].Pos)
		}
	}
	last, ok := r.LastRecordedPoint()
	if !ok || last.Pos != 20 {
		t.Fatalf("last recorded point should be the most recently added, got %v %v", last, ok)
	}
	idx := r.PointsSinceLastRecorded(60)
	// points at 30 and 50 lie between the last recorded (20) and 60
	if len(idx) != 2 {
		t.Fatalf("got %d points to roll over, want 2", len(idx))
	}
	r.RemovePoint(idx[1])
	r.RemovePoint(idx[0])
	if last, ok := r.LastRecordedPoint(); !ok || last.Pos != 20 {
		t.Fatalf("removals should keep the last recorded cursor, got %v %v", last, ok)
	}
}

func TestAudioClipResizeKeepsMaterial(t *testing.T) {
	c := &patchbay.AudioClip{Channels: 2}
	c.Resize(2)
	c.WriteStereo(0, 0.1, 0.2)
	c.WriteStereo(1, 0.3, 0.4)
	c.Resize(4)
	if c.NumFrames() != 4 {
		t.Fatalf("clip should have 4 frames, got %d", c.NumFrames())
	}
	if c.Frames[0] != 0.1 || c.Frames[3] != 0.4 {
		t.Fatal("resize should keep existing samples")
	}
	if c.Frames[4] != 0 || c.Frames[7] != 0 {
		t.Fatal("new frames should be silent")
	}
}

func TestKindsCompatible(t *testing.T) {
	cases := []struct {
		src, dst patchbay.SignalKind
		want     bool
	}{
		{patchbay.KindAudio, patchbay.KindAudio, true},
		{patchbay.KindEvent, patchbay.KindEvent, true},
		{patchbay.KindCV, patchbay.KindCV, true},
		{patchbay.KindCV, patchbay.KindControl, true},
		{patchbay.KindControl, patchbay.KindCV, false},
		{patchbay.KindAudio, patchbay.KindEvent, false},
		{patchbay.KindAudio, patchbay.KindCV, false},
	}
	for _, c := range cases {
		if got := patchbay.KindsCompatible(c.src, c.dst); got != c.want {
			t.Errorf("KindsCompatible(%s, %s) = %v, want %v", c.src, c.dst, got, c.want)
		}
	}
}

func TestStateYamlRoundTrip(t *testing.T) {
	s := &patchbay.GraphState{
		Connections: []patchbay.Connection{{
			Src: patchbay.PortIdentifier{
				Label: "Stereo out L",
				Owner: patchbay.OwnerTrack,
				Kind:  patchbay.KindAudio,
				Flow:  patchbay.FlowOutput,
				Flags: patchbay.FlagStereoL,
				Track: 2,
			},
			Dst: patchbay.PortIdentifier{
				Label: "Stereo in L",
				Owner: patchbay.OwnerBackend,
				Kind:  patchbay.KindAudio,
				Flow:  patchbay.FlowInput,
				Flags: patchbay.FlagStereoL,
			},
			Mult:    0.5,
			Locked:  true,
			Enabled: true,
		}},
	}
	data, err := patchbay.MarshalState(s)
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := patchbay.UnmarshalState(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Connections) != 1 {
		t.Fatalf("got %d connections, want 1", len(loaded.Connections))
	}
	c := loaded.Connections[0]
	if !c.Src.Equal(&s.Connections[0].Src) || !c.Dst.Equal(&s.Connections[0].Dst) {
		t.Fatalf("identifiers changed in round trip: %+v", c)
	}
	if c.Mult != 0.5 || !c.Locked || !c.Enabled {
		t.Fatalf("edge data changed in round trip: %+v", c)
	}
}
