package engine

import (
	"testing"
	"time"

	"patchbay"
)

// Touch mode records only while the control is being moved: an armed but
// untouched control writes nothing, releasing the control stops the pass
// without discarding the region, and a later touch opens a new region.
func TestAutomationTouchRecording(t *testing.T) {
	e, err := New(Config{BlockLength: 4, SampleRate: 44100})
	if err != nil {
		t.Fatal(err)
	}
	track, err := e.AddTrack("Synth", TrackAudio)
	if err != nil {
		t.Fatal(err)
	}
	ctl := e.Graph.NewPort(patchbay.KindControl, patchbay.FlowInput, "Cutoff")
	ctl.SetOwnerTrack(track)
	ctl.SetControlRange(0, 1)
	at := e.AddAutomationTrack(track, ctl, RecordModeTouch)
	at.Armed = true
	e.Transport.Rolling = true
	rc := e.Recorder()

	// armed but never touched: nothing records
	e.Process(4)
	rc.ProcessEvents()
	if rc.Recording() || len(at.Regions) != 0 {
		t.Fatalf("untouched control should not record, got %d regions", len(at.Regions))
	}

	ctl.SetControlValue(0.3)
	e.Process(4)
	rc.ProcessEvents()
	if !rc.Recording() {
		t.Fatal("touching the control should open an automation recording")
	}
	if len(at.Regions) != 1 {
		t.Fatalf("got %d automation regions, want 1", len(at.Regions))
	}
	r := at.Regions[0]
	if r.Start != 4 || len(r.Points) != 1 || r.Points[0].Value != 0.3 {
		t.Fatalf("region should start at 4 with the touched value, got [%d,%d) %v",
			r.Start, r.End, r.Points)
	}

	// let the touch expire without disarming
	ctl.lastChanged = time.Now().Add(-2 * touchTimeout)
	e.Process(4)
	rc.ProcessEvents()
	if rc.Recording() {
		t.Fatal("recording should stop once the touch times out")
	}
	if at.recordingRegion != nil {
		t.Fatal("the consumer should have released the region")
	}
	if len(at.Regions) != 1 || at.Regions[0] != r || r.End != 8 {
		t.Fatalf("the recorded region should survive the release, got %d regions ending at %d",
			len(at.Regions), r.End)
	}

	// a fresh touch past the old region opens a new one
	ctl.SetControlValue(0.6)
	e.Process(4)
	rc.ProcessEvents()
	if !rc.Recording() {
		t.Fatal("touching again should reopen the recording")
	}
	if len(at.Regions) != 2 {
		t.Fatalf("got %d automation regions, want 2", len(at.Regions))
	}
	second := at.Regions[1]
	if second.Start != 12 || len(second.Points) != 1 || second.Points[0].Value != 0.6 {
		t.Fatalf("second region should start at 12 with the new value, got [%d,%d) %v",
			second.Start, second.End, second.Points)
	}
}
