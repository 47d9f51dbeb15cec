package wavfile_test

import (
	"math"
	"path/filepath"
	"testing"

	"patchbay"
	"patchbay/wavfile"
)

func TestWriteReadRoundTrip(t *testing.T) {
	clip := &patchbay.AudioClip{Channels: 2}
	clip.Resize(64)
	for i := int64(0); i < 64; i++ {
		v := float32(math.Sin(float64(i) * 0.1))
		clip.WriteStereo(i, v, -v)
	}
	path := filepath.Join(t.TempDir(), "take.wav")
	if err := wavfile.Write(path, 44100, clip); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	loaded, sr, err := wavfile.Read(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if sr != 44100 {
		t.Fatalf("sample rate changed to %d", sr)
	}
	if loaded.Channels != 2 {
		t.Fatalf("channels changed to %d", loaded.Channels)
	}
	if loaded.NumFrames() != 64 {
		t.Fatalf("got %d frames, want 64", loaded.NumFrames())
	}
	for i := range clip.Frames {
		if diff := math.Abs(float64(clip.Frames[i] - loaded.Frames[i])); diff > 1.0/32000 {
			t.Fatalf("sample %d drifted by %v", i, diff)
		}
	}
}

func TestClipDirSanitizesNames(t *testing.T) {
	dir := t.TempDir()
	clip := &patchbay.AudioClip{Channels: 2}
	clip.Resize(4)
	w := &wavfile.ClipDir{Dir: dir}
	if err := w.WriteClip("Take/1: first", 44100, clip); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, _, err := wavfile.Read(filepath.Join(dir, "Take_1_ first.wav")); err != nil {
		t.Fatalf("sanitized file missing: %v", err)
	}
}
