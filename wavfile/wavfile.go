// Package wavfile stores audio clips as 16-bit wav files.
package wavfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"patchbay"
)

// ClipDir writes each finished clip into a directory, one file per clip,
// named after the region. It satisfies the engine's clip writer hook.
type ClipDir struct {
	Dir string
}

func (d *ClipDir) WriteClip(name string, sampleRate int, clip *patchbay.AudioClip) error {
	if err := os.MkdirAll(d.Dir, 0755); err != nil {
		return err
	}
	path := filepath.Join(d.Dir, sanitize(name)+".wav")
	return Write(path, sampleRate, clip)
}

// Write encodes the clip as a 16-bit PCM wav file at path.
func Write(path string, sampleRate int, clip *patchbay.AudioClip) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	enc := wav.NewEncoder(f, sampleRate, 16, clip.Channels, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: clip.Channels,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, len(clip.Frames)),
		SourceBitDepth: 16,
	}
	for i, s := range clip.Frames {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		buf.Data[i] = int(s * 32767)
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return enc.Close()
}

// Read decodes a wav file into a clip, returning also its sample rate.
func Read(path string) (*patchbay.AudioClip, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decoding %s: %w", path, err)
	}
	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = 16
	}
	scale := float32(1) / float32(int(1)<<(depth-1))
	frames := make([]float32, len(buf.Data))
	for i, s := range buf.Data {
		frames[i] = float32(s) * scale
	}
	clip := &patchbay.AudioClip{
		Channels: buf.Format.NumChannels,
		Frames:   frames,
	}
	return clip, buf.Format.SampleRate, nil
}

func sanitize(name string) string {
	if name == "" {
		return "clip"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}
