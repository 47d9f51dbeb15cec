package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"patchbay"
	"patchbay/engine"
	"patchbay/gomidi"
	"patchbay/oto"
	"patchbay/paudio"
	"patchbay/version"
	"patchbay/wavfile"
)

func main() {
	sampleRate := flag.Int("sr", 44100, "Sample rate in Hz.")
	blockLength := flag.Int("b", 256, "Block length in frames.")
	clipDir := flag.String("o", "recordings", "Directory where recorded clips and the region list are written.")
	midiPrefix := flag.String("midi", "", "Open the first MIDI input whose name starts with the given prefix.")
	firstMidi := flag.Bool("firstmidi", false, "Open the first MIDI input found.")
	monitor := flag.Bool("monitor", false, "Play the master output through the default playback device.")
	graphFile := flag.String("graph", "", "Load extra port connections from a yaml file.")
	loopStart := flag.Int64("loopstart", 0, "Loop start in frames.")
	loopEnd := flag.Int64("loopend", 0, "Loop end in frames; 0 disables looping.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}

	audioBackend, err := paudio.New(*sampleRate, *blockLength)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not open audio backend: %v\n", err)
		os.Exit(1)
	}
	defer audioBackend.Close()
	midiBackend := gomidi.New(*sampleRate)
	defer midiBackend.Close()
	if *midiPrefix != "" || *firstMidi {
		if err := midiBackend.TryToOpenBy(*midiPrefix, *firstMidi); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
	}

	e, err := engine.New(engine.Config{
		BlockLength: *blockLength,
		SampleRate:  *sampleRate,
		Backend:     &patchbay.MultiBackend{Audio: audioBackend, Events: midiBackend},
		Clips:       &wavfile.ClipDir{Dir: *clipDir},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not create engine: %v\n", err)
		os.Exit(1)
	}

	audioTrack, err := e.AddTrack("Audio 1", engine.TrackAudio)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not add audio track: %v\n", err)
		os.Exit(1)
	}
	audioTrack.RecordEnabled = true
	midiTrack, err := e.AddTrack("MIDI 1", engine.TrackMidi)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not add MIDI track: %v\n", err)
		os.Exit(1)
	}
	midiTrack.RecordEnabled = midiBackend.HasDeviceOpen()

	if *graphFile != "" {
		data, err := os.ReadFile(*graphFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not read %s: %v\n", *graphFile, err)
			os.Exit(1)
		}
		state, err := patchbay.UnmarshalState(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not parse %s: %v\n", *graphFile, err)
			os.Exit(1)
		}
		for _, err := range e.ApplyState(state) {
			fmt.Fprintf(os.Stderr, "skipping connection: %v\n", err)
		}
	}

	var sink patchbay.AudioSink
	var interleaved []float32
	if *monitor {
		ctx, err := oto.NewContext(*sampleRate)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not open playback device: %v\n", err)
			os.Exit(1)
		}
		defer ctx.Close()
		sink = ctx.Output()
		defer sink.Close()
		interleaved = make([]float32, 2**blockLength)
	}

	e.Transport.Rolling = true
	e.Transport.Recording = true
	if *loopEnd > *loopStart {
		e.Transport.LoopEnabled = true
		e.Transport.LoopStart = *loopStart
		e.Transport.LoopEnd = *loopEnd
	}

	e.Recorder().Start()
	defer e.Recorder().Close()

	if err := audioBackend.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "could not start audio stream: %v\n", err)
		os.Exit(1)
	}
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	fmt.Println("recording, ctrl-c to stop")

	running := true
	for running {
		select {
		case <-interrupt:
			running = false
		default:
		}
		if err := audioBackend.Read(); err != nil {
			fmt.Fprintf(os.Stderr, "read error: %v\n", err)
			break
		}
		if !running {
			// one more cycle with recording off, so the stop events flush
			e.Transport.Recording = false
		}
		e.Process(*blockLength)
		if err := audioBackend.Write(); err != nil {
			fmt.Fprintf(os.Stderr, "write error: %v\n", err)
			break
		}
		if sink != nil {
			l, r := e.StereoOut.L.Buf, e.StereoOut.R.Buf
			for i := 0; i < *blockLength; i++ {
				interleaved[2*i] = l[i]
				interleaved[2*i+1] = r[i]
			}
			if err := sink.WriteAudio(interleaved); err != nil {
				fmt.Fprintf(os.Stderr, "monitor error: %v\n", err)
				sink = nil
			}
		}
	}
	e.Transport.Rolling = false

	writeRegions(*clipDir, e)
	if dropped := e.DroppedEvents(); dropped > 0 {
		fmt.Fprintf(os.Stderr, "%d recording notifications dropped\n", dropped)
	}
}

type trackRegions struct {
	Track   string             `yaml:"track"`
	Regions []*patchbay.Region `yaml:"regions"`
}

// writeRegions saves the recorded timeline as yaml next to the clips.
func writeRegions(dir string, e *engine.Engine) {
	var all []trackRegions
	for _, tr := range e.Tracks {
		entry := trackRegions{Track: tr.Name}
		for _, lane := range tr.Lanes {
			entry.Regions = append(entry.Regions, lane.Regions...)
		}
		for _, at := range tr.Automation {
			entry.Regions = append(entry.Regions, at.Regions...)
		}
		if len(entry.Regions) > 0 {
			all = append(all, entry)
		}
	}
	if len(all) == 0 {
		return
	}
	data, err := yaml.Marshal(all)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not marshal regions: %v\n", err)
		return
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "could not create %s: %v\n", dir, err)
		return
	}
	path := filepath.Join(dir, "regions.yml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "could not write %s: %v\n", path, err)
		return
	}
	fmt.Printf("wrote %s\n", path)
}
