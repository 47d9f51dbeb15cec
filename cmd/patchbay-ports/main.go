package main

import (
	"flag"
	"fmt"
	"os"

	"patchbay"
	"patchbay/engine"
	"patchbay/gomidi"
	"patchbay/version"
)

func main() {
	blockLength := flag.Int("b", 256, "Block length in frames.")
	numTracks := flag.Int("tracks", 1, "Number of tracks to create.")
	trackType := flag.String("type", "audio", "Track type: audio or midi.")
	stateFile := flag.String("state", "", "Load port connections from a yaml file before listing.")
	dump := flag.Bool("dump", false, "Write the connection state as yaml to standard output.")
	order := flag.Bool("order", false, "Print the ports in processing order instead of creation order.")
	devices := flag.Bool("devices", false, "List the available MIDI input devices and exit.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if *devices {
		backend := gomidi.New(44100)
		defer backend.Close()
		n := 0
		backend.InputDevices(func(d gomidi.RTMIDIDevice) bool {
			fmt.Printf("%d: %s\n", n, d)
			n++
			return true
		})
		if n == 0 {
			fmt.Println("no MIDI inputs found")
		}
		return
	}

	typ := engine.TrackAudio
	if *trackType == "midi" {
		typ = engine.TrackMidi
	}

	e, err := engine.New(engine.Config{BlockLength: *blockLength, SampleRate: 44100})
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not create engine: %v\n", err)
		os.Exit(1)
	}
	for i := 0; i < *numTracks; i++ {
		if _, err := e.AddTrack(fmt.Sprintf("Track %d", i+1), typ); err != nil {
			fmt.Fprintf(os.Stderr, "could not add track: %v\n", err)
			os.Exit(1)
		}
	}

	if *stateFile != "" {
		data, err := os.ReadFile(*stateFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not read %s: %v\n", *stateFile, err)
			os.Exit(1)
		}
		state, err := patchbay.UnmarshalState(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not parse %s: %v\n", *stateFile, err)
			os.Exit(1)
		}
		for _, err := range e.ApplyState(state) {
			fmt.Fprintf(os.Stderr, "skipping connection: %v\n", err)
		}
	}

	if *dump {
		data, err := patchbay.MarshalState(e.Graph.State())
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not marshal state: %v\n", err)
			os.Exit(1)
		}
		os.Stdout.Write(data)
		return
	}

	ports := e.Graph.Ports()
	if *order {
		ports = e.Graph.ProcessOrder()
	}
	for _, p := range ports {
		fmt.Printf("%-40s %s %s\n", p.Designation(), p.ID.Kind, p.ID.Flow)
		for _, dst := range p.Destinations() {
			mult := p.DestMult(dst)
			locked := ""
			if p.DestLocked(dst) {
				locked = " locked"
			}
			enabled := ""
			if !p.DestEnabled(dst) {
				enabled = " disabled"
			}
			fmt.Printf("    -> %s (x%g)%s%s\n", dst.Designation(), mult, locked, enabled)
		}
	}
}
