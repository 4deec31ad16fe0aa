// main.go - Main entry point for the FM Station synthesizer

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/FMStation
License: GPLv3 or later
*/

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
)

func boilerPlate() {
	fmt.Println("\nFM Station - a four-operator FM synthesizer for the terminal.")
	fmt.Println("(c) 2024 - 2026 Zayn Otley")
	fmt.Println("https://github.com/IntuitionAmiga/FMStation")
	fmt.Println("License: GPLv3 or later")
}

func main() {
	var (
		showVersion bool
		noMidi      bool
		sampleRate  int
		bouncePath  string
	)

	flagSet := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.BoolVar(&showVersion, "version", false, "Print version and compiled features")
	flagSet.BoolVar(&noMidi, "no-midi", false, "Disable the MIDI input source")
	flagSet.IntVar(&sampleRate, "rate", DEFAULT_SAMPLE_RATE, "Output sample rate in Hz")
	flagSet.StringVar(&bouncePath, "bounce", "", "Render the demo sequence to a WAV file and exit")

	flagSet.Usage = func() {
		flagSet.SetOutput(os.Stdout)
		fmt.Println("Usage: ./fm_station [-rate 44100] [-no-midi] [-bounce out.wav] [patch.fmp]")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			flagSet.Usage()
			os.Exit(0)
		}
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if showVersion {
		printFeatures()
		os.Exit(0)
	}

	patchPath := flagSet.Arg(0)
	var patch *PatchState
	if patchPath != "" {
		if !isPatchExtension(patchPath) {
			fmt.Printf("Error: not a patch file: %s\n", patchPath)
			os.Exit(1)
		}
		p, err := LoadPatchFile(patchPath)
		if err != nil {
			fmt.Printf("Error loading patch: %v\n", err)
			os.Exit(1)
		}
		patch = p
	}

	if bouncePath != "" {
		seq, total := DefaultBounceSequence(sampleRate)
		if err := BounceToWAV(bouncePath, patch, sampleRate, seq, total); err != nil {
			fmt.Printf("Error bouncing: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Bounced %d frames to %s\n", total, bouncePath)
		os.Exit(0)
	}

	boilerPlate()

	// Single-instance coordination: hand the patch to a running instance
	// instead of opening a second audio device.
	openRequests := make(chan string, 1)
	ipcServer, err := NewIPCServer(func(path string) error {
		select {
		case openRequests <- path:
			return nil
		default:
			return fmt.Errorf("busy")
		}
	})
	if err != nil {
		if patchPath != "" {
			abs, absErr := filepath.Abs(patchPath)
			if absErr == nil {
				if sendErr := SendIPCOpen(abs); sendErr == nil {
					fmt.Printf("Patch handed to running instance: %s\n", abs)
					os.Exit(0)
				}
			}
		}
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	ipcServer.Start()
	defer ipcServer.Stop()

	// Bring up the coordinator and load the engine bank. Instantiation
	// happens here, before the audio device starts pulling.
	coord := NewCoordinator()
	module := DefaultModuleBytes()
	if err := coord.Load(sampleRate, &module); err != nil {
		fmt.Printf("Engine load failed: %v\n", err)
		os.Exit(1)
	}

	go func() {
		for msg := range coord.Notifications() {
			switch msg.Kind {
			case RenderInitialized:
				fmt.Println("Engine initialized")
			case RenderInitFailed:
				fmt.Printf("Engine init failed: %s\n", msg.Reason)
			case RenderProcessingError:
				fmt.Printf("Engine error (%s): %s\n", msg.MessageKind, msg.Reason)
			}
		}
	}()

	player, err := NewOtoPlayer(sampleRate)
	if err != nil {
		fmt.Printf("Failed to initialize audio: %v\n", err)
		os.Exit(1)
	}
	player.SetupPlayer(coord)
	player.Start()

	coord.Send(ControlMessage{Kind: CtrlPower, On: true})

	matrixModel := NewMatrixModel(DefaultRoutingMatrix(), func(m RoutingMatrix) bool {
		return coord.Send(ControlMessage{Kind: CtrlSetRoutingMatrix, Matrix: m})
	})
	if patch != nil {
		if !ApplyPatch(coord, matrixModel, patch) {
			fmt.Println("Warning: patch rejected by control protocol")
		} else {
			fmt.Printf("Patch loaded: %s\n", patchPath)
		}
	}

	arbiter := NewInputArbiter(func(on bool, ev NoteEvent) bool {
		if on {
			return coord.Send(ControlMessage{Kind: CtrlNoteOn, Note: ev.Note, Velocity: ev.Velocity})
		}
		return coord.Send(ControlMessage{Kind: CtrlNoteOff, Note: ev.Note})
	})

	quit := make(chan struct{}, 1)
	requestQuit := func() {
		select {
		case quit <- struct{}{}:
		default:
		}
	}

	keyboard := NewKeyboardInput(arbiter, requestQuit)
	if err := keyboard.Start(); err != nil {
		fmt.Printf("Keyboard input unavailable: %v\n", err)
	} else {
		defer keyboard.Close()
		fmt.Println("Keys z-m / q-u play notes, +/- shifts octave, ESC quits.")
	}

	var midiInput *MIDIInput
	if !noMidi {
		midiInput, err = NewMIDIInput(arbiter)
		if err != nil {
			fmt.Printf("MIDI input unavailable: %v\n", err)
		} else {
			midiInput.Start()
			defer midiInput.Close()
		}
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-quit:
		case <-sigs:
		case path := <-openRequests:
			p, loadErr := LoadPatchFile(path)
			if loadErr != nil {
				fmt.Printf("Error loading patch: %v\n", loadErr)
				continue
			}
			if ApplyPatch(coord, matrixModel, p) {
				fmt.Printf("Patch loaded: %s\n", path)
			} else {
				fmt.Println("Warning: patch rejected by control protocol")
			}
			continue
		}
		break
	}

	fmt.Println("Shutting down")
	coord.Close()
	player.Stop()
	player.Close()
	coord.Release()
}
