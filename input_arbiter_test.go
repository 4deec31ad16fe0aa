// input_arbiter_test.go - Note event arbitration tests

package main

import "testing"

type forwardRecorder struct {
	events []struct {
		on bool
		ev NoteEvent
	}
	accept bool
}

func newForwardRecorder() *forwardRecorder {
	return &forwardRecorder{accept: true}
}

func (r *forwardRecorder) forward(on bool, ev NoteEvent) bool {
	r.events = append(r.events, struct {
		on bool
		ev NoteEvent
	}{on, ev})
	return r.accept
}

func (r *forwardRecorder) balance() int {
	n := 0
	for _, e := range r.events {
		if e.on {
			n++
		} else {
			n--
		}
	}
	return n
}

func TestArbiter_SuppressesAutoRepeat(t *testing.T) {
	rec := newForwardRecorder()
	a := NewInputArbiter(rec.forward)

	if !a.NoteMessage(SourceKeyboard, 'z', true, 48, 100) {
		t.Fatal("first press rejected")
	}
	for i := 0; i < 5; i++ {
		if a.NoteMessage(SourceKeyboard, 'z', true, 48, 100) {
			t.Fatal("auto-repeat press forwarded")
		}
	}
	if !a.NoteMessage(SourceKeyboard, 'z', false, 0, 0) {
		t.Fatal("release rejected")
	}
	if len(rec.events) != 2 {
		t.Fatalf("forwarded %d events, want 2", len(rec.events))
	}
	if rec.balance() != 0 {
		t.Errorf("on/off balance = %d, want 0", rec.balance())
	}
}

func TestArbiter_ReleaseWithoutPressSuppressed(t *testing.T) {
	rec := newForwardRecorder()
	a := NewInputArbiter(rec.forward)

	if a.NoteMessage(SourceMidi, 60, false, 60, 0) {
		t.Error("release without press forwarded")
	}
	if len(rec.events) != 0 {
		t.Errorf("forwarded %d events, want 0", len(rec.events))
	}
}

func TestArbiter_VelocityZeroNoteOnIsNoteOff(t *testing.T) {
	rec := newForwardRecorder()
	a := NewInputArbiter(rec.forward)

	a.NoteMessage(SourceMidi, 60, true, 60, 100)
	// Running-status note-off: status 0x90, velocity 0.
	if !a.NoteMessage(SourceMidi, 60, true, 60, 0) {
		t.Fatal("velocity-0 note-on not treated as release")
	}
	if len(rec.events) != 2 || rec.events[1].on {
		t.Fatalf("events = %v, want press then release", rec.events)
	}
	if a.Held(SourceMidi) != 0 {
		t.Errorf("held count = %d after velocity-0 release", a.Held(SourceMidi))
	}
}

func TestArbiter_SourcesTrackIndependently(t *testing.T) {
	rec := newForwardRecorder()
	a := NewInputArbiter(rec.forward)

	// Same note from keyboard and MIDI: both presses forward, each source
	// keeps its own down-set.
	a.NoteMessage(SourceKeyboard, 'z', true, 48, 100)
	if !a.NoteMessage(SourceMidi, 48, true, 48, 90) {
		t.Fatal("press of same note from a second source suppressed")
	}
	if a.Held(SourceKeyboard) != 1 || a.Held(SourceMidi) != 1 {
		t.Errorf("held = kbd %d, midi %d, want 1/1", a.Held(SourceKeyboard), a.Held(SourceMidi))
	}
}

func TestArbiter_RejectedForwardRollsBack(t *testing.T) {
	rec := newForwardRecorder()
	rec.accept = false
	a := NewInputArbiter(rec.forward)

	if a.NoteMessage(SourcePointer, 7, true, 64, 100) {
		t.Fatal("rejected press reported as delivered")
	}
	if a.Held(SourcePointer) != 0 {
		t.Fatal("press state kept despite rejected forward")
	}

	// After the pipeline recovers, the same press goes through.
	rec.accept = true
	if !a.NoteMessage(SourcePointer, 7, true, 64, 100) {
		t.Fatal("retry press rejected")
	}

	// Rejected release keeps the identifier down so a retry stays possible.
	rec.accept = false
	if a.NoteMessage(SourcePointer, 7, false, 0, 0) {
		t.Fatal("rejected release reported as delivered")
	}
	if a.Held(SourcePointer) != 1 {
		t.Fatal("release state dropped despite rejected forward")
	}
	rec.accept = true
	if !a.NoteMessage(SourcePointer, 7, false, 0, 0) {
		t.Fatal("retry release rejected")
	}
	if rec.balance() != 0 {
		t.Errorf("on/off balance = %d, want 0", rec.balance())
	}
}

func TestArbiter_ReleaseAllClearsRegardlessOfDelivery(t *testing.T) {
	rec := newForwardRecorder()
	a := NewInputArbiter(rec.forward)

	a.NoteMessage(SourceMidi, 60, true, 60, 100)
	a.NoteMessage(SourceMidi, 64, true, 64, 100)

	rec.accept = false // device unplugged, mailbox may be refusing too
	a.ReleaseAll(SourceMidi)
	if a.Held(SourceMidi) != 0 {
		t.Errorf("held count = %d after ReleaseAll", a.Held(SourceMidi))
	}

	// The off events were still attempted for every held note.
	offs := 0
	for _, e := range rec.events {
		if !e.on {
			offs++
		}
	}
	if offs != 2 {
		t.Errorf("ReleaseAll forwarded %d offs, want 2", offs)
	}
}
