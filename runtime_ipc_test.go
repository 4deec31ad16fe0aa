// runtime_ipc_test.go - Single-instance IPC tests

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempPatch(t *testing.T, dir string) string {
	t.Helper()
	p, err := DefaultPatchState()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "patch.fmp")
	if err := SavePatchFile(path, p); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIPC_OpenRequestReachesHandler(t *testing.T) {
	dir := t.TempDir()
	sock := filepath.Join(dir, "fm.sock")
	patchPath := writeTempPatch(t, dir)

	got := make(chan string, 1)
	srv, err := newIPCServerAt(sock, func(path string) error {
		got <- path
		return nil
	})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	srv.Start()
	defer srv.Stop()

	if err := sendIPCOpenAt(sock, patchPath); err != nil {
		t.Fatalf("open request failed: %v", err)
	}
	select {
	case path := <-got:
		if path != patchPath {
			t.Errorf("handler received %q, want %q", path, patchPath)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler never invoked")
	}
}

func TestIPC_RejectsBadPaths(t *testing.T) {
	dir := t.TempDir()
	sock := filepath.Join(dir, "fm.sock")

	srv, err := newIPCServerAt(sock, func(string) error {
		t.Error("handler invoked for an invalid path")
		return nil
	})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	srv.Start()
	defer srv.Stop()

	if err := sendIPCOpenAt(sock, "relative.fmp"); err == nil {
		t.Error("relative path accepted")
	}

	wav := filepath.Join(dir, "song.wav")
	if err := os.WriteFile(wav, []byte("riff"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := sendIPCOpenAt(sock, wav); err == nil {
		t.Error("non-patch extension accepted")
	} else if !strings.Contains(err.Error(), "unsupported extension") {
		t.Errorf("unexpected rejection: %v", err)
	}

	if err := sendIPCOpenAt(sock, filepath.Join(dir, "missing.fmp")); err == nil {
		t.Error("nonexistent file accepted")
	}
}

func TestIPC_SecondBindRefusedWhileAlive(t *testing.T) {
	dir := t.TempDir()
	sock := filepath.Join(dir, "fm.sock")

	srv, err := newIPCServerAt(sock, func(string) error { return nil })
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	srv.Start()

	if _, err := newIPCServerAt(sock, func(string) error { return nil }); err == nil {
		t.Error("second bind on a live socket succeeded")
	}
	srv.Stop()

	// Stop removes the socket, so a later instance binds cleanly.
	srv2, err := newIPCServerAt(sock, func(string) error { return nil })
	if err != nil {
		t.Fatalf("rebind after shutdown failed: %v", err)
	}
	srv2.Start()
	srv2.Stop()
}
