package signature

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileStartsEmptyAndDirty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "signs"))
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !s.Dirty() {
		t.Errorf("expected a missing signature file to mark the store dirty")
	}
}

func TestTestRecordsAndMatches(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "signs"))
	if s.Test("out.o", "cc -c in.c") {
		t.Errorf("expected first Test on an unknown key to report a mismatch")
	}
	if !s.Test("out.o", "cc -c in.c") {
		t.Errorf("expected second Test with the same signature to match")
	}
	if s.Test("out.o", "cc -c in.c -O2") {
		t.Errorf("expected a changed signature to report a mismatch")
	}
}

func TestSaveAndReload(t *testing.T) {
	p := filepath.Join(t.TempDir(), "signs")
	s := New(p)
	s.Test("out.o", "cc -c in.c")
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	s2 := New(p)
	if err := s2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s2.Dirty() {
		t.Errorf("freshly loaded store from a well-formed file should not be dirty")
	}
	if !s2.Test("out.o", "cc -c in.c") {
		t.Errorf("expected reloaded store to remember the recorded signature")
	}
}

func TestSaveNoOpWhenClean(t *testing.T) {
	p := filepath.Join(t.TempDir(), "signs")
	s := New(p)
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(p); err == nil {
		t.Errorf("expected Save to skip writing a file when the store is clean")
	}
}
