// Package signature implements the persisted action-signature store of
// SPEC_FULL.md §4.10: a target-key to digest map used to detect that a
// target's build action changed even though its dependencies didn't.
//
// Grounded on the original implementation's sign.py (load/save/test,
// including its "warn once, start empty, mark dirty" handling of a missing
// or corrupt signature file), re-encoded with
// github.com/vmihailenco/msgpack/v5 in place of Python's marshal, and with
// digests formatted via github.com/opencontainers/go-digest (repurposed
// from the teacher's OCI layer-digest usage) instead of raw signature text,
// so the persisted file never holds arbitrarily large recipe command text.
package signature

import (
	"bytes"
	"io"
	"os"
	"sort"
	"sync"

	digest "github.com/opencontainers/go-digest"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/pkg/errors"
)

// magic identifies a maat signature file; version allows the encoding to
// evolve without silently misreading an old file.
const (
	magic          = "MAATSIGN"
	formatVersion  = byte(1)
)

// ErrSignatureIO is wrapped by any error reading or writing the signature
// file. It is non-fatal: callers should warn and proceed with an empty
// store, the way the original's load() does.
var ErrSignatureIO = errors.New("signature store I/O")

// entry is the on-disk representation of one target's recorded digest. A
// struct-of-pairs (rather than a map) is used so msgpack encoding is
// deterministic once sorted by Key: msgpack does not guarantee map key
// order, and a store whose serialized bytes change from run to run with no
// semantic change would be an odd artifact to keep under version control.
type entry struct {
	Key    string `msgpack:"key"`
	Digest string `msgpack:"digest"`
}

// Store is an in-memory signature table with load/save against a backing
// file.
type Store struct {
	mu    sync.Mutex
	path  string
	signs map[string]string
	dirty bool
}

// New creates an empty, unloaded store bound to path.
func New(path string) *Store {
	return &Store{path: path, signs: map[string]string{}}
}

// Digest computes the digest string recorded for a given signature text.
// Two recipes with equal signature text always produce the same digest.
func Digest(signatureText string) string {
	return digest.FromString(signatureText).String()
}

// Load reads the signature file. A missing file is not an error: the store
// starts empty and Dirty() becomes true (matching the original: "not
// p.exists() => update = True"). A corrupt file returns ErrSignatureIO
// wrapped with the underlying cause; the caller should warn and continue,
// since the store still starts empty and the Dirty flag is set either way.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.dirty = true
		return nil
	}
	if err != nil {
		s.dirty = true
		return errors.Wrap(ErrSignatureIO, err.Error())
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		s.dirty = true
		return errors.Wrap(ErrSignatureIO, err.Error())
	}
	if len(data) < len(magic)+1 || string(data[:len(magic)]) != magic {
		s.dirty = true
		return errors.Wrap(ErrSignatureIO, "bad signature file header")
	}
	if data[len(magic)] != formatVersion {
		s.dirty = true
		return errors.Wrap(ErrSignatureIO, "unsupported signature file version")
	}

	var entries []entry
	if err := msgpack.NewDecoder(bytes.NewReader(data[len(magic)+1:])).Decode(&entries); err != nil {
		s.dirty = true
		return errors.Wrap(ErrSignatureIO, err.Error())
	}
	for _, e := range entries {
		s.signs[e.Key] = e.Digest
	}
	return nil
}

// Save persists the store if it has unsaved changes. It is a no-op
// otherwise, mirroring the original's "nothing to do" early return.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}

	entries := make([]entry, 0, len(s.signs))
	for k, v := range s.signs {
		entries = append(entries, entry{Key: k, Digest: v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	var buf bytes.Buffer
	buf.WriteString(magic)
	buf.WriteByte(formatVersion)
	if err := msgpack.NewEncoder(&buf).Encode(entries); err != nil {
		return errors.Wrap(ErrSignatureIO, err.Error())
	}

	if err := os.WriteFile(s.path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrap(ErrSignatureIO, err.Error())
	}
	s.dirty = false
	return nil
}

// Test reports whether key's recorded digest matches signatureText's
// digest. A mismatch (including "no entry recorded yet") updates the
// recorded digest and marks the store dirty, mirroring sign.test's
// side-effecting KeyError/mismatch branches.
func (s *Store) Test(key, signatureText string) bool {
	d := Digest(signatureText)

	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.signs[key]; ok && cur == d {
		return true
	}
	s.signs[key] = d
	s.dirty = true
	return false
}

// Dirty reports whether the store has changes not yet flushed to disk.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}
