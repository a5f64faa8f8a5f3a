package session

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/credvault/credvault/internal/crypto"
	"github.com/credvault/credvault/internal/storage"
)

// failingStore fails every Persist while err is set.
type failingStore struct {
	*storage.LocalStorage
	err error
}

func (f *failingStore) Persist(ev *storage.Envelope) error {
	if f.err != nil {
		return f.err
	}
	return f.LocalStorage.Persist(ev)
}

func TestRotateMasterPassword(t *testing.T) {
	store := newStore(t)
	s := mustCreate(t, store, "old")
	if err := s.Add("gmail", "alice", []byte("p@ss1")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add("bank", "bob", []byte("p@ss2")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	before, _ := store.Load()

	if err := s.RotateMasterPassword([]byte("new")); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	after, _ := store.Load()
	if bytes.Equal(before.KDF.Salt, after.KDF.Salt) {
		t.Fatal("rotation kept the salt")
	}
	if bytes.Equal(before.Nonce, after.Nonce) {
		t.Fatal("rotation reused the nonce")
	}
	if after.VaultID != before.VaultID {
		t.Fatal("rotation changed the vault id")
	}

	// the session keeps working under the new key
	if err := s.Delete("bank"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("save after rotate: %v", err)
	}
	s.Close()

	if _, err := Open(store, []byte("old"), testOptions()); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword for old password, got %v", err)
	}
	s2 := mustOpen(t, store, "new")
	ids := collectIDs(s2)
	if len(ids) != 1 || ids[0] != "gmail" {
		t.Fatalf("unexpected ids %v", ids)
	}
	r, _ := s2.Get("gmail")
	if r.Username != "alice" || string(r.Password) != "p@ss1" {
		t.Fatalf("unexpected record %+v", r)
	}
}

func TestRotatePersistsUnsavedChanges(t *testing.T) {
	store := newStore(t)
	s := mustCreate(t, store, "old")
	if err := s.Add("gmail", "alice", []byte("p@ss1")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.RotateMasterPassword([]byte("new")); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if s.Dirty() {
		t.Fatal("session still dirty after rotation")
	}
	s.Close()

	s2 := mustOpen(t, store, "new")
	if _, err := s2.Get("gmail"); err != nil {
		t.Fatalf("get: %v", err)
	}
}

func TestRotateAdoptsConfiguredParams(t *testing.T) {
	store := newStore(t)
	s := mustCreate(t, store, "old")
	s.opts.Cipher = crypto.CipherAES256GCM
	s.opts.KDF = crypto.KDFParams{Algo: crypto.KDFScrypt, Memory: 8, Iterations: 16, Parallelism: 1}

	if err := s.RotateMasterPassword([]byte("new")); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	ev, _ := store.Load()
	if ev.Cipher != crypto.CipherAES256GCM || ev.KDF.Algo != crypto.KDFScrypt {
		t.Fatalf("rotation did not adopt new parameters: %s %s", ev.Cipher, ev.KDF.KDFParams)
	}
	s.Close()
	mustOpen(t, store, "new")
}

func TestRotateFailureKeepsOldPassword(t *testing.T) {
	local := newStore(t)
	store := &failingStore{LocalStorage: local}
	s := mustCreate(t, store, "old")
	if err := s.Add("gmail", "alice", []byte("p@ss1")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	onDisk, _ := os.ReadFile(local.VaultPath)
	rev := s.Revision()

	if err := s.Modify("gmail", Update{Password: []byte("p@ss2")}); err != nil {
		t.Fatalf("modify: %v", err)
	}
	store.err = errors.New("disk full")
	if err := s.RotateMasterPassword([]byte("new")); err == nil {
		t.Fatal("expected rotation to fail")
	}
	if got, _ := os.ReadFile(local.VaultPath); !bytes.Equal(onDisk, got) {
		t.Fatal("failed rotation changed the vault file")
	}
	if !s.Dirty() || s.Revision() != rev {
		t.Fatal("failed rotation changed session state")
	}

	// the session still seals under the old key
	store.err = nil
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	s.Close()

	if _, err := Open(local, []byte("new"), testOptions()); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword for new password, got %v", err)
	}
	s2 := mustOpen(t, local, "old")
	r, _ := s2.Get("gmail")
	if string(r.Password) != "p@ss2" {
		t.Fatalf("unexpected password %q", r.Password)
	}
}

func TestSaveFailureKeepsDirty(t *testing.T) {
	store := &failingStore{LocalStorage: newStore(t)}
	s := mustCreate(t, store, "master")
	if err := s.Add("gmail", "alice", []byte("p@ss1")); err != nil {
		t.Fatalf("add: %v", err)
	}
	store.err = errors.New("disk full")
	if err := s.Save(); err == nil {
		t.Fatal("expected save to fail")
	}
	if !s.Dirty() {
		t.Fatal("failed save cleared the dirty flag")
	}
	store.err = nil
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	if s.Dirty() {
		t.Fatal("expected clean session")
	}
}

func TestRotateAfterClose(t *testing.T) {
	s := mustCreate(t, newStore(t), "master")
	s.Close()
	if err := s.RotateMasterPassword([]byte("new")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestRotateCommittedWhenDirectoryUnreadable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	store := newStore(t)
	s := mustCreate(t, store, "old")
	if err := s.Add("gmail", "alice", []byte("p@ss1")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	// write and search only: the rename succeeds, opening the directory does not
	dir := filepath.Dir(store.VaultPath)
	if err := os.Chmod(dir, 0300); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	defer os.Chmod(dir, 0700)

	if err := s.RotateMasterPassword([]byte("new")); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if err := s.Modify("gmail", Update{Password: []byte("p@ss2")}); err != nil {
		t.Fatalf("modify: %v", err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	if s.Dirty() {
		t.Fatal("session still dirty after a committed save")
	}
	s.Close()
	os.Chmod(dir, 0700)

	if _, err := Open(store, []byte("old"), testOptions()); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword for old password, got %v", err)
	}
	s2 := mustOpen(t, store, "new")
	r, _ := s2.Get("gmail")
	if string(r.Password) != "p@ss2" {
		t.Fatalf("unexpected password %q", r.Password)
	}
}
