package knownhosts

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestVerifyAfterReconcile(t *testing.T) {
	store := filepath.Join(t.TempDir(), "known_hosts")
	key, text := newHostKey(t)

	if _, err := Reconcile(store, "192.168.1.20", 2222, text); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if err := Verify(store, "192.168.1.20", 2222, key); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := VerifyText(store, "192.168.1.20", 2222, text); err != nil {
		t.Fatalf("VerifyText: %v", err)
	}
}

func TestVerifyDefaultPortBracketedEntry(t *testing.T) {
	store := filepath.Join(t.TempDir(), "known_hosts")
	key, text := newHostKey(t)

	if _, err := Reconcile(store, "nixos.local", 22, text); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if err := Verify(store, "nixos.local", 22, key); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyRejectsUnknownAndMismatched(t *testing.T) {
	store := filepath.Join(t.TempDir(), "known_hosts")
	key, text := newHostKey(t)
	other, _ := newHostKey(t)

	if _, err := Reconcile(store, "h", 22, text); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if err := Verify(store, "h", 22, other); !errors.Is(err, ErrKeyNotTrusted) {
		t.Errorf("mismatched key: expected ErrKeyNotTrusted, got %v", err)
	}
	if err := Verify(store, "h", 2200, key); !errors.Is(err, ErrKeyNotTrusted) {
		t.Errorf("unknown endpoint: expected ErrKeyNotTrusted, got %v", err)
	}
}

func TestVerifyMissingStore(t *testing.T) {
	key, _ := newHostKey(t)
	err := Verify(filepath.Join(t.TempDir(), "absent"), "h", 22, key)
	if !errors.Is(err, ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
}
