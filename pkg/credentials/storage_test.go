package credentials

import (
	"errors"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

func TestBoltStoreSavesAndExpiresSessions(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		SessionTTL:      time.Hour,
		CleanupInterval: time.Hour,
	}

	storeRaw, err := openBolt(dir+"/sessions.db", opts)
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	store := storeRaw.(*boltStore)
	defer store.Close()

	now := time.Now()
	store.now = func() time.Time { return now }

	if _, err := store.Load("user"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	want := Tokens{AccessToken: "a1", RefreshToken: "r1"}
	if err := store.Save("user", want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load("user")
	if err != nil || got.AccessToken != "a1" || got.RefreshToken != "r1" {
		t.Fatalf("unexpected load %#v err=%v", got, err)
	}

	// Move past the session TTL and the cleanup cadence.
	now = now.Add(2 * time.Hour)
	if _, err := store.Load("user"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected session to expire, got %v", err)
	}
}

func TestBoltStoreDelete(t *testing.T) {
	store, err := NewStore("bbolt", t.TempDir()+"/nested/s.db", Options{})
	if err != nil {
		t.Fatalf("NewStore bbolt: %v", err)
	}
	defer store.Close()

	if err := store.Save("k", Tokens{AccessToken: "x"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load("k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted session, got %v", err)
	}
}

func TestNewStoreValidation(t *testing.T) {
	if _, err := NewStore("bbolt", " ", Options{}); err == nil {
		t.Fatalf("expected path error")
	}
	if _, err := NewStore("etcd", "", Options{}); err == nil {
		t.Fatalf("expected unsupported type error")
	}
	store, err := NewStore("none", "", Options{})
	if err != nil {
		t.Fatalf("NewStore none: %v", err)
	}
	if err := store.Save("x", Tokens{AccessToken: "a"}); err != nil {
		t.Fatalf("noop store Save: %v", err)
	}
	if _, err := store.Load("x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("noop store must not retain tokens")
	}
}

func TestMemoryStore(t *testing.T) {
	store, err := NewStore("", "", Options{})
	if err != nil {
		t.Fatalf("NewStore memory: %v", err)
	}
	_ = store.Save("k", Tokens{AccessToken: "a"})
	got, err := store.Load("k")
	if err != nil || got.AccessToken != "a" {
		t.Fatalf("unexpected %#v err=%v", got, err)
	}
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewStore("keyring", "", Options{Service: "samvad-test"})
	if err != nil {
		t.Fatalf("NewStore keyring: %v", err)
	}
	if _, err := store.Load("user"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Save("user", Tokens{AccessToken: "a", RefreshToken: "r"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load("user")
	if err != nil || got.RefreshToken != "r" {
		t.Fatalf("unexpected %#v err=%v", got, err)
	}
	if err := store.Delete("user"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete("user"); err != nil {
		t.Fatalf("Delete of missing entry should be a no-op: %v", err)
	}
}
