package storage

import (
	"bytes"
	"testing"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store, err := OpenSQLiteStore(":memory:", nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	payload := []byte(`{"version":"v4_bot","session_id":"conv_test0001"}`)
	if err := store.Write(map[string][]byte{"conv_test0001": payload}); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := store.Read([]string{"conv_test0001", "conv_missing"})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got["conv_test0001"], payload) {
		t.Errorf("payload changed: %s", got["conv_test0001"])
	}
	if _, ok := got["conv_missing"]; ok {
		t.Error("missing key must be omitted, not present")
	}
}

func TestSQLiteStoreUpsert(t *testing.T) {
	store, err := OpenSQLiteStore(":memory:", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	key := "conv_upsert01"
	if err := store.Write(map[string][]byte{key: []byte("first")}); err != nil {
		t.Fatal(err)
	}
	if err := store.Write(map[string][]byte{key: []byte("second")}); err != nil {
		t.Fatal(err)
	}

	got, err := store.Read([]string{key})
	if err != nil {
		t.Fatal(err)
	}
	if string(got[key]) != "second" {
		t.Errorf("expected latest snapshot, got %s", got[key])
	}

	sessions, err := store.Sessions()
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 {
		t.Errorf("upsert created duplicate rows: %v", sessions)
	}
}

func TestSQLiteStoreDelete(t *testing.T) {
	store, err := OpenSQLiteStore(":memory:", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.Write(map[string][]byte{"conv_del01": []byte("x")}); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete("conv_del01"); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete("conv_never_existed"); err != nil {
		t.Errorf("deleting absent session must not fail: %v", err)
	}

	got, err := store.Read([]string{"conv_del01"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Error("deleted session still readable")
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()

	payload := []byte("state")
	if err := store.Write(map[string][]byte{"s1": payload}); err != nil {
		t.Fatal(err)
	}

	// Mutating the caller's slice must not affect the stored copy.
	payload[0] = 'X'

	got, err := store.Read([]string{"s1"})
	if err != nil {
		t.Fatal(err)
	}
	if string(got["s1"]) != "state" {
		t.Errorf("store aliased caller memory: %s", got["s1"])
	}
}

type mapSnapshotter map[string][]byte

func (m mapSnapshotter) Snapshot() (map[string][]byte, error) { return m, nil }

func TestCheckpointerFlush(t *testing.T) {
	store := NewMemoryStore()
	source := mapSnapshotter{"conv_cp01": []byte("snapshot")}
	cp := NewCheckpointer(store, source, nil)

	cp.Flush()

	got, err := store.Read([]string{"conv_cp01"})
	if err != nil {
		t.Fatal(err)
	}
	if string(got["conv_cp01"]) != "snapshot" {
		t.Errorf("flush did not persist: %v", got)
	}
}

func TestCheckpointerBadSchedule(t *testing.T) {
	cp := NewCheckpointer(NewMemoryStore(), mapSnapshotter{}, nil)
	if err := cp.Start("not a cron expression"); err == nil {
		t.Error("expected error for invalid schedule")
	}
}
