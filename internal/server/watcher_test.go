package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/subguard/guardian/household"
)

func TestPolicyWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policies.yaml")
	if err := os.WriteFile(path, []byte(testPolicyYAML), 0o644); err != nil {
		t.Fatalf("writing policy file: %v", err)
	}

	manager := household.NewManager()
	h, err := manager.Create("home", path)
	if err != nil {
		t.Fatalf("creating household: %v", err)
	}

	watcher, err := NewPolicyWatcher(manager)
	if err != nil {
		t.Fatalf("NewPolicyWatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = watcher.Start(ctx)
	}()

	// Give the watcher a moment to settle before the write.
	time.Sleep(100 * time.Millisecond)

	next := `
mock_database:
  - id: sub_777
    name: "Hotstar"
    category: streaming
    amount: 299
`
	if err := os.WriteFile(path, []byte(next), 0o644); err != nil {
		t.Fatalf("rewriting policy file: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := h.Store.FindResource("sub_777"); ok {
			cancel()
			<-done
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("policy change was not hot reloaded")
}

func TestPolicyWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policies.yaml")
	if err := os.WriteFile(path, []byte(testPolicyYAML), 0o644); err != nil {
		t.Fatalf("writing policy file: %v", err)
	}

	manager := household.NewManager()
	h, err := manager.Create("home", path)
	if err != nil {
		t.Fatalf("creating household: %v", err)
	}

	watcher, err := NewPolicyWatcher(manager)
	if err != nil {
		t.Fatalf("NewPolicyWatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Start(ctx)

	time.Sleep(100 * time.Millisecond)

	// A sibling file changing must not disturb the household.
	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(other, []byte("unrelated"), 0o644); err != nil {
		t.Fatalf("writing sibling file: %v", err)
	}

	time.Sleep(500 * time.Millisecond)
	if _, ok := h.Store.FindResource("sub_001"); !ok {
		t.Error("household rule set should be untouched")
	}
}
