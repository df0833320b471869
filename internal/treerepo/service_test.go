package treerepo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

const initialSnapshot = `0 HEAD
1 CHAR UTF-8
0 @I1@ INDI
1 NAME John /Smith/
0 TRLR
`

func TestTreeRepoLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	first, err := svc.EnsureRepo("tree-1", initialSnapshot, "Avery")
	if err != nil {
		t.Fatalf("EnsureRepo() error = %v", err)
	}
	if first.Hash == "" {
		t.Fatal("expected initial commit hash")
	}
	if _, err := os.Stat(filepath.Join(tempDir, "tree-1")); err != nil {
		t.Fatalf("repo directory missing: %v", err)
	}

	updated := strings.Replace(initialSnapshot, "John /Smith/", "John Q /Smith/", 1)
	commit, err := svc.CommitSnapshot("tree-1", updated, "Avery", "Correct given name")
	if err != nil {
		t.Fatalf("CommitSnapshot() error = %v", err)
	}
	if commit.Hash == "" {
		t.Fatal("expected commit hash")
	}
	if commit.Added != 1 || commit.Removed != 1 {
		t.Fatalf("expected one line changed, got +%d/-%d", commit.Added, commit.Removed)
	}

	head, headCommit, err := svc.HeadSnapshot("tree-1")
	if err != nil {
		t.Fatalf("HeadSnapshot() error = %v", err)
	}
	if !strings.Contains(head, "John Q /Smith/") {
		t.Fatalf("head snapshot missing update:\n%s", head)
	}
	if headCommit.Hash != commit.Hash {
		t.Fatalf("head commit %q != last commit %q", headCommit.Hash, commit.Hash)
	}

	history, err := svc.History("tree-1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}

	original, err := svc.SnapshotByHash("tree-1", first.Hash)
	if err != nil {
		t.Fatalf("SnapshotByHash() error = %v", err)
	}
	if original != initialSnapshot {
		t.Fatalf("first snapshot changed:\n%s", original)
	}
}

func TestEnsureRepoIsIdempotent(t *testing.T) {
	svc := New(t.TempDir())

	if _, err := svc.EnsureRepo("tree-1", initialSnapshot, "Avery"); err != nil {
		t.Fatalf("EnsureRepo() error = %v", err)
	}
	if _, err := svc.EnsureRepo("tree-1", "0 HEAD\n0 TRLR\n", "Avery"); err != nil {
		t.Fatalf("second EnsureRepo() error = %v", err)
	}

	head, _, err := svc.HeadSnapshot("tree-1")
	if err != nil {
		t.Fatalf("HeadSnapshot() error = %v", err)
	}
	if head != initialSnapshot {
		t.Fatal("re-running EnsureRepo must not overwrite the snapshot")
	}
}

func TestTagAndResolve(t *testing.T) {
	svc := New(t.TempDir())

	commit, err := svc.EnsureRepo("tree-1", initialSnapshot, "Avery")
	if err != nil {
		t.Fatalf("EnsureRepo() error = %v", err)
	}
	if err := svc.Tag("tree-1", commit.Hash, "filtered-3gen"); err != nil {
		t.Fatalf("Tag() error = %v", err)
	}
	// Tagging the same commit twice is fine.
	if err := svc.Tag("tree-1", commit.Hash, "filtered-3gen"); err != nil {
		t.Fatalf("repeat Tag() error = %v", err)
	}

	snapshot, err := svc.SnapshotByHash("tree-1", "filtered-3gen")
	if err != nil {
		t.Fatalf("SnapshotByHash(tag) error = %v", err)
	}
	if snapshot != initialSnapshot {
		t.Fatal("tag did not resolve to the tagged snapshot")
	}
}

func TestRemoveDeletesRepo(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	if _, err := svc.EnsureRepo("tree-1", initialSnapshot, "Avery"); err != nil {
		t.Fatalf("EnsureRepo() error = %v", err)
	}
	if err := svc.Remove("tree-1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "tree-1")); !os.IsNotExist(err) {
		t.Fatalf("repo directory still present: %v", err)
	}
}

func TestConcurrentCommits(t *testing.T) {
	svc := New(t.TempDir())

	if _, err := svc.EnsureRepo("tree-1", initialSnapshot, "Avery"); err != nil {
		t.Fatalf("EnsureRepo() error = %v", err)
	}

	const writers = 12
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			snapshot := strings.Replace(initialSnapshot, "John", fmt.Sprintf("John%02d", idx), 1)
			if _, err := svc.CommitSnapshot("tree-1", snapshot, "Avery", fmt.Sprintf("Commit %02d", idx)); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			t.Fatalf("CommitSnapshot() concurrent error = %v", err)
		}
	}

	history, err := svc.History("tree-1", 100)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) < writers+1 {
		t.Fatalf("expected at least %d commits, got %d", writers+1, len(history))
	}
}

func TestLineDelta(t *testing.T) {
	added, removed := lineDelta("a\nb\nc\n", "a\nc\nd\ne\n")
	if added != 2 || removed != 1 {
		t.Fatalf("lineDelta = +%d/-%d, want +2/-1", added, removed)
	}
	added, removed = lineDelta("", "a\nb\n")
	if added != 2 || removed != 0 {
		t.Fatalf("lineDelta from empty = +%d/-%d, want +2/-0", added, removed)
	}
}
