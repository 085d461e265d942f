package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

var testEpoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// createTestStore creates a new temporary store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestJob creates a pending job with one item per class name.
func createTestJob(id string, createdAt time.Time, classNames ...string) Job {
	items := make([]JobItem, len(classNames))
	for i, name := range classNames {
		items[i] = JobItem{
			Seq:        i,
			ClassName:  name,
			SourcePath: fmt.Sprintf("/work/%s/%s.cs", id, name),
		}
	}
	return Job{
		ID:         id,
		Status:     StatusPending,
		OutputPath: "/out/" + id + ".json",
		CreatedAt:  createdAt,
		Items:      items,
	}
}
