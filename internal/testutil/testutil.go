// Package testutil provides testing utilities for entitylock tests.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/entitylock/internal/logging"
)

// DefaultWait bounds how long helpers wait for something that should happen.
const DefaultWait = 5 * time.Second

// Eventually polls cond until it returns true or timeout elapses, failing
// the test with msg in the latter case.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %s: %s", timeout, msg)
		}
		time.Sleep(time.Millisecond)
	}
}

// WaitClosed fails the test if ch is not closed, or does not deliver a
// value, within DefaultWait.
func WaitClosed[T any](t *testing.T, ch <-chan T, what string) {
	t.Helper()

	select {
	case <-ch:
	case <-time.After(DefaultWait):
		t.Fatalf("timed out waiting for %s", what)
	}
}

// NeverWithin fails the test if ch delivers anything within d.
func NeverWithin[T any](t *testing.T, ch <-chan T, d time.Duration, what string) {
	t.Helper()

	select {
	case <-ch:
		t.Fatalf("%s happened, expected it to block", what)
	case <-time.After(d):
	}
}

// RunGroup starts n goroutines running fn(i) and waits for all of them.
func RunGroup(n int, fn func(i int)) {
	var wg sync.WaitGroup
	for i := range n {
		wg.Go(func() { fn(i) })
	}
	wg.Wait()
}

// SyncBuffer is a bytes.Buffer safe for concurrent writers.
type SyncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *SyncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *SyncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// CaptureLogger returns a logger writing JSON lines at level into the
// returned buffer.
func CaptureLogger(t *testing.T, level string) (*logging.Logger, *SyncBuffer) {
	t.Helper()

	buf := &SyncBuffer{}
	return logging.NewWriterLogger(buf, level), buf
}

// WriteFile writes content under a fresh temp directory and returns its path.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file %s: %v", name, err)
	}
	return path
}

// SkipIfShort skips long-running stress tests under -short.
func SkipIfShort(t *testing.T) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}
}
