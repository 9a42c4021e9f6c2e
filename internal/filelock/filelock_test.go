package filelock

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestLockUnlock(t *testing.T) {
	lock := New(filepath.Join(t.TempDir(), "test.lock"))
	if err := lock.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if err := lock.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
}

func TestAtomicWrite_CreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "plan.yaml")
	if err := AtomicWrite(path, []byte("version: 1\n")); err != nil {
		t.Fatalf("AtomicWrite: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "version: 1\n" {
		t.Errorf("unexpected content: %q", got)
	}
}

func TestAtomicWrite_NoPartialWritesVisible(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	if err := AtomicWrite(path, []byte("first\n")); err != nil {
		t.Fatalf("AtomicWrite: %v", err)
	}
	if err := AtomicWrite(path, []byte("second\n")); err != nil {
		t.Fatalf("AtomicWrite: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "second\n" {
		t.Errorf("expected final content to be fully replaced, got %q", got)
	}
}

func TestAcquireWithRetry_Succeeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml.lock")
	lock, err := AcquireWithRetry(path, DefaultRetryPolicy())
	if err != nil {
		t.Fatalf("AcquireWithRetry: %v", err)
	}
	defer lock.Unlock()
}

func TestAcquireWithRetry_FailsWhenHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml.lock")
	holder := New(path)
	if err := holder.Lock(); err != nil {
		t.Fatalf("holder.Lock: %v", err)
	}
	defer holder.Unlock()

	policy := RetryPolicy{MaxAttempts: 3, MinBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
	_, err := AcquireWithRetry(path, policy)
	if err == nil {
		t.Fatal("expected lock acquisition to fail while held")
	}
}

func TestAcquireWithRetry_SerializesConcurrentWriters(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "counter.lock")
	counterPath := filepath.Join(dir, "counter.txt")
	if err := os.WriteFile(counterPath, []byte("0"), 0644); err != nil {
		t.Fatalf("seed counter: %v", err)
	}

	const goroutines = 8
	policy := RetryPolicy{MaxAttempts: 50, MinBackoff: time.Millisecond, MaxBackoff: 10 * time.Millisecond}

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			lock, err := AcquireWithRetry(lockPath, policy)
			if err != nil {
				t.Errorf("AcquireWithRetry: %v", err)
				return
			}
			defer lock.Unlock()

			data, err := os.ReadFile(counterPath)
			if err != nil {
				t.Errorf("ReadFile: %v", err)
				return
			}
			n := 0
			for _, c := range data {
				if c >= '0' && c <= '9' {
					n = n*10 + int(c-'0')
				}
			}
			time.Sleep(time.Millisecond)
			if err := AtomicWrite(counterPath, []byte(itoa(n+1))); err != nil {
				t.Errorf("AtomicWrite: %v", err)
			}
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(counterPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != itoa(goroutines) {
		t.Errorf("expected serialized counter to reach %d, got %q", goroutines, data)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
