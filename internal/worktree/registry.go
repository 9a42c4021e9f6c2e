package worktree

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/poe-code/ralph/internal/filelock"
)

type registryDoc struct {
	Worktrees map[string]Entry `yaml:"worktrees"`
}

// upsert reads the registry file under lock, inserts/replaces entry keyed
// by its name, and writes the result back atomically — the same
// read-modify-write shape as planstore.Store.MutateUnderLock, reused here
// for a second shared on-disk document.
func (c *Coordinator) upsert(entry *Entry) error {
	lock, err := filelock.AcquireWithRetry(filelock.LockPathFor(c.RegistryPath), filelock.DefaultRetryPolicy())
	if err != nil {
		return err
	}
	defer lock.Unlock()

	entries, err := readRegistry(c.RegistryPath)
	if err != nil {
		return err
	}
	found := false
	for i := range entries {
		if entries[i].Name == entry.Name {
			entries[i] = *entry
			found = true
			break
		}
	}
	if !found {
		entries = append(entries, *entry)
	}

	return writeRegistry(c.RegistryPath, entries)
}

func (c *Coordinator) remove(name string) error {
	lock, err := filelock.AcquireWithRetry(filelock.LockPathFor(c.RegistryPath), filelock.DefaultRetryPolicy())
	if err != nil {
		return err
	}
	defer lock.Unlock()

	entries, err := readRegistry(c.RegistryPath)
	if err != nil {
		return err
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.Name != name {
			kept = append(kept, e)
		}
	}
	return writeRegistry(c.RegistryPath, kept)
}

func readRegistry(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("worktree: read registry: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var doc registryDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("worktree: parse registry: %w", err)
	}
	entries := make([]Entry, 0, len(doc.Worktrees))
	for _, e := range doc.Worktrees {
		entries = append(entries, e)
	}
	return entries, nil
}

func writeRegistry(path string, entries []Entry) error {
	doc := registryDoc{Worktrees: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		doc.Worktrees[e.Name] = e
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("worktree: marshal registry: %w", err)
	}
	if err := filelock.AtomicWrite(path, out); err != nil {
		return fmt.Errorf("worktree: write registry: %w", err)
	}
	return nil
}
