package mailqueue

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	// SuffixQueued marks a message waiting for a consumer.
	SuffixQueued = ".message"
	// SuffixSending marks a message claimed by a consumer.
	SuffixSending = ".message.sending"
	// SuffixFailure marks the failure record of a claimed message.
	SuffixFailure = ".message.failure"

	tmpSuffix = ".tmp"

	filePerm = 0o600
	dirPerm  = 0o700
)

// stateSuffixes are ordered longest first so that trimming picks the right one.
var stateSuffixes = []string{SuffixFailure, SuffixSending, SuffixQueued}

// SplitItemID splits a queue item id into its stem and state suffix.
func SplitItemID(id string) (stem, suffix string, ok bool) {
	for _, suffix := range stateSuffixes {
		if stem, found := strings.CutSuffix(id, suffix); found && stem != "" {
			return stem, suffix, true
		}
	}
	return "", "", false
}

func itemStem(name string) (string, bool) {
	stem, _, ok := SplitItemID(name)
	return stem, ok
}

// fileVariant swaps the state suffix of name for suffix.
func fileVariant(name, suffix string) (string, bool) {
	stem, ok := itemStem(name)
	if !ok {
		return "", false
	}
	return stem + suffix, true
}

// scanDir lists regular files in dir whose names end in one of suffixes.
// A missing directory is empty.
func scanDir(dir string, suffixes ...string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read queue directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		for _, suffix := range suffixes {
			if name := e.Name(); strings.HasSuffix(name, suffix) && len(name) > len(suffix) {
				names = append(names, name)
				break
			}
		}
	}
	return names, nil
}

// readDir materializes every queued and in-flight item in dir.
func readDir(dir string) ([]Item, error) {
	names, err := scanDir(dir, SuffixQueued, SuffixSending)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(names))
	for _, name := range names {
		item, err := readItem(dir, name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// claimed or deleted by another consumer since the listing
				continue
			}
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// readItem builds the item stored in dir/name.
func readItem(dir, name string) (Item, error) {
	path := filepath.Join(dir, name)

	info, err := os.Stat(path)
	if err != nil {
		return Item{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Item{}, err
	}
	msg, err := UnmarshalMessage(path, data)
	if err != nil {
		return Item{}, err
	}

	failure, err := readFailure(dir, name)
	if err != nil {
		return Item{}, err
	}

	date := info.ModTime()
	item := Item{
		ID:      name,
		Message: msg,
		State:   StateQueued,
		Date:    &date,
		Failure: failure,
	}
	switch {
	case failure != nil:
		item.State = StateFailed
	case strings.HasSuffix(name, SuffixSending):
		item.State = StateSending
	}
	return item, nil
}

// readFailure returns the failure record next to name, or nil when there is none.
func readFailure(dir, name string) (*TransportFailure, error) {
	sidecar, ok := fileVariant(name, SuffixFailure)
	if !ok {
		return nil, nil
	}
	path := filepath.Join(dir, sidecar)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read failure record: %w", err)
	}

	f, err := UnmarshalFailure(path, data)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
