// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cfb

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidContainer reports a missing signature or an inconsistent
	// header, FAT or directory. It is fatal for the whole container.
	ErrInvalidContainer = errors.New("cfb: invalid container")

	// ErrEntryRead reports that one entry's sector chain could not be
	// followed. Other entries remain readable.
	ErrEntryRead = errors.New("cfb: entry read failed")
)

// EntryError wraps an entry-level read failure with the entry's path.
type EntryError struct {
	Path []string
	Err  error
}

func (e *EntryError) Error() string {
	return "cfb: reading " + strings.Join(e.Path, "/") + ": " + e.Err.Error()
}

// Unwrap lets errors.Is match both ErrEntryRead and the underlying cause.
func (e *EntryError) Unwrap() []error {
	return []error{ErrEntryRead, e.Err}
}
