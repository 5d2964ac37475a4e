package document

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDocument is returned when a file holds no YAML document.
	ErrEmptyDocument = errors.New("empty document")

	// ErrNotMapping is returned when the document root is not a mapping.
	ErrNotMapping = errors.New("document root is not a mapping")

	// ErrBackupMismatch is returned when a backup does not read back byte-identical.
	ErrBackupMismatch = errors.New("backup does not match original")
)

// Op names the document operation that failed.
type Op string

const (
	OpLoad   Op = "load"
	OpBackup Op = "backup"
	OpSave   Op = "save"
)

// Error is a document-level failure. The run records it against the
// document and continues with the next one.
type Error struct {
	Path string
	Op   Op
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
