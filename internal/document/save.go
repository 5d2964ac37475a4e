package document

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// BackupSuffix is appended to a document path to form its backup path.
const BackupSuffix = ".bak"

// Save persists the document if it changed. The on-disk file is first copied
// to <path>.bak and verified; only then is the new content written, via a
// temp file renamed over the original. It returns the backup path, or ""
// when nothing was written.
func (d *Document) Save() (string, error) {
	if !d.changed {
		return "", nil
	}

	data, err := d.Encode()
	if err != nil {
		return "", &Error{Path: d.Path, Op: OpSave, Err: err}
	}

	backup, err := Backup(d.Path)
	if err != nil {
		return "", err
	}

	if err := writeAtomic(d.Path, data); err != nil {
		return backup, &Error{Path: d.Path, Op: OpSave, Err: err}
	}

	if err := d.reset(data); err != nil {
		return backup, &Error{Path: d.Path, Op: OpSave, Err: fmt.Errorf("reloading saved document: %w", err)}
	}
	return backup, nil
}

// Backup copies path to path+BackupSuffix byte for byte, syncs it and reads
// it back to confirm the copy is faithful.
func Backup(path string) (string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return "", &Error{Path: path, Op: OpBackup, Err: fmt.Errorf("reading original: %w", err)}
	}

	dst := path + BackupSuffix
	if err := writeSynced(dst, src, fileMode(path)); err != nil {
		return "", &Error{Path: path, Op: OpBackup, Err: err}
	}

	check, err := os.ReadFile(dst)
	if err != nil {
		return "", &Error{Path: path, Op: OpBackup, Err: fmt.Errorf("reading backup: %w", err)}
	}
	if !bytes.Equal(src, check) {
		return "", &Error{Path: path, Op: OpBackup, Err: ErrBackupMismatch}
	}
	return dst, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	name := tmp.Name()
	defer os.Remove(name)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(name, fileMode(path)); err != nil {
		return fmt.Errorf("setting mode: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		return fmt.Errorf("replacing document: %w", err)
	}
	return nil
}

func writeSynced(path string, data []byte, mode os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("opening backup: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing backup: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing backup: %w", err)
	}
	return f.Close()
}

func fileMode(path string) os.FileMode {
	if info, err := os.Stat(path); err == nil {
		return info.Mode().Perm()
	}
	return 0o644
}
