package storage

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
)

const (
	vaultFileMode = 0600
	vaultDirMode  = 0700
	tempPattern   = ".credvault-*.tmp"
)

// LocalStorage handles local encrypted vault file operations
type LocalStorage struct {
	VaultPath string

	// beforeReplace runs after the temp file is durable and before the rename.
	beforeReplace func(tmpPath string) error
}

// NewLocalStorage creates a new local storage instance
func NewLocalStorage(vaultPath string) *LocalStorage {
	return &LocalStorage{
		VaultPath: vaultPath,
	}
}

// EnsureDir ensures the vault directory exists
func (ls *LocalStorage) EnsureDir() error {
	if err := os.MkdirAll(filepath.Dir(ls.VaultPath), vaultDirMode); err != nil {
		return ioErr("create vault directory", err)
	}
	return nil
}

// Exists checks if the vault file exists
func (ls *LocalStorage) Exists() bool {
	_, err := os.Stat(ls.VaultPath)
	return err == nil
}

// ReadRaw returns the vault file bytes without parsing them.
func (ls *LocalStorage) ReadRaw() ([]byte, error) {
	data, err := os.ReadFile(ls.VaultPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(ErrVaultNotFound, "%s", ls.VaultPath)
		}
		return nil, ioErr("read vault file", err)
	}
	return data, nil
}

// Load reads and parses the envelope from disk
func (ls *LocalStorage) Load() (*Envelope, error) {
	data, err := ls.ReadRaw()
	if err != nil {
		return nil, err
	}
	ev, err := UnmarshalEnvelope(data)
	if err != nil {
		log.Debug().Str("path", ls.VaultPath).Err(err).Msg("vault file rejected")
		return nil, err
	}
	log.Debug().Str("path", ls.VaultPath).Uint64("revision", ev.Revision).Msg("envelope loaded")
	return ev, nil
}

// Persist serializes the envelope and atomically replaces the vault file with
// it. Until the final rename the previous file is left untouched.
func (ls *LocalStorage) Persist(ev *Envelope) error {
	data, err := MarshalEnvelope(ev)
	if err != nil {
		return err
	}
	if err := ls.EnsureDir(); err != nil {
		return err
	}
	if err := writeFileAtomic(ls.VaultPath, data, ls.beforeReplace); err != nil {
		log.Error().Str("path", ls.VaultPath).Err(err).Msg("persist failed, previous vault left in place")
		return err
	}
	log.Debug().Str("path", ls.VaultPath).Uint64("revision", ev.Revision).Msg("envelope persisted")
	return nil
}

// Restore validates raw as an envelope and atomically installs it as the vault.
func (ls *LocalStorage) Restore(raw []byte) error {
	ev, err := UnmarshalEnvelope(raw)
	if err != nil {
		return errors.Wrap(err, "backup is not a usable vault")
	}
	if err := ls.EnsureDir(); err != nil {
		return err
	}
	if err := writeFileAtomic(ls.VaultPath, raw, ls.beforeReplace); err != nil {
		return err
	}
	log.Info().Str("path", ls.VaultPath).Str("vault_id", ev.VaultID).Uint64("revision", ev.Revision).Msg("vault restored")
	return nil
}

// Backup atomically copies the current vault file to dest.
func (ls *LocalStorage) Backup(dest string) error {
	raw, err := ls.ReadRaw()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), vaultDirMode); err != nil {
		return ioErr("create backup directory", err)
	}
	return writeFileAtomic(dest, raw, nil)
}

// dirSyncer flushes a directory entry after a rename.
var dirSyncer = syncDir

// writeFileAtomic writes data to a temp file beside path, flushes it, and
// renames it over path. On any error before the rename the temp file is
// removed and path is untouched. Once the rename succeeds the write is
// committed: a failed directory sync is logged and not returned.
func writeFileAtomic(path string, data []byte, beforeReplace func(string) error) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return ioErr("create temp file", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err = tmp.Chmod(vaultFileMode); err != nil && runtime.GOOS != "windows" {
		return ioErr("chmod temp file", err)
	}
	if _, err = tmp.Write(data); err != nil {
		return ioErr("write temp file", err)
	}
	if err = tmp.Sync(); err != nil {
		return ioErr("sync temp file", err)
	}
	if err = tmp.Close(); err != nil {
		return ioErr("close temp file", err)
	}

	if beforeReplace != nil {
		if err = beforeReplace(tmpPath); err != nil {
			return err
		}
	}

	if err = os.Rename(tmpPath, path); err != nil {
		return ioErr("replace vault file", err)
	}
	if serr := dirSyncer(dir); serr != nil {
		log.Warn().Str("path", path).Err(serr).Msg("file replaced but directory sync failed")
	}
	return nil
}

func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
