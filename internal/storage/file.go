package storage

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/tuannm99/novaextract/internal/alias/bx"
)

const fileMode0644 = 0o644

// AppendFrame appends one length-prefixed row record to a rows block.
func AppendFrame(rows, rec []byte) ([]byte, error) {
	if uint64(len(rec)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: record of %d bytes", ErrTooLarge, len(rec))
	}
	rows = bx.LE.AppendUint32(rows, uint32(len(rec)))
	return append(rows, rec...), nil
}

// SplitFrames cuts a rows block into its records. The returned slices
// alias rows. The frame count must match the directory row count.
func SplitFrames(rows []byte, count uint64) ([][]byte, error) {
	if count > uint64(len(rows)/4) {
		return nil, fmt.Errorf("%w: %d rows cannot fit in %d bytes", ErrCorrupt, count, len(rows))
	}
	out := make([][]byte, 0, count)
	r := bx.NewReader(rows)
	for r.Remaining() > 0 {
		n := int(r.U32())
		rec := r.Raw(n)
		if r.Err() != nil {
			return nil, fmt.Errorf("%w: truncated row frame %d", ErrCorrupt, len(out))
		}
		out = append(out, rec)
	}
	if uint64(len(out)) != count {
		return nil, fmt.Errorf("%w: %d row frames, directory says %d", ErrCorrupt, len(out), count)
	}
	return out, nil
}

// ReadFile loads and verifies the extract at path. A missing file is
// returned as an error satisfying errors.Is(err, fs.ErrNotExist).
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// WriteFile replaces the extract at path atomically: the new content goes
// to a temp file in the same directory, is fsynced, then renamed over path.
// After a crash either the old or the new file is visible, never a mix.
func WriteFile(path string, f *File) (int, error) {
	data, err := Encode(f)
	if err != nil {
		return 0, err
	}

	dir := filepath.Dir(path)
	pf, err := renameio.NewPendingFile(path,
		renameio.WithTempDir(dir),
		renameio.WithStaticPermissions(fileMode0644),
	)
	if err != nil {
		return 0, err
	}
	// no-op once CloseAtomicallyReplace succeeded
	defer func() { _ = pf.Cleanup() }()

	if _, err := pf.Write(data); err != nil {
		return 0, err
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return 0, err
	}
	if err := syncDir(dir); err != nil {
		return 0, err
	}
	return len(data), nil
}

// syncDir makes the rename itself durable.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()
	return d.Sync()
}
