package storage

import (
	"errors"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/tuannm99/novaextract/internal/alias/bx"
)

// +----------------------------+ 0
// | header (32 bytes)          |  magic | version | flags | store id |
// |                            |  table count | directory length
// +----------------------------+ 32
// | table directory            |  per table: name, schema block range,
// |                            |  rows block range, raw rows len, row count
// +----------------------------+
// | schema / rows blocks       |
// +----------------------------+ len-8
// | xxhash64 of bytes [0,len-8)|
// +----------------------------+
const (
	magicU32   uint32 = 0x5254584E // "NXTR"
	versionU16 uint16 = 1

	headerSize  = 4 + 2 + 2 + 16 + 4 + 4
	trailerSize = 8
	dirFixed    = 2 + 8 + 4 + 8 + 4 + 4 + 8 // excluding name bytes

	flagZstd uint16 = 1 << 0
)

var (
	ErrCorrupt            = errors.New("storage: extract file is corrupt")
	ErrUnsupportedVersion = errors.New("storage: unsupported format version")
	ErrTooLarge           = errors.New("storage: block exceeds format limits")
)

// TableBlock is the persisted form of one table. Rows holds the
// uncompressed concatenation of row frames.
type TableBlock struct {
	Name     string
	Schema   []byte
	Rows     []byte
	RowCount uint64
}

// File is the decoded content of an extract file.
type File struct {
	ID          uuid.UUID
	Compression Compression
	Tables      []TableBlock
}

type dirEntry struct {
	name       string
	schemaOff  uint64
	schemaLen  uint32
	rowsOff    uint64
	rowsLen    uint32
	rawRowsLen uint32
	rowCount   uint64
}

// Encode serializes f into the on-disk layout.
func Encode(f *File) ([]byte, error) {
	dirLen := 0
	for _, t := range f.Tables {
		if len(t.Name) > math.MaxUint16 {
			return nil, fmt.Errorf("%w: table name of %d bytes", ErrTooLarge, len(t.Name))
		}
		dirLen += dirFixed + len(t.Name)
	}

	var flags uint16
	if f.Compression == CompressionZstd {
		flags |= flagZstd
	}

	entries := make([]dirEntry, len(f.Tables))
	blocks := make([][]byte, 0, 2*len(f.Tables))
	off := uint64(headerSize + dirLen)

	for i, t := range f.Tables {
		rows, err := compress(f.Compression, t.Rows)
		if err != nil {
			return nil, err
		}
		if uint64(len(t.Schema)) > math.MaxUint32 || uint64(len(rows)) > math.MaxUint32 || uint64(len(t.Rows)) > math.MaxUint32 {
			return nil, fmt.Errorf("%w: table %q", ErrTooLarge, t.Name)
		}

		e := dirEntry{
			name:       t.Name,
			schemaOff:  off,
			schemaLen:  uint32(len(t.Schema)),
			rawRowsLen: uint32(len(t.Rows)),
			rowCount:   t.RowCount,
		}
		off += uint64(len(t.Schema))
		e.rowsOff = off
		e.rowsLen = uint32(len(rows))
		off += uint64(len(rows))

		entries[i] = e
		blocks = append(blocks, t.Schema, rows)
	}

	w := bx.NewWriter(int(off) + trailerSize)
	w.U32(magicU32)
	w.U16(versionU16)
	w.U16(flags)
	w.Raw(f.ID[:])
	w.U32(uint32(len(f.Tables)))
	w.U32(uint32(dirLen))

	for _, e := range entries {
		w.Str16(e.name)
		w.U64(e.schemaOff)
		w.U32(e.schemaLen)
		w.U64(e.rowsOff)
		w.U32(e.rowsLen)
		w.U32(e.rawRowsLen)
		w.U64(e.rowCount)
	}
	for _, b := range blocks {
		w.Raw(b)
	}

	w.U64(xxhash.Sum64(w.Bytes()))
	return w.Bytes(), nil
}

// Decode parses and verifies an extract file. Any checksum, bounds or
// framing problem is reported as ErrCorrupt; nothing is repaired.
func Decode(b []byte) (*File, error) {
	if len(b) < headerSize+trailerSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than header", ErrCorrupt, len(b))
	}
	body := b[:len(b)-trailerSize]
	if got, want := xxhash.Sum64(body), bx.U64(b[len(b)-trailerSize:]); got != want {
		return nil, fmt.Errorf("%w: checksum %016x != %016x", ErrCorrupt, got, want)
	}

	r := bx.NewReader(body)
	if r.U32() != magicU32 {
		return nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if v := r.U16(); v != versionU16 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	flags := r.U16()

	f := &File{}
	copy(f.ID[:], r.Raw(16))
	if flags&flagZstd != 0 {
		f.Compression = CompressionZstd
	}

	count := int(r.U32())
	dirLen := int(r.U32())
	dataStart := uint64(headerSize + dirLen)
	if dataStart > uint64(len(body)) || count*dirFixed > dirLen {
		return nil, fmt.Errorf("%w: directory of %d bytes for %d tables", ErrCorrupt, dirLen, count)
	}

	entries := make([]dirEntry, count)
	for i := range entries {
		entries[i] = dirEntry{
			name:       r.Str16(),
			schemaOff:  r.U64(),
			schemaLen:  r.U32(),
			rowsOff:    r.U64(),
			rowsLen:    r.U32(),
			rawRowsLen: r.U32(),
			rowCount:   r.U64(),
		}
	}
	if r.Err() != nil || uint64(r.Offset()) != dataStart {
		return nil, fmt.Errorf("%w: malformed directory", ErrCorrupt)
	}

	block := func(off uint64, n uint32) ([]byte, bool) {
		end := off + uint64(n)
		if off < dataStart || end < off || end > uint64(len(body)) {
			return nil, false
		}
		return body[off:end], true
	}

	f.Tables = make([]TableBlock, 0, count)
	for _, e := range entries {
		schema, ok := block(e.schemaOff, e.schemaLen)
		if !ok {
			return nil, fmt.Errorf("%w: schema block of %q out of bounds", ErrCorrupt, e.name)
		}
		stored, ok := block(e.rowsOff, e.rowsLen)
		if !ok {
			return nil, fmt.Errorf("%w: rows block of %q out of bounds", ErrCorrupt, e.name)
		}
		rows, err := decompress(f.Compression, stored, int(e.rawRowsLen))
		if err != nil {
			return nil, fmt.Errorf("%w: rows block of %q: %v", ErrCorrupt, e.name, err)
		}
		f.Tables = append(f.Tables, TableBlock{
			Name:     e.name,
			Schema:   append([]byte(nil), schema...),
			Rows:     rows,
			RowCount: e.rowCount,
		})
	}
	return f, nil
}
