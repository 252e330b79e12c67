package shortcut

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"unsafe"

	"map_shortcuts/pkg/cell"
	"map_shortcuts/pkg/graph"
)

const (
	magicBytes = "SHORTCUT"
	version    = uint32(1)
	maxRows    = 2_000_000_000
)

// fileHeader is the binary header.
type fileHeader struct {
	Magic   [8]byte
	Version uint32
	NumRows uint64
}

// Encode writes t in the binary table format: header, one column after
// another, then a CRC32 of everything before it.
func Encode(w io.Writer, t *Table) error {
	cw := &crc32Writer{w: w, hash: crc32.NewIEEE()}

	hdr := fileHeader{Version: version, NumRows: uint64(t.Len())}
	copy(hdr.Magic[:], magicBytes)
	if err := binary.Write(cw, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	if err := writeSlice(cw, t.From); err != nil {
		return fmt.Errorf("write From: %w", err)
	}
	if err := writeSlice(cw, t.To); err != nil {
		return fmt.Errorf("write To: %w", err)
	}
	if err := writeSlice(cw, t.Via); err != nil {
		return fmt.Errorf("write Via: %w", err)
	}
	if err := writeSlice(cw, t.Cost); err != nil {
		return fmt.Errorf("write Cost: %w", err)
	}
	if err := writeSlice(cw, t.FinalCell); err != nil {
		return fmt.Errorf("write FinalCell: %w", err)
	}
	inside := make([]byte, t.Len())
	for i, in := range t.Inside {
		if in {
			inside[i] = 1
		}
	}
	if _, err := cw.Write(inside); err != nil {
		return fmt.Errorf("write Inside: %w", err)
	}

	if err := binary.Write(w, binary.LittleEndian, cw.hash.Sum32()); err != nil {
		return fmt.Errorf("write CRC32: %w", err)
	}
	return nil
}

// Decode reads a table written by Encode and validates its checksum and rows.
func Decode(r io.Reader) (*Table, error) {
	cr := &crc32Reader{r: r, hash: crc32.NewIEEE()}

	var hdr fileHeader
	if err := binary.Read(cr, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(hdr.Magic[:]) != magicBytes {
		return nil, fmt.Errorf("invalid magic bytes: %q", hdr.Magic)
	}
	if hdr.Version != version {
		return nil, fmt.Errorf("unsupported version: %d", hdr.Version)
	}
	if hdr.NumRows > maxRows {
		return nil, fmt.Errorf("NumRows %d exceeds limit %d", hdr.NumRows, maxRows)
	}
	n := int(hdr.NumRows)

	t := &Table{}
	var err error
	if t.From, err = readSlice[graph.EdgeID](cr, n); err != nil {
		return nil, fmt.Errorf("read From: %w", err)
	}
	if t.To, err = readSlice[graph.EdgeID](cr, n); err != nil {
		return nil, fmt.Errorf("read To: %w", err)
	}
	if t.Via, err = readSlice[graph.EdgeID](cr, n); err != nil {
		return nil, fmt.Errorf("read Via: %w", err)
	}
	if t.Cost, err = readSlice[float64](cr, n); err != nil {
		return nil, fmt.Errorf("read Cost: %w", err)
	}
	if t.FinalCell, err = readSlice[cell.Cell](cr, n); err != nil {
		return nil, fmt.Errorf("read FinalCell: %w", err)
	}
	inside := make([]byte, n)
	if _, err := io.ReadFull(cr, inside); err != nil {
		return nil, fmt.Errorf("read Inside: %w", err)
	}
	t.Inside = make([]bool, n)
	for i, b := range inside {
		t.Inside[i] = b != 0
	}

	expectedCRC := cr.hash.Sum32()
	var storedCRC uint32
	if err := binary.Read(r, binary.LittleEndian, &storedCRC); err != nil {
		return nil, fmt.Errorf("read CRC32: %w", err)
	}
	if storedCRC != expectedCRC {
		return nil, fmt.Errorf("CRC32 mismatch: stored=%08x computed=%08x", storedCRC, expectedCRC)
	}

	for i := 0; i < n; i++ {
		if err := (Shortcut{From: t.From[i], To: t.To[i], Cost: t.Cost[i]}).Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return t, nil
}

// WriteBinary writes t to path atomically.
func WriteBinary(path string, t *Table) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath) // clean up on error
	}()

	if err := Encode(f, t); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	// Atomic rename.
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// ReadBinary reads a table file written by WriteBinary.
func ReadBinary(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Zero-copy column I/O using unsafe.Slice. Columns are fixed-size numeric
// types stored in host (little-endian) order.

type fixedSize interface {
	~int64 | ~uint64 | ~float64
}

func writeSlice[T fixedSize](w io.Writer, s []T) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(s[0])))
	_, err := w.Write(b)
	return err
}

func readSlice[T fixedSize](r io.Reader, n int) ([]T, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]T, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*int(unsafe.Sizeof(s[0])))
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

// CRC32 wrapping writers/readers.

type crc32Hash interface {
	Write([]byte) (int, error)
	Sum32() uint32
}

type crc32Writer struct {
	w    io.Writer
	hash crc32Hash
}

func (cw *crc32Writer) Write(p []byte) (int, error) {
	cw.hash.Write(p)
	return cw.w.Write(p)
}

type crc32Reader struct {
	r    io.Reader
	hash crc32Hash
}

func (cr *crc32Reader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.hash.Write(p[:n])
	}
	return n, err
}
