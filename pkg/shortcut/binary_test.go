package shortcut

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"map_shortcuts/pkg/cell"
)

func sampleTable() *Table {
	t := NewTable(3)
	t.Append(Final{From: 1, To: 2, Cost: 1.5, Via: 2, FinalCell: cell.Cell(0x0c00000000000001), Inside: true})
	t.Append(Final{From: 1, To: 3, Cost: 3.25, Via: 2, FinalCell: cell.Cell(0x0400000000000000)})
	t.Append(Final{From: -7, To: 1 << 40, Cost: 0, Via: 1 << 40, FinalCell: cell.None})
	return t
}

func TestBinaryRoundTrip(t *testing.T) {
	original := sampleTable()
	path := filepath.Join(t.TempDir(), "shortcuts.bin")

	require.NoError(t, WriteBinary(path, original))

	loaded, err := ReadBinary(path)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

func TestBinaryEmptyTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, NewTable(0)))

	loaded, err := Decode(&buf)
	require.NoError(t, err)
	assert.Zero(t, loaded.Len())
}

func TestBinaryCorruptedCRC(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleTable()))

	data := buf.Bytes()
	data[30] ^= 0xFF

	_, err := Decode(bytes.NewReader(data))
	assert.Error(t, err)
}

func TestBinaryBadMagic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleTable()))

	data := buf.Bytes()
	copy(data, "NOTSHORT")

	_, err := Decode(bytes.NewReader(data))
	assert.ErrorContains(t, err, "invalid magic")
}

func TestBinaryTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleTable()))

	_, err := Decode(bytes.NewReader(buf.Bytes()[:buf.Len()-10]))
	assert.Error(t, err)
}

func TestTableShortcuts(t *testing.T) {
	tbl := sampleTable()
	rows := tbl.Shortcuts()
	require.Len(t, rows, 3)
	assert.Equal(t, Shortcut{From: 1, To: 3, Cost: 3.25, Via: 2}, rows[1])

	back := FromShortcuts(rows)
	assert.Equal(t, tbl.From, back.From)
	assert.Equal(t, tbl.Cost, back.Cost)
	assert.Equal(t, tbl.Row(2).To, back.Row(2).To)
}
