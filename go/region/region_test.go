package region

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	mcregion "github.com/Tnze/go-mc/save/region"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

func TestParseName(t *testing.T) {
	for _, tc := range []struct {
		name string
		want Coord
		ok   bool
	}{
		{"r.0.0.mcr", Coord{0, 0}, true},
		{"r.-1.12.mcr", Coord{-1, 12}, true},
		{"/some/dir/r.3.-4.mca", Coord{3, -4}, true},
		{"region.mcr", Coord{}, false},
		{"r.a.b.mcr", Coord{}, false},
		{"xr.1.1.mcr", Coord{}, false},
	} {
		got, ok := ParseName(tc.name)
		require.Equal(t, tc.ok, ok, tc.name)
		require.Equal(t, tc.want, got, tc.name)
	}
}

func TestAnvilPath(t *testing.T) {
	require.Equal(t, "/w/region/r.-1.2.mca", AnvilPath("/w/region/r.-1.2.mcr"))
	require.Equal(t, "r.0.0.mca", AnvilPath("r.0.0.mcr"))
	require.Equal(t, "r.3.-7.mca", AnvilPath(LegacyName(3, -7)))

	c, ok := ParseName(LegacyName(-12, 40))
	require.True(t, ok)
	require.Equal(t, Coord{-12, 40}, c)
}

func readAll(t *testing.T, c *Container, x, z int) []byte {
	t.Helper()
	r, err := c.ChunkReader(x, z)
	require.NoError(t, err)
	defer r.Close()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return b
}

func writeChunk(t *testing.T, c *Container, x, z int, payload []byte) {
	t.Helper()
	w, err := c.ChunkWriter(x, z)
	require.NoError(t, err)
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestWriteAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.0.0.mca")

	c, err := OpenOrCreate(path)
	require.NoError(t, err)
	require.Equal(t, 0, c.ChunkCount())
	big := bytes.Repeat([]byte("chunkdata"), 2000)
	writeChunk(t, c, 0, 0, []byte("hello"))
	writeChunk(t, c, 31, 5, big)
	require.True(t, c.HasChunk(0, 0))
	require.True(t, c.HasChunk(31, 5))
	require.False(t, c.HasChunk(5, 31))
	require.False(t, c.HasChunk(-1, 0))
	require.False(t, c.HasChunk(0, 32))
	require.NoError(t, c.Close())

	st, err := os.Stat(path)
	require.NoError(t, err)
	require.Zero(t, st.Size()%sectorSize, "file padded to whole sectors")

	c, err = OpenLegacy(path)
	require.NoError(t, err)
	defer c.Close()
	require.Equal(t, 2, c.ChunkCount())
	require.Equal(t, []byte("hello"), readAll(t, c, 0, 0))
	require.Equal(t, big, readAll(t, c, 31, 5))

	_, err = c.ChunkReader(1, 1)
	require.ErrorIs(t, err, ErrNoChunk)
}

// plantHeaderOnly points slot (x, z) at an all-zero sector, the state left
// behind when a header entry reached the disk but its payload did not.
func plantHeaderOnly(t *testing.T, path string, x, z int, sector uint32) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	defer f.Close()
	var entry [4]byte
	binary.BigEndian.PutUint32(entry[:], sector<<8|1)
	_, err = f.WriteAt(entry[:], int64(4*(x+z*Width)))
	require.NoError(t, err)
	require.NoError(t, f.Truncate(int64(sector+1)*sectorSize))
}

func TestVerify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.0.0.mca")
	c, err := OpenOrCreate(path)
	require.NoError(t, err)
	writeChunk(t, c, 1, 1, []byte("intact"))
	require.NoError(t, c.Close())
	plantHeaderOnly(t, path, 0, 0, 3)

	c, err = OpenOrCreate(path)
	require.NoError(t, err)
	for _, tc := range []struct {
		name    string
		x, z    int
		wantErr error
	}{
		{"intact", 1, 1, nil},
		{"header only", 0, 0, mcregion.ErrNoData},
		{"empty slot", 2, 2, ErrNoChunk},
	} {
		err := c.Verify(tc.x, tc.z)
		if tc.wantErr == nil {
			require.NoError(t, err, tc.name)
		} else {
			require.ErrorIs(t, err, tc.wantErr, tc.name)
		}
	}
	require.True(t, c.HasChunk(0, 0))

	writeChunk(t, c, 0, 0, []byte("rewritten"))
	require.NoError(t, c.Verify(0, 0))
	require.NoError(t, c.Close())

	c, err = OpenLegacy(path)
	require.NoError(t, err)
	defer c.Close()
	require.Equal(t, []byte("rewritten"), readAll(t, c, 0, 0))
	require.Equal(t, []byte("intact"), readAll(t, c, 1, 1))
}

func TestLegacyIsReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.0.0.mcr")
	c, err := OpenOrCreate(path)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	c, err = OpenLegacy(path)
	require.NoError(t, err)
	defer c.Close()
	_, err = c.ChunkWriter(0, 0)
	require.ErrorIs(t, err, ErrReadOnly)
}

func TestEmptyLegacyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.0.0.mcr")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	c, err := OpenLegacy(path)
	require.NoError(t, err)
	require.Equal(t, 0, c.ChunkCount())
	require.NoError(t, c.Close())
}

func TestZeroLengthDestinationIsRecreated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.0.0.mca")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	c, err := OpenOrCreate(path)
	require.NoError(t, err)
	writeChunk(t, c, 2, 3, []byte("x"))
	require.NoError(t, c.Close())

	c, err = OpenLegacy(path)
	require.NoError(t, err)
	defer c.Close()
	require.Equal(t, []byte("x"), readAll(t, c, 2, 3))
}

func TestOpenFailures(t *testing.T) {
	dir := t.TempDir()
	_, err := OpenLegacy(filepath.Join(dir, "missing.mcr"))
	require.Error(t, err)

	// a directory where the destination file should be
	blocked := filepath.Join(dir, "r.0.0.mca")
	require.NoError(t, os.Mkdir(blocked, 0o755))
	_, err = OpenOrCreate(blocked)
	require.Error(t, err)

	short := filepath.Join(dir, "short.mcr")
	require.NoError(t, os.WriteFile(short, []byte{1, 2, 3}, 0o644))
	_, err = OpenLegacy(short)
	require.Error(t, err)
}

func TestReadOtherCompressions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.0.0.mcr")
	r, err := mcregion.Create(path)
	require.NoError(t, err)

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err = zw.Write([]byte("gzipped"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, r.WriteSector(1, 0, append([]byte{CompressionGzip}, gz.Bytes()...)))
	require.NoError(t, r.WriteSector(2, 0, append([]byte{CompressionNone}, "plain"...)))
	require.NoError(t, r.WriteSector(3, 0, []byte{9, 1, 2, 3}))
	require.NoError(t, r.Close())

	c, err := OpenLegacy(path)
	require.NoError(t, err)
	defer c.Close()
	require.Equal(t, []byte("gzipped"), readAll(t, c, 1, 0))
	require.Equal(t, []byte("plain"), readAll(t, c, 2, 0))
	_, err = c.ChunkReader(3, 0)
	require.Error(t, err)
}
