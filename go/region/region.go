// Package region opens McRegion (.mcr) and Anvil (.mca) region files: a 32x32
// grid of independently stored, compressed chunk payloads.
package region

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	mcregion "github.com/Tnze/go-mc/save/region"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
)

const (
	LegacyExt = ".mcr"
	AnvilExt  = ".mca"

	// Width is the number of chunk slots along each axis of a region.
	Width = 32

	sectorSize = 4096
)

// Chunk payload compression types, stored in the byte after the length.
const (
	CompressionGzip = 1
	CompressionZlib = 2
	CompressionNone = 3
)

var (
	ErrReadOnly = errors.New("region: container is read-only")
	ErrNoChunk  = errors.New("region: no chunk in slot")
)

var regionMatchRE = regexp.MustCompile(`^r\.(-?\d+)\.(-?\d+)\.`)

// Coord is a region's position in region units (512 blocks).
type Coord struct {
	X, Z int
}

// ParseName extracts the region coordinate from a file name like
// "r.-1.2.mcr".
func ParseName(name string) (Coord, bool) {
	m := regionMatchRE.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return Coord{}, false
	}
	x, errX := strconv.Atoi(m[1])
	z, errZ := strconv.Atoi(m[2])
	if errX != nil || errZ != nil {
		return Coord{}, false
	}
	return Coord{x, z}, true
}

// AnvilPath is where the Anvil copy of a McRegion file lives: same directory,
// same name, new extension.
func AnvilPath(legacy string) string {
	return strings.TrimSuffix(legacy, LegacyExt) + AnvilExt
}

// LegacyName is the McRegion file name for region (x, z).
func LegacyName(x, z int) string {
	return fmt.Sprintf("r.%d.%d%s", x, z, LegacyExt)
}

// Container is one open region file. It is not safe for concurrent use; each
// conversion task owns its containers exclusively.
type Container struct {
	path     string
	f        *os.File
	r        *mcregion.Region // nil for an empty legacy file
	readOnly bool
	dirty    bool
}

// OpenLegacy opens a region file read-only. A zero-length file is treated as
// a region with no chunks.
func OpenLegacy(path string) (*Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "region: open")
	}
	c := &Container{path: path, f: f, readOnly: true}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "region: stat %s", path)
	}
	if st.Size() == 0 {
		return c, nil
	}
	c.r, err = mcregion.Load(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "region: read header of %s", path)
	}
	return c, nil
}

// OpenOrCreate opens a region file for reading and writing, creating it with
// an empty header if it does not exist (or was left zero-length).
func OpenOrCreate(path string) (*Container, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "region: open")
	}
	c := &Container{path: path, f: f}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "region: stat %s", path)
	}
	if st.Size() == 0 {
		c.r, err = mcregion.CreateWriter(f)
		c.dirty = true
	} else {
		c.r, err = mcregion.Load(f)
	}
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "region: init %s", path)
	}
	return c, nil
}

func (c *Container) Path() string { return c.path }

func inBounds(x, z int) bool {
	return x >= 0 && x < Width && z >= 0 && z < Width
}

// HasChunk reports whether slot (x, z) holds data.
func (c *Container) HasChunk(x, z int) bool {
	if c.r == nil || !inBounds(x, z) {
		return false
	}
	return c.r.ExistSector(x, z)
}

// ChunkCount is the number of occupied slots.
func (c *Container) ChunkCount() int {
	n := 0
	for x := 0; x < Width; x++ {
		for z := 0; z < Width; z++ {
			if c.HasChunk(x, z) {
				n++
			}
		}
	}
	return n
}

// ChunkReader returns the decompressed payload of slot (x, z).
func (c *Container) ChunkReader(x, z int) (io.ReadCloser, error) {
	if !c.HasChunk(x, z) {
		return nil, ErrNoChunk
	}
	data, err := c.r.ReadSector(x, z)
	if err != nil {
		return nil, errors.Wrapf(err, "region: read chunk %d,%d", x, z)
	}
	if len(data) < 1 {
		return nil, errors.Errorf("region: chunk %d,%d has an empty payload", x, z)
	}
	body := bytes.NewReader(data[1:])
	switch data[0] {
	case CompressionZlib:
		zr, err := zlib.NewReader(body)
		return zr, errors.Wrapf(err, "region: zlib chunk %d,%d", x, z)
	case CompressionGzip:
		zr, err := gzip.NewReader(body)
		return zr, errors.Wrapf(err, "region: gzip chunk %d,%d", x, z)
	case CompressionNone:
		return io.NopCloser(body), nil
	}
	return nil, errors.Errorf("region: unhandled compression type %d in chunk %d,%d", data[0], x, z)
}

// Verify reads and decompresses the whole payload of slot (x, z). A slot whose
// header entry was written without its data fails here.
func (c *Container) Verify(x, z int) error {
	r, err := c.ChunkReader(x, z)
	if err != nil {
		return err
	}
	defer r.Close()
	_, err = io.Copy(io.Discard, r)
	return errors.Wrapf(err, "region: decompress chunk %d,%d", x, z)
}

// ChunkWriter returns a writer for slot (x, z). Nothing reaches the file until
// Close, which compresses the buffered payload and stores it.
func (c *Container) ChunkWriter(x, z int) (io.WriteCloser, error) {
	if c.readOnly {
		return nil, ErrReadOnly
	}
	if !inBounds(x, z) {
		return nil, errors.Errorf("region: slot %d,%d out of range", x, z)
	}
	w := &chunkWriter{c: c, x: x, z: z}
	w.buf.WriteByte(CompressionZlib)
	w.zw = zlib.NewWriter(&w.buf)
	return w, nil
}

type chunkWriter struct {
	c    *Container
	x, z int
	buf  bytes.Buffer
	zw   *zlib.Writer
	done bool
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, os.ErrClosed
	}
	return w.zw.Write(p)
}

func (w *chunkWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	if err := w.zw.Close(); err != nil {
		return errors.Wrap(err, "region: compress chunk")
	}
	if err := w.c.r.WriteSector(w.x, w.z, w.buf.Bytes()); err != nil {
		return errors.Wrapf(err, "region: write chunk %d,%d to %s", w.x, w.z, w.c.path)
	}
	w.c.dirty = true
	return nil
}

// Close releases the file. Writable containers are padded to a whole number
// of sectors first.
func (c *Container) Close() error {
	var err error
	if !c.readOnly && c.dirty {
		err = errors.Wrapf(c.r.PadToFullSector(), "region: pad %s", c.path)
	}
	if cerr := c.f.Close(); err == nil && cerr != nil {
		err = errors.Wrapf(cerr, "region: close %s", c.path)
	}
	return err
}
