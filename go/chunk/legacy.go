// Package chunk rewrites McRegion chunks into the sectioned Anvil layout.
package chunk

import (
	"github.com/pkg/errors"

	"github.com/rmmh/mcr2anvil/go/nbt"
)

const (
	// LegacyHeight is the world height of a McRegion chunk.
	LegacyHeight = 128

	legacyVolume = 16 * 16 * LegacyHeight
)

// LegacyChunk is the in-memory form of a McRegion chunk's Level compound.
// Block arrays are indexed x<<11 | z<<7 | y.
type LegacyChunk struct {
	X, Z             int32
	LastUpdate       int64
	TerrainPopulated bool

	Blocks     []byte // one byte per block
	Data       []byte // nibbles
	SkyLight   []byte // nibbles
	BlockLight []byte // nibbles
	HeightMap  []byte // 16x16, z<<4 | x

	Entities     *nbt.List
	TileEntities *nbt.List
	TileTicks    *nbt.List // nil when the chunk has none
}

func legacyIndex(x, y, z int) int {
	return x<<11 | z<<7 | y
}

// nibble reads the 4-bit value at index i; even indexes are the low half.
func nibble(arr []byte, i int) byte {
	return (arr[i>>1] >> ((i & 1) << 2)) & 0xf
}

func setNibble(arr []byte, i int, v byte) {
	s := (i & 1) << 2
	arr[i>>1] = arr[i>>1]&^(0xf<<s) | (v&0xf)<<s
}

func checkLen(level *nbt.Compound, name string, want int) ([]byte, error) {
	b := level.ByteArray(name)
	if len(b) != want {
		return nil, errors.Errorf("chunk: %s has %d bytes, want %d", name, len(b), want)
	}
	return b, nil
}

// LoadLegacy reads a McRegion Level compound. Arrays of the wrong size are an
// error rather than something to guess about.
func LoadLegacy(level *nbt.Compound) (*LegacyChunk, error) {
	if level.Len() == 0 {
		return nil, errors.New("chunk: empty Level compound")
	}
	c := &LegacyChunk{
		X:                level.Int("xPos"),
		Z:                level.Int("zPos"),
		LastUpdate:       level.Long("LastUpdate"),
		TerrainPopulated: level.Byte("TerrainPopulated") != 0,
		Entities:         listOrEmpty(level.List("Entities")),
		TileEntities:     listOrEmpty(level.List("TileEntities")),
		TileTicks:        level.List("TileTicks"),
	}

	var err error
	if c.Blocks, err = checkLen(level, "Blocks", legacyVolume); err != nil {
		return nil, err
	}
	if c.Data, err = checkLen(level, "Data", legacyVolume/2); err != nil {
		return nil, err
	}
	if c.SkyLight, err = checkLen(level, "SkyLight", legacyVolume/2); err != nil {
		return nil, err
	}
	if c.BlockLight, err = checkLen(level, "BlockLight", legacyVolume/2); err != nil {
		return nil, err
	}

	c.HeightMap = level.ByteArray("HeightMap")
	switch len(c.HeightMap) {
	case 256:
	case 0:
		c.HeightMap = make([]byte, 256)
	default:
		return nil, errors.Errorf("chunk: HeightMap has %d bytes, want 256", len(c.HeightMap))
	}
	return c, nil
}

func listOrEmpty(l *nbt.List) *nbt.List {
	if l == nil {
		return nbt.NewList(nbt.TagCompound)
	}
	return l
}
