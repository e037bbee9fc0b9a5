package chunk

import (
	"testing"

	gonbt "github.com/Tnze/go-mc/nbt"
	"github.com/stretchr/testify/require"

	"github.com/rmmh/mcr2anvil/go/nbt"
)

func convertFake(t *testing.T, cx, cz int32, biomes BiomeSource) (*LegacyChunk, *nbt.Compound) {
	t.Helper()
	old, err := LoadLegacy(FakeLegacyChunk(cx, cz).Compound("Level"))
	require.NoError(t, err)
	level := nbt.NewCompound()
	ConvertToAnvil(old, level, biomes)
	return old, level
}

func sectionsByY(t *testing.T, level *nbt.Compound) map[int]*nbt.Compound {
	t.Helper()
	l := level.List("Sections")
	require.NotNil(t, l)
	require.Equal(t, nbt.TagCompound, l.Elem)
	m := map[int]*nbt.Compound{}
	for _, item := range l.Items {
		s := item.(*nbt.Compound)
		m[int(s.Byte("Y"))] = s
	}
	return m
}

func TestNibbles(t *testing.T) {
	arr := make([]byte, 2)
	setNibble(arr, 0, 0xa)
	setNibble(arr, 1, 0x5)
	setNibble(arr, 3, 0xf)
	require.Equal(t, []byte{0x5a, 0xf0}, arr)
	require.Equal(t, byte(0xa), nibble(arr, 0))
	require.Equal(t, byte(0x5), nibble(arr, 1))
	require.Equal(t, byte(0x0), nibble(arr, 2))
	setNibble(arr, 0, 0x1)
	require.Equal(t, byte(0x51), arr[0])
}

func TestConvertLayout(t *testing.T) {
	old, level := convertFake(t, 5, -2, Fixed(4))

	require.Equal(t, int32(5), level.Int("xPos"))
	require.Equal(t, int32(-2), level.Int("zPos"))
	require.Equal(t, int64(4242), level.Long("LastUpdate"))
	require.Equal(t, int8(1), level.Byte("TerrainPopulated"))

	sections := sectionsByY(t, level)
	require.Len(t, sections, 5, "air-only sections above y=80 are dropped")
	for y := 0; y < 5; y++ {
		require.Contains(t, sections, y)
	}

	log := sections[4]
	require.Equal(t, byte(blockLog), log.ByteArray("Blocks")[anvilIndex(3, 2, 4)])
	require.Equal(t, byte(2), nibble(log.ByteArray("Data"), anvilIndex(3, 2, 4)))
	require.Equal(t, byte(blockTorch), log.ByteArray("Blocks")[anvilIndex(3, 5, 4)])
	require.Equal(t, byte(14), nibble(log.ByteArray("BlockLight"), anvilIndex(3, 5, 4)))
	require.Equal(t, byte(15), nibble(log.ByteArray("SkyLight"), anvilIndex(0, 0, 0)))
	require.Equal(t, byte(blockGrass), sections[3].ByteArray("Blocks")[anvilIndex(7, 15, 9)])
	require.Equal(t, byte(blockBedrock), sections[0].ByteArray("Blocks")[anvilIndex(15, 0, 15)])

	for name, size := range map[string]int{"Blocks": 4096, "Data": 2048, "SkyLight": 2048, "BlockLight": 2048} {
		require.Len(t, log.ByteArray(name), size, name)
	}

	heights := level.IntArray("HeightMap")
	require.Len(t, heights, 256)
	require.Equal(t, int32(70), heights[4<<4|3])
	require.Equal(t, int32(64), heights[0])

	biomes := level.ByteArray("Biomes")
	require.Len(t, biomes, 256)
	for _, b := range biomes {
		require.Equal(t, byte(4), b)
	}

	require.Equal(t, old.Entities, level.List("Entities"))
	require.Equal(t, 1, level.List("Entities").Len())
	require.Equal(t, 0, level.List("TileEntities").Len())
	require.False(t, level.Has("TileTicks"))
}

// Every block, data value and light value ends up at its new index.
func TestConvertPreservesEveryBlock(t *testing.T) {
	old, level := convertFake(t, 0, 0, nil)
	sections := sectionsByY(t, level)
	for x := 0; x < 16; x++ {
		for z := 0; z < 16; z++ {
			for y := 0; y < LegacyHeight; y++ {
				from := legacyIndex(x, y, z)
				s, ok := sections[y/sectionHeight]
				if !ok {
					require.Zero(t, old.Blocks[from], "block in dropped section at %d,%d,%d", x, y, z)
					continue
				}
				to := anvilIndex(x, y%sectionHeight, z)
				require.Equal(t, old.Blocks[from], s.ByteArray("Blocks")[to])
				require.Equal(t, nibble(old.Data, from), nibble(s.ByteArray("Data"), to))
				require.Equal(t, nibble(old.SkyLight, from), nibble(s.ByteArray("SkyLight"), to))
				require.Equal(t, nibble(old.BlockLight, from), nibble(s.ByteArray("BlockLight"), to))
			}
		}
	}
}

func TestBiomeSources(t *testing.T) {
	_, level := convertFake(t, 0, 0, nil)
	for _, b := range level.ByteArray("Biomes") {
		require.Equal(t, byte(255), b)
	}

	var seen [][2]int
	_, level = convertFake(t, -2, 3, BiomeFunc(func(x, z int) uint8 {
		seen = append(seen, [2]int{x, z})
		return uint8(x & 7)
	}))
	require.Len(t, seen, 256)
	require.Contains(t, seen, [2]int{-32, 48})
	require.Contains(t, seen, [2]int{-17, 63})
	biomes := level.ByteArray("Biomes")
	require.Equal(t, uint8(-32&7), biomes[0])
	require.Equal(t, uint8(-31&7), biomes[1])
}

func TestTileTicksCarried(t *testing.T) {
	root := FakeLegacyChunk(0, 0)
	tick := nbt.NewCompound()
	tick.Set("i", nbt.Int(8))
	root.Compound("Level").Set("TileTicks", nbt.NewList(nbt.TagCompound, tick))

	old, err := LoadLegacy(root.Compound("Level"))
	require.NoError(t, err)
	level := nbt.NewCompound()
	ConvertToAnvil(old, level, Undetermined)
	require.Equal(t, 1, level.List("TileTicks").Len())
}

func TestLoadLegacyErrors(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(level *nbt.Compound)
	}{
		{"missing blocks", func(l *nbt.Compound) { l.Delete("Blocks") }},
		{"short data", func(l *nbt.Compound) { l.Set("Data", nbt.ByteArray(make([]byte, 100))) }},
		{"missing skylight", func(l *nbt.Compound) { l.Delete("SkyLight") }},
		{"anvil blocks", func(l *nbt.Compound) { l.Set("Blocks", nbt.ByteArray(make([]byte, 4096))) }},
		{"bad heightmap", func(l *nbt.Compound) { l.Set("HeightMap", nbt.ByteArray(make([]byte, 10))) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			level := FakeLegacyChunk(0, 0).Compound("Level")
			tc.mutate(level)
			_, err := LoadLegacy(level)
			require.Error(t, err)
		})
	}

	_, err := LoadLegacy(nbt.NewCompound())
	require.Error(t, err)
}

func TestLoadLegacyDefaults(t *testing.T) {
	level := FakeLegacyChunk(0, 0).Compound("Level")
	level.Delete("HeightMap")
	level.Delete("Entities")
	level.Delete("TileEntities")
	old, err := LoadLegacy(level)
	require.NoError(t, err)
	require.Len(t, old.HeightMap, 256)
	require.Equal(t, 0, old.Entities.Len())
	require.Equal(t, nbt.TagCompound, old.TileEntities.Elem)
	require.Nil(t, old.TileTicks)
}

// The encoded result decodes with an independent NBT implementation.
func TestAnvilDecodesWithGoMC(t *testing.T) {
	_, level := convertFake(t, 1, 2, Fixed(1))
	root := nbt.NewCompound()
	root.Set("Level", level)
	buf, err := nbt.Marshal("", root)
	require.NoError(t, err)

	var got struct {
		Level struct {
			XPos     int32 `nbt:"xPos"`
			ZPos     int32 `nbt:"zPos"`
			Sections []struct {
				Y      int8   `nbt:"Y"`
				Blocks []byte `nbt:"Blocks"`
				Data   []byte `nbt:"Data"`
			} `nbt:"Sections"`
			Biomes    []byte  `nbt:"Biomes"`
			HeightMap []int32 `nbt:"HeightMap"`
		} `nbt:"Level"`
	}
	require.NoError(t, gonbt.Unmarshal(buf, &got))
	require.Equal(t, int32(1), got.Level.XPos)
	require.Equal(t, int32(2), got.Level.ZPos)
	require.Len(t, got.Level.Sections, 5)
	require.Equal(t, int8(4), got.Level.Sections[4].Y)
	require.Len(t, got.Level.Sections[0].Blocks, 4096)
	require.Len(t, got.Level.Biomes, 256)
	require.Len(t, got.Level.HeightMap, 256)
}
