package chunk

import "github.com/rmmh/mcr2anvil/go/nbt"

const sectionHeight = 16

func anvilIndex(x, y, z int) int {
	return y<<8 | z<<4 | x
}

// ConvertToAnvil writes the Anvil form of old into level, which should be a
// fresh compound that the caller nests under "Level". Sections that are
// entirely air are left out. A nil biome source means Undetermined.
func ConvertToAnvil(old *LegacyChunk, level *nbt.Compound, biomes BiomeSource) {
	if biomes == nil {
		biomes = Undetermined
	}

	level.Set("xPos", nbt.Int(old.X))
	level.Set("zPos", nbt.Int(old.Z))
	level.Set("LastUpdate", nbt.Long(old.LastUpdate))

	heights := make(nbt.IntArray, len(old.HeightMap))
	for i, h := range old.HeightMap {
		heights[i] = int32(h)
	}
	level.Set("HeightMap", heights)

	populated := nbt.Byte(0)
	if old.TerrainPopulated {
		populated = 1
	}
	level.Set("TerrainPopulated", populated)

	sections := nbt.NewList(nbt.TagCompound)
	for yBase := 0; yBase < LegacyHeight/sectionHeight; yBase++ {
		if s := convertSection(old, yBase); s != nil {
			sections.Items = append(sections.Items, s)
		}
	}
	level.Set("Sections", sections)

	ids := make(nbt.ByteArray, 16*16)
	for x := 0; x < 16; x++ {
		for z := 0; z < 16; z++ {
			ids[z<<4|x] = biomes.BiomeAt(int(old.X)<<4|x, int(old.Z)<<4|z)
		}
	}
	level.Set("Biomes", ids)

	level.Set("Entities", old.Entities)
	level.Set("TileEntities", old.TileEntities)
	if old.TileTicks != nil {
		level.Set("TileTicks", old.TileTicks)
	}
}

func sectionEmpty(old *LegacyChunk, yBase int) bool {
	for x := 0; x < 16; x++ {
		for z := 0; z < 16; z++ {
			start := legacyIndex(x, yBase*sectionHeight, z)
			for _, b := range old.Blocks[start : start+sectionHeight] {
				if b != 0 {
					return false
				}
			}
		}
	}
	return true
}

func convertSection(old *LegacyChunk, yBase int) *nbt.Compound {
	if sectionEmpty(old, yBase) {
		return nil
	}

	const volume = 16 * 16 * sectionHeight
	blocks := make([]byte, volume)
	data := make([]byte, volume/2)
	sky := make([]byte, volume/2)
	light := make([]byte, volume/2)

	for x := 0; x < 16; x++ {
		for z := 0; z < 16; z++ {
			for y := 0; y < sectionHeight; y++ {
				from := legacyIndex(x, yBase*sectionHeight+y, z)
				to := anvilIndex(x, y, z)
				blocks[to] = old.Blocks[from]
				setNibble(data, to, nibble(old.Data, from))
				setNibble(sky, to, nibble(old.SkyLight, from))
				setNibble(light, to, nibble(old.BlockLight, from))
			}
		}
	}

	s := nbt.NewCompound()
	s.Set("Y", nbt.Byte(yBase))
	s.Set("Blocks", nbt.ByteArray(blocks))
	s.Set("Data", nbt.ByteArray(data))
	s.Set("SkyLight", nbt.ByteArray(sky))
	s.Set("BlockLight", nbt.ByteArray(light))
	return s
}
