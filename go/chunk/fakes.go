package chunk

import "github.com/rmmh/mcr2anvil/go/nbt"

// Legacy block ids used by FakeLegacyChunk.
const (
	blockStone   = 1
	blockGrass   = 2
	blockDirt    = 3
	blockBedrock = 7
	blockLog     = 17
	blockTorch   = 50
)

// FakeLegacyChunk builds a McRegion chunk root ({"Level": {...}}) for chunk
// position (cx, cz): bedrock, stone up to y=59, dirt, grass at y=63, a small
// oak log with a torch in column (3, 4), and one pig.
func FakeLegacyChunk(cx, cz int32) *nbt.Compound {
	blocks := make([]byte, legacyVolume)
	data := make([]byte, legacyVolume/2)
	sky := make([]byte, legacyVolume/2)
	light := make([]byte, legacyVolume/2)
	heights := make([]byte, 256)

	for x := 0; x < 16; x++ {
		for z := 0; z < 16; z++ {
			for y := 0; y < 64; y++ {
				b := byte(blockStone)
				switch {
				case y == 0:
					b = blockBedrock
				case y >= 60 && y < 63:
					b = blockDirt
				case y == 63:
					b = blockGrass
				}
				blocks[legacyIndex(x, y, z)] = b
			}
			for y := 64; y < LegacyHeight; y++ {
				setNibble(sky, legacyIndex(x, y, z), 15)
			}
			heights[z<<4|x] = 64
		}
	}
	for y := 64; y < 69; y++ {
		i := legacyIndex(3, y, 4)
		blocks[i] = blockLog
		setNibble(data, i, 2) // birch
	}
	torch := legacyIndex(3, 69, 4)
	blocks[torch] = blockTorch
	setNibble(data, torch, 5)
	setNibble(light, torch, 14)
	heights[4<<4|3] = 70

	pig := nbt.NewCompound()
	pig.Set("id", nbt.String("Pig"))
	pig.Set("Pos", nbt.NewList(nbt.TagDouble,
		nbt.Double(float64(cx)*16+8), nbt.Double(64), nbt.Double(float64(cz)*16+8)))

	level := nbt.NewCompound()
	level.Set("xPos", nbt.Int(cx))
	level.Set("zPos", nbt.Int(cz))
	level.Set("LastUpdate", nbt.Long(4242))
	level.Set("TerrainPopulated", nbt.Byte(1))
	level.Set("Blocks", nbt.ByteArray(blocks))
	level.Set("Data", nbt.ByteArray(data))
	level.Set("SkyLight", nbt.ByteArray(sky))
	level.Set("BlockLight", nbt.ByteArray(light))
	level.Set("HeightMap", nbt.ByteArray(heights))
	level.Set("Entities", nbt.NewList(nbt.TagCompound, pig))
	level.Set("TileEntities", nbt.NewList(nbt.TagCompound))

	root := nbt.NewCompound()
	root.Set("Level", level)
	return root
}
