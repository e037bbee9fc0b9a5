package chunk

// BiomeSource supplies biome ids for converted chunks, by world block
// coordinate.
type BiomeSource interface {
	BiomeAt(x, z int) uint8
}

// Undetermined marks every column as not yet computed (id 255), which makes
// the game fill biomes in from the world seed the next time the chunk loads.
var Undetermined BiomeSource = fixed(255)

// Fixed assigns the same biome to every column.
func Fixed(id uint8) BiomeSource {
	return fixed(id)
}

type fixed uint8

func (f fixed) BiomeAt(int, int) uint8 { return uint8(f) }

// BiomeFunc adapts a function to a BiomeSource.
type BiomeFunc func(x, z int) uint8

func (f BiomeFunc) BiomeAt(x, z int) uint8 { return f(x, z) }
