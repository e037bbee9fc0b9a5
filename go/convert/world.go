package convert

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/rmmh/mcr2anvil/go/nbt"
	"github.com/rmmh/mcr2anvil/go/region"
)

// Storage format versions stored in level.dat as Data.version.
const (
	VersionMcRegion = 19132
	VersionAnvil    = 19133
)

const (
	levelFile    = "level.dat"
	levelOldFile = "level.dat_old"
	levelBackup  = "level.dat_mcr"
	levelNew     = "level.dat_new"
)

// Dimension is one region folder of a world.
type Dimension struct {
	Name    string // overworld, nether or end
	Dir     string // the dimension folder; its regions live in Dir/region
	Regions []string
}

var dimensionDirs = []struct{ name, sub string }{
	{"overworld", ""},
	{"nether", "DIM-1"},
	{"end", "DIM1"},
}

// dimensions lists the world's dimensions in conversion order. Nether and end
// folders that do not exist are left out.
func dimensions(worldDir string) ([]Dimension, error) {
	var dims []Dimension
	for _, d := range dimensionDirs {
		dir := filepath.Join(worldDir, d.sub)
		if d.sub != "" {
			if st, err := os.Stat(dir); err != nil || !st.IsDir() {
				continue
			}
		}
		regions, err := listRegions(filepath.Join(dir, "region"), region.LegacyExt)
		if err != nil {
			return nil, err
		}
		dims = append(dims, Dimension{Name: d.name, Dir: dir, Regions: regions})
	}
	return dims, nil
}

// listRegions returns the sorted paths of files in dir with extension ext. A
// missing folder has no regions.
func listRegions(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", dir)
	}
	files := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		return filepath.Join(dir, e.Name()), !e.IsDir() && strings.HasSuffix(e.Name(), ext)
	})
	sort.Strings(files)
	return files, nil
}

func countRegions(dims []Dimension) int {
	return lo.SumBy(dims, func(d Dimension) int { return len(d.Regions) })
}

// readMetadata loads level.dat, falling back to level.dat_old when the main
// file is missing or unreadable.
func readMetadata(worldDir string) (string, *nbt.Compound, error) {
	name, root, err := nbt.ReadCompressed(filepath.Join(worldDir, levelFile))
	if err == nil {
		return name, root, nil
	}
	name, root, oldErr := nbt.ReadCompressed(filepath.Join(worldDir, levelOldFile))
	if oldErr == nil {
		return name, root, nil
	}
	return "", nil, errors.Wrap(err, "read world metadata")
}

func storageVersion(root *nbt.Compound) int32 {
	return root.Compound("Data").Int("version")
}

func setStorageVersion(root *nbt.Compound, version int32) {
	data := root.Compound("Data")
	data.Set("version", nbt.Int(version))
	root.Set("Data", data)
}
