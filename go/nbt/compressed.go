package nbt

import (
	"bufio"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// ReadCompressed decodes a gzip-compressed tree from a file, as level.dat is
// stored.
func ReadCompressed(path string) (string, *Compound, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	zr, err := gzip.NewReader(bufio.NewReader(f))
	if err != nil {
		return "", nil, errors.Wrapf(err, "nbt: gzip header of %s", path)
	}
	defer zr.Close()

	name, root, err := Decode(zr)
	if err != nil {
		return "", nil, errors.Wrapf(err, "nbt: decode %s", path)
	}
	return name, root, nil
}

// WriteCompressed gzips root into path, replacing any existing file.
func WriteCompressed(path, name string, root *Compound) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(f)
	if err := Encode(zw, name, root); err != nil {
		zw.Close()
		f.Close()
		return errors.Wrapf(err, "nbt: encode %s", path)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return errors.Wrapf(err, "nbt: gzip %s", path)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
