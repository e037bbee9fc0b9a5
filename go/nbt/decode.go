package nbt

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

// maxDepth bounds compound/list nesting so corrupt input can't blow the stack.
const maxDepth = 512

var ErrNotCompound = errors.New("nbt: root tag is not a compound")

// Decode reads one named root compound from r. It reads r to EOF; chunk
// streams hold exactly one tree.
func Decode(r io.Reader) (string, *Compound, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return "", nil, errors.Wrap(err, "nbt: read")
	}
	return Unmarshal(buf)
}

// Unmarshal decodes a named root compound from buf.
func Unmarshal(buf []byte) (string, *Compound, error) {
	d := &decoder{buf: buf}
	ty, err := d.byte()
	if err != nil {
		return "", nil, err
	}
	if Type(ty) != TagCompound {
		return "", nil, errors.Wrapf(ErrNotCompound, "got %v", Type(ty))
	}
	name, err := d.string()
	if err != nil {
		return "", nil, err
	}
	root, err := d.compound(0)
	if err != nil {
		return "", nil, err
	}
	return name, root, nil
}

// decoder walks the buffer with a single offset, the same way the streaming
// walker this grew out of did, but checks every length against what is left.
type decoder struct {
	buf []byte
	o   int
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || n > len(d.buf)-d.o {
		return nil, errors.Errorf("nbt: truncated input at offset %d (want %d bytes, have %d)", d.o, n, len(d.buf)-d.o)
	}
	b := d.buf[d.o : d.o+n]
	d.o += n
	return b, nil
}

func (d *decoder) byte() (byte, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *decoder) u16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (d *decoder) u32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (d *decoder) u64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (d *decoder) length() (int, error) {
	n, err := d.u32()
	if err != nil {
		return 0, err
	}
	if int32(n) < 0 {
		return 0, errors.Errorf("nbt: negative length %d at offset %d", int32(n), d.o-4)
	}
	return int(n), nil
}

func (d *decoder) string() (string, error) {
	n, err := d.u16()
	if err != nil {
		return "", err
	}
	b, err := d.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *decoder) compound(depth int) (*Compound, error) {
	if depth > maxDepth {
		return nil, errors.Errorf("nbt: nesting deeper than %d", maxDepth)
	}
	c := NewCompound()
	for {
		ty, err := d.byte()
		if err != nil {
			return nil, err
		}
		if Type(ty) == TagEnd {
			return c, nil
		}
		name, err := d.string()
		if err != nil {
			return nil, err
		}
		t, err := d.payload(Type(ty), depth+1)
		if err != nil {
			return nil, errors.Wrapf(err, "in %q", name)
		}
		c.Set(name, t)
	}
}

func (d *decoder) payload(ty Type, depth int) (Tag, error) {
	switch ty {
	case TagByte:
		b, err := d.byte()
		return Byte(int8(b)), err
	case TagShort:
		v, err := d.u16()
		return Short(int16(v)), err
	case TagInt:
		v, err := d.u32()
		return Int(int32(v)), err
	case TagLong:
		v, err := d.u64()
		return Long(int64(v)), err
	case TagFloat:
		v, err := d.u32()
		return Float(math.Float32frombits(v)), err
	case TagDouble:
		v, err := d.u64()
		return Double(math.Float64frombits(v)), err
	case TagByteArray:
		n, err := d.length()
		if err != nil {
			return nil, err
		}
		b, err := d.take(n)
		if err != nil {
			return nil, err
		}
		// copy: the tree must not alias the input buffer
		return ByteArray(append([]byte(nil), b...)), nil
	case TagString:
		s, err := d.string()
		return String(s), err
	case TagIntArray:
		n, err := d.length()
		if err != nil {
			return nil, err
		}
		b, err := d.take(n * 4)
		if err != nil {
			return nil, err
		}
		v := make(IntArray, n)
		for i := range v {
			v[i] = int32(binary.BigEndian.Uint32(b[i*4:]))
		}
		return v, nil
	case TagLongArray:
		n, err := d.length()
		if err != nil {
			return nil, err
		}
		b, err := d.take(n * 8)
		if err != nil {
			return nil, err
		}
		v := make(LongArray, n)
		for i := range v {
			v[i] = int64(binary.BigEndian.Uint64(b[i*8:]))
		}
		return v, nil
	case TagList:
		return d.list(depth)
	case TagCompound:
		return d.compound(depth)
	}
	return nil, errors.Errorf("nbt: unhandled tag type %d at offset %d", byte(ty), d.o)
}

func (d *decoder) list(depth int) (*List, error) {
	if depth > maxDepth {
		return nil, errors.Errorf("nbt: nesting deeper than %d", maxDepth)
	}
	elem, err := d.byte()
	if err != nil {
		return nil, err
	}
	n, err := d.length()
	if err != nil {
		return nil, err
	}
	l := &List{Elem: Type(elem)}
	if n == 0 {
		return l, nil
	}
	if l.Elem == TagEnd {
		return nil, errors.Errorf("nbt: non-empty list of TAG_End (len %d)", n)
	}
	// every element takes at least one byte; don't preallocate past the input
	if n > len(d.buf)-d.o {
		return nil, errors.Errorf("nbt: list length %d exceeds remaining input", n)
	}
	l.Items = make([]Tag, 0, n)
	for i := 0; i < n; i++ {
		t, err := d.payload(l.Elem, depth+1)
		if err != nil {
			return nil, errors.Wrapf(err, "in list item %d", i)
		}
		l.Items = append(l.Items, t)
	}
	return l, nil
}
