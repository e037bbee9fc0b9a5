package nbt

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

// Encode writes root as a named root compound.
func Encode(w io.Writer, name string, root *Compound) error {
	bw := bufio.NewWriter(w)
	e := &encoder{w: bw}
	e.u8(byte(TagCompound))
	e.string(name)
	e.compound(root)
	if e.err != nil {
		return e.err
	}
	return errors.Wrap(bw.Flush(), "nbt: flush")
}

// Marshal is Encode into a byte slice.
func Marshal(name string, root *Compound) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, name, root); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type encoder struct {
	w       *bufio.Writer
	scratch [8]byte
	err     error
}

func (e *encoder) write(b []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(b)
}

func (e *encoder) u8(v byte) {
	e.scratch[0] = v
	e.write(e.scratch[:1])
}

func (e *encoder) u16(v uint16) {
	binary.BigEndian.PutUint16(e.scratch[:], v)
	e.write(e.scratch[:2])
}

func (e *encoder) u32(v uint32) {
	binary.BigEndian.PutUint32(e.scratch[:], v)
	e.write(e.scratch[:4])
}

func (e *encoder) u64(v uint64) {
	binary.BigEndian.PutUint64(e.scratch[:], v)
	e.write(e.scratch[:8])
}

func (e *encoder) string(s string) {
	if len(s) > math.MaxUint16 {
		e.fail(errors.Errorf("nbt: string of %d bytes is too long", len(s)))
		return
	}
	e.u16(uint16(len(s)))
	e.write([]byte(s))
}

func (e *encoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *encoder) compound(c *Compound) {
	for _, name := range c.Keys() {
		t, _ := c.Get(name)
		if t == nil {
			e.fail(errors.Errorf("nbt: nil tag %q", name))
			return
		}
		e.u8(byte(t.Type()))
		e.string(name)
		e.payload(t)
	}
	e.u8(byte(TagEnd))
}

func (e *encoder) payload(t Tag) {
	switch v := t.(type) {
	case Byte:
		e.u8(byte(v))
	case Short:
		e.u16(uint16(v))
	case Int:
		e.u32(uint32(v))
	case Long:
		e.u64(uint64(v))
	case Float:
		e.u32(math.Float32bits(float32(v)))
	case Double:
		e.u64(math.Float64bits(float64(v)))
	case ByteArray:
		e.u32(uint32(len(v)))
		e.write(v)
	case String:
		e.string(string(v))
	case IntArray:
		e.u32(uint32(len(v)))
		for _, x := range v {
			e.u32(uint32(x))
		}
	case LongArray:
		e.u32(uint32(len(v)))
		for _, x := range v {
			e.u64(uint64(x))
		}
	case *List:
		if v == nil {
			v = &List{}
		}
		e.u8(byte(v.Elem))
		e.u32(uint32(len(v.Items)))
		for i, item := range v.Items {
			if item == nil || item.Type() != v.Elem {
				e.fail(errors.Errorf("nbt: list item %d does not match element type %v", i, v.Elem))
				return
			}
			e.payload(item)
		}
	case *Compound:
		e.compound(v)
	default:
		e.fail(errors.Errorf("nbt: cannot encode %T", t))
	}
}
