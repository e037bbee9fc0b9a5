// Package nbt reads and writes named binary tag trees, the format used for both
// chunk payloads and level.dat.
package nbt

import (
	"fmt"

	"github.com/pkg/errors"
)

type Type byte

const (
	TagEnd Type = iota
	TagByte
	TagShort
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagByteArray
	TagString
	TagList
	TagCompound
	TagIntArray
	TagLongArray
)

var typeNames = [...]string{
	"TAG_End", "TAG_Byte", "TAG_Short", "TAG_Int", "TAG_Long", "TAG_Float",
	"TAG_Double", "TAG_Byte_Array", "TAG_String", "TAG_List", "TAG_Compound",
	"TAG_Int_Array", "TAG_Long_Array",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("TAG_Unknown(%d)", byte(t))
}

// Tag is any value that can appear in a tree.
type Tag interface {
	Type() Type
}

type (
	Byte      int8
	Short     int16
	Int       int32
	Long      int64
	Float     float32
	Double    float64
	ByteArray []byte
	String    string
	IntArray  []int32
	LongArray []int64
)

func (Byte) Type() Type      { return TagByte }
func (Short) Type() Type     { return TagShort }
func (Int) Type() Type       { return TagInt }
func (Long) Type() Type      { return TagLong }
func (Float) Type() Type     { return TagFloat }
func (Double) Type() Type    { return TagDouble }
func (ByteArray) Type() Type { return TagByteArray }
func (String) Type() Type    { return TagString }
func (IntArray) Type() Type  { return TagIntArray }
func (LongArray) Type() Type { return TagLongArray }

// List is a homogeneous sequence of tags. Elem is kept even when the list is
// empty so that round-trips are lossless.
type List struct {
	Elem  Type
	Items []Tag
}

func (*List) Type() Type { return TagList }

func NewList(elem Type, items ...Tag) *List {
	return &List{Elem: elem, Items: items}
}

func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Items)
}

// Append adds t to the list. The first item of a list created with TagEnd
// fixes its element type.
func (l *List) Append(t Tag) error {
	if l.Elem == TagEnd && len(l.Items) == 0 {
		l.Elem = t.Type()
	}
	if t.Type() != l.Elem {
		return errors.Errorf("cannot append %v to list of %v", t.Type(), l.Elem)
	}
	l.Items = append(l.Items, t)
	return nil
}

// Compound is a set of named tags that remembers insertion order, so encoding
// the same tree twice produces the same bytes.
type Compound struct {
	keys   []string
	values map[string]Tag
}

func (*Compound) Type() Type { return TagCompound }

func NewCompound() *Compound {
	return &Compound{values: map[string]Tag{}}
}

func (c *Compound) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// Keys returns tag names in insertion order.
func (c *Compound) Keys() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.keys...)
}

func (c *Compound) Get(name string) (Tag, bool) {
	if c == nil {
		return nil, false
	}
	t, ok := c.values[name]
	return t, ok
}

func (c *Compound) Has(name string) bool {
	_, ok := c.Get(name)
	return ok
}

// Set replaces or adds a tag. Replacing keeps the original position.
func (c *Compound) Set(name string, t Tag) {
	if c.values == nil {
		c.values = map[string]Tag{}
	}
	if _, ok := c.values[name]; !ok {
		c.keys = append(c.keys, name)
	}
	c.values[name] = t
}

func (c *Compound) Delete(name string) {
	if _, ok := c.values[name]; !ok {
		return
	}
	delete(c.values, name)
	for i, k := range c.keys {
		if k == name {
			c.keys = append(c.keys[:i], c.keys[i+1:]...)
			break
		}
	}
}

func (c *Compound) lookup(name string) Tag {
	if c == nil {
		return nil
	}
	return c.values[name]
}

// The typed getters below return the zero value when the tag is missing or
// has a different type.

func (c *Compound) Byte(name string) int8 {
	v, _ := c.lookup(name).(Byte)
	return int8(v)
}

func (c *Compound) Short(name string) int16 {
	v, _ := c.lookup(name).(Short)
	return int16(v)
}

func (c *Compound) Int(name string) int32 {
	v, _ := c.lookup(name).(Int)
	return int32(v)
}

func (c *Compound) Long(name string) int64 {
	v, _ := c.lookup(name).(Long)
	return int64(v)
}

func (c *Compound) Str(name string) string {
	v, _ := c.lookup(name).(String)
	return string(v)
}

func (c *Compound) ByteArray(name string) []byte {
	v, _ := c.lookup(name).(ByteArray)
	return v
}

func (c *Compound) IntArray(name string) []int32 {
	v, _ := c.lookup(name).(IntArray)
	return v
}

// Compound returns the named child compound, or a new empty one if there is
// none.
func (c *Compound) Compound(name string) *Compound {
	if v, ok := c.lookup(name).(*Compound); ok {
		return v
	}
	return NewCompound()
}

// List returns the named list, or nil.
func (c *Compound) List(name string) *List {
	v, _ := c.lookup(name).(*List)
	return v
}
