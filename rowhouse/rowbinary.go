// Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package rowhouse

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Kind identifies the wire encoding of one column in a RowBinary row.
type Kind uint8

const (
	KindBool Kind = iota
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUInt8
	KindUInt16
	KindUInt32
	KindUInt64
	KindFloat32
	KindFloat64
	// KindString is the default string encoding: a LEB128 length prefix
	// (7 bits per byte, little-endian groups, top bit continues) followed
	// by that many raw bytes.
	KindString
	// KindFixedString carries no length prefix; the byte count is declared
	// by the schema and recorded in Column.Size.
	KindFixedString
	// KindDate is days since the Unix epoch as a UInt16.
	KindDate
	// KindDateTime is seconds since the Unix epoch as a UInt32.
	KindDateTime
)

var kindNames = map[Kind]string{
	KindBool:        "Bool",
	KindInt8:        "Int8",
	KindInt16:       "Int16",
	KindInt32:       "Int32",
	KindInt64:       "Int64",
	KindUInt8:       "UInt8",
	KindUInt16:      "UInt16",
	KindUInt32:      "UInt32",
	KindUInt64:      "UInt64",
	KindFloat32:     "Float32",
	KindFloat64:     "Float64",
	KindString:      "String",
	KindFixedString: "FixedString",
	KindDate:        "Date",
	KindDateTime:    "DateTime",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// width returns the fixed byte width of the kind, or 0 for KindString and
// KindFixedString (whose width lives in Column.Size).
func (k Kind) width() int {
	switch k {
	case KindBool, KindInt8, KindUInt8:
		return 1
	case KindInt16, KindUInt16, KindDate:
		return 2
	case KindInt32, KindUInt32, KindFloat32, KindDateTime:
		return 4
	case KindInt64, KindUInt64, KindFloat64:
		return 8
	}
	return 0
}

// Column describes one column of a row type: its wire name, encoding kind,
// and declared byte width for KindFixedString.
type Column struct {
	Name string
	Kind Kind
	Size int
}

// manifest is the compiled wire layout of a row struct: its columns in wire
// order paired with the struct field index each column decodes into.
type manifest struct {
	typ      reflect.Type
	cols     []Column
	fieldIdx []int
}

var manifestCache sync.Map // reflect.Type -> *manifest

// manifestOf compiles (and caches) the column manifest for a row struct
// type from its `rowhouse` struct tags.
func manifestOf(t reflect.Type) (*manifest, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if cached, ok := manifestCache.Load(t); ok {
		return cached.(*manifest), nil
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("rowhouse: row type must be a struct, got %v", t.Kind())
	}

	m := &manifest{typ: t}
	for i := range t.NumField() {
		f := t.Field(i)
		tag := f.Tag.Get("rowhouse")
		if tag == "" || tag == "-" {
			continue
		}
		col, err := parseColumnTag(f, tag)
		if err != nil {
			return nil, fmt.Errorf("rowhouse: field %s.%s: %w", t.Name(), f.Name, err)
		}
		m.cols = append(m.cols, col)
		m.fieldIdx = append(m.fieldIdx, i)
	}
	if len(m.cols) == 0 {
		return nil, fmt.Errorf("rowhouse: type %s has no rowhouse-tagged fields", t.Name())
	}

	manifestCache.Store(t, m)
	return m, nil
}

// parseColumnTag maps one tagged struct field to a Column. The tag format is
// "name[,option]" with options fixed=N and date.
func parseColumnTag(f reflect.StructField, tag string) (Column, error) {
	parts := strings.Split(tag, ",")
	col := Column{Name: parts[0]}
	fixed := 0
	isDate := false
	for _, part := range parts[1:] {
		switch {
		case strings.HasPrefix(part, "fixed="):
			n, err := strconv.Atoi(strings.TrimPrefix(part, "fixed="))
			if err != nil || n <= 0 {
				return Column{}, fmt.Errorf("invalid fixed width %q", part)
			}
			fixed = n
		case part == "date":
			isDate = true
		default:
			return Column{}, fmt.Errorf("unknown tag option %q", part)
		}
	}
	if col.Name == "" {
		return Column{}, fmt.Errorf("empty column name")
	}

	ft := f.Type
	switch ft.Kind() {
	case reflect.Bool:
		col.Kind = KindBool
	case reflect.Int8:
		col.Kind = KindInt8
	case reflect.Int16:
		col.Kind = KindInt16
	case reflect.Int32:
		col.Kind = KindInt32
	case reflect.Int64, reflect.Int:
		col.Kind = KindInt64
	case reflect.Uint8:
		col.Kind = KindUInt8
	case reflect.Uint16:
		col.Kind = KindUInt16
	case reflect.Uint32:
		col.Kind = KindUInt32
	case reflect.Uint64, reflect.Uint:
		col.Kind = KindUInt64
	case reflect.Float32:
		col.Kind = KindFloat32
	case reflect.Float64:
		col.Kind = KindFloat64
	case reflect.String:
		col.Kind = KindString
	case reflect.Slice:
		if ft.Elem().Kind() != reflect.Uint8 {
			return Column{}, fmt.Errorf("unsupported slice type %v", ft)
		}
		col.Kind = KindString
	case reflect.Struct:
		if ft != reflect.TypeOf(time.Time{}) {
			return Column{}, fmt.Errorf("unsupported struct type %v", ft)
		}
		col.Kind = KindDateTime
		if isDate {
			col.Kind = KindDate
		}
	default:
		return Column{}, fmt.Errorf("unsupported Go type %v", ft)
	}

	if fixed > 0 {
		if col.Kind != KindString {
			return Column{}, fmt.Errorf("fixed= is only valid on string and []byte fields")
		}
		col.Kind = KindFixedString
		col.Size = fixed
	}
	if isDate && col.Kind != KindDate {
		return Column{}, fmt.Errorf("date is only valid on time.Time fields")
	}
	return col, nil
}

// names returns the ordered column names, used for ?fields expansion.
func (m *manifest) names() []string {
	names := make([]string, len(m.cols))
	for i, c := range m.cols {
		names[i] = c.Name
	}
	return names
}

// decode attempts exactly one row decode against the buffered bytes,
// populating dst (an addressable struct value). It is pure with respect to
// the stream: on any failure the caller's rollback restores the buffer
// cursor, so retries are idempotent. Outcomes are nil (success),
// errNeedMore, *tooSmallError, or a terminal malformed-data error.
func (m *manifest) decode(b *bufList, scratch []byte, dst reflect.Value) error {
	for i, col := range m.cols {
		fv := dst.Field(m.fieldIdx[i])

		if w := col.Kind.width(); w > 0 {
			p, err := b.next(w, scratch)
			if err != nil {
				return err
			}
			setFixed(fv, col.Kind, p)
			continue
		}

		// String kinds: length from the LEB128 prefix or the schema.
		n := col.Size
		if col.Kind == KindString {
			u, err := readUvarint(b)
			if err != nil {
				return err
			}
			if u > math.MaxInt32 {
				return fmt.Errorf("rowhouse: column %s: implausible string length %d", col.Name, u)
			}
			n = int(u)
		}
		p, err := b.next(n, scratch)
		if err != nil {
			return err
		}
		// The view aliases buffer memory; the row must own its bytes.
		if fv.Kind() == reflect.String {
			fv.SetString(string(p))
		} else {
			fv.SetBytes(append([]byte(nil), p...))
		}
	}
	return nil
}

// setFixed stores a fixed-width little-endian value into the field.
func setFixed(fv reflect.Value, k Kind, p []byte) {
	switch k {
	case KindBool:
		fv.SetBool(p[0] != 0)
	case KindInt8:
		fv.SetInt(int64(int8(p[0])))
	case KindInt16:
		fv.SetInt(int64(int16(binary.LittleEndian.Uint16(p))))
	case KindInt32:
		fv.SetInt(int64(int32(binary.LittleEndian.Uint32(p))))
	case KindInt64:
		fv.SetInt(int64(binary.LittleEndian.Uint64(p)))
	case KindUInt8:
		fv.SetUint(uint64(p[0]))
	case KindUInt16:
		fv.SetUint(uint64(binary.LittleEndian.Uint16(p)))
	case KindUInt32:
		fv.SetUint(uint64(binary.LittleEndian.Uint32(p)))
	case KindUInt64:
		fv.SetUint(binary.LittleEndian.Uint64(p))
	case KindFloat32:
		fv.SetFloat(float64(math.Float32frombits(binary.LittleEndian.Uint32(p))))
	case KindFloat64:
		fv.SetFloat(math.Float64frombits(binary.LittleEndian.Uint64(p)))
	case KindDate:
		days := binary.LittleEndian.Uint16(p)
		fv.Set(reflect.ValueOf(time.Unix(int64(days)*86400, 0).UTC()))
	case KindDateTime:
		secs := binary.LittleEndian.Uint32(p)
		fv.Set(reflect.ValueOf(time.Unix(int64(secs), 0).UTC()))
	}
}

// readUvarint reads a LEB128-encoded unsigned integer byte by byte from the
// buffer. Each byte contributes 7 bits, least-significant group first; the
// top bit signals continuation.
func readUvarint(b *bufList) (uint64, error) {
	var x uint64
	var shift uint
	for {
		c, err := b.readByte()
		if err != nil {
			return 0, err
		}
		if shift >= 64 || (shift == 63 && c > 1) {
			return 0, fmt.Errorf("rowhouse: malformed length prefix: varint overflow")
		}
		x |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return x, nil
		}
		shift += 7
	}
}

// Columns returns the wire column manifest of a row type, in decode order.
func Columns[T any]() ([]Column, error) {
	m, err := manifestOf(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	cols := make([]Column, len(m.cols))
	copy(cols, m.cols)
	return cols, nil
}
