package rowhouse

import (
	"encoding/binary"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"
)

type event struct {
	ID   uint64  `rowhouse:"id"`
	Name string  `rowhouse:"name"`
	Code string  `rowhouse:"code,fixed=4"`
	Temp float64 `rowhouse:"temp"`
}

func appendUvarint(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

func encodeEvent(e event) []byte {
	var out []byte
	out = binary.LittleEndian.AppendUint64(out, e.ID)
	out = appendUvarint(out, uint64(len(e.Name)))
	out = append(out, e.Name...)
	out = append(out, e.Code[:4]...)
	out = binary.LittleEndian.AppendUint64(out, math.Float64bits(e.Temp))
	return out
}

func decodeOne[T any](t *testing.T, b *bufList, scratch []byte) T {
	t.Helper()
	m, err := manifestOf(reflect.TypeFor[T]())
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	var row T
	if err := m.decode(b, scratch, reflect.ValueOf(&row).Elem()); err != nil {
		t.Fatalf("decode: %v", err)
	}
	b.commit()
	return row
}

func TestManifestColumns(t *testing.T) {
	t.Parallel()

	cols, err := Columns[event]()
	if err != nil {
		t.Fatalf("Columns: %v", err)
	}
	want := []Column{
		{Name: "id", Kind: KindUInt64},
		{Name: "name", Kind: KindString},
		{Name: "code", Kind: KindFixedString, Size: 4},
		{Name: "temp", Kind: KindFloat64},
	}
	if !reflect.DeepEqual(cols, want) {
		t.Fatalf("columns = %+v, want %+v", cols, want)
	}
}

func TestManifestRejectsBadTags(t *testing.T) {
	t.Parallel()

	type noTags struct {
		A int
	}
	if _, err := manifestOf(reflect.TypeFor[noTags]()); err == nil {
		t.Fatal("expected error for type without rowhouse tags")
	}

	type badFixed struct {
		A int64 `rowhouse:"a,fixed=8"`
	}
	if _, err := manifestOf(reflect.TypeFor[badFixed]()); err == nil {
		t.Fatal("expected error for fixed= on a non-string field")
	}

	type badOption struct {
		A string `rowhouse:"a,frobnicate"`
	}
	if _, err := manifestOf(reflect.TypeFor[badOption]()); err == nil {
		t.Fatal("expected error for unknown tag option")
	}
}

func TestDecodeSingleChunk(t *testing.T) {
	t.Parallel()

	want := event{ID: 42, Name: "query farm", Code: "ABCD", Temp: 0}
	var b bufList
	b.push(encodeEvent(want))

	got := decodeOne[event](t, &b, make([]byte, 64))
	if got != want {
		t.Fatalf("decoded row = %+v, want %+v", got, want)
	}
	if b.bufsCnt() != 0 {
		t.Fatalf("bufsCnt after full row commit = %d, want 0", b.bufsCnt())
	}
}

func TestDecodeFixedWidthConsumesExactlyDeclaredBytes(t *testing.T) {
	t.Parallel()

	type fixedOnly struct {
		Code string `rowhouse:"code,fixed=4"`
		Tail uint8  `rowhouse:"tail"`
	}

	// Content that would parse very differently under a length prefix:
	// 0x02 as a prefix would claim a 2-byte string.
	payload := []byte{0x02, 0x00, 0xFF, 0x41, 0x07}
	var b bufList
	b.push(payload)

	got := decodeOne[fixedOnly](t, &b, make([]byte, 16))
	if got.Code != string([]byte{0x02, 0x00, 0xFF, 0x41}) {
		t.Fatalf("fixed string = %q", got.Code)
	}
	if got.Tail != 0x07 {
		t.Fatalf("tail = %#x, want 0x07", got.Tail)
	}
}

func TestDecodeAllKinds(t *testing.T) {
	t.Parallel()

	type allKinds struct {
		B    bool      `rowhouse:"b"`
		I8   int8      `rowhouse:"i8"`
		I16  int16     `rowhouse:"i16"`
		I32  int32     `rowhouse:"i32"`
		I64  int64     `rowhouse:"i64"`
		U16  uint16    `rowhouse:"u16"`
		U32  uint32    `rowhouse:"u32"`
		F32  float32   `rowhouse:"f32"`
		Raw  []byte    `rowhouse:"raw"`
		Day  time.Time `rowhouse:"day,date"`
		At   time.Time `rowhouse:"at"`
	}

	var payload []byte
	payload = append(payload, 1)          // b
	payload = append(payload, 0x80)       // i8 = -128
	payload = binary.LittleEndian.AppendUint16(payload, 0xFFFE) // i16 = -2
	payload = binary.LittleEndian.AppendUint32(payload, 7)      // i32
	payload = binary.LittleEndian.AppendUint64(payload, 1<<40)  // i64
	payload = binary.LittleEndian.AppendUint16(payload, 65535)  // u16
	payload = binary.LittleEndian.AppendUint32(payload, 12345)  // u32
	payload = binary.LittleEndian.AppendUint32(payload, 0x3F800000) // f32 = 1.0
	payload = appendUvarint(payload, 3)
	payload = append(payload, 0xDE, 0xAD, 0xBF) // raw
	payload = binary.LittleEndian.AppendUint16(payload, 19000)  // day
	payload = binary.LittleEndian.AppendUint32(payload, 1700000000) // at

	var b bufList
	b.push(payload)
	got := decodeOne[allKinds](t, &b, make([]byte, 64))

	if !got.B || got.I8 != -128 || got.I16 != -2 || got.I32 != 7 || got.I64 != 1<<40 {
		t.Fatalf("signed decode mismatch: %+v", got)
	}
	if got.U16 != 65535 || got.U32 != 12345 || got.F32 != 1.0 {
		t.Fatalf("unsigned/float decode mismatch: %+v", got)
	}
	if string(got.Raw) != string([]byte{0xDE, 0xAD, 0xBF}) {
		t.Fatalf("raw bytes mismatch: %x", got.Raw)
	}
	if got.Day != time.Unix(19000*86400, 0).UTC() {
		t.Fatalf("date mismatch: %v", got.Day)
	}
	if got.At != time.Unix(1700000000, 0).UTC() {
		t.Fatalf("datetime mismatch: %v", got.At)
	}
}

func TestDecodeIdenticalAcrossAllSplitPoints(t *testing.T) {
	t.Parallel()

	rows := []event{
		{ID: 1, Name: "", Code: "AAAA", Temp: 0},
		{ID: 2, Name: "a slightly longer name to cross chunk boundaries", Code: "BBBB", Temp: 0},
		{ID: 3, Name: "x", Code: "CCCC", Temp: 0},
	}
	var wire []byte
	for _, r := range rows {
		wire = append(wire, encodeEvent(r)...)
	}

	m, err := manifestOf(reflect.TypeFor[event]())
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}

	// Split the wire bytes at every position, including one-byte chunks,
	// and check the decoded sequence never changes.
	for split := 1; split <= len(wire); split++ {
		var b bufList
		for off := 0; off < len(wire); off += split {
			end := min(off+split, len(wire))
			b.push(append([]byte(nil), wire[off:end]...))
		}

		scratch := make([]byte, 64)
		for i, want := range rows {
			var got event
			if err := m.decode(&b, scratch, reflect.ValueOf(&got).Elem()); err != nil {
				t.Fatalf("split %d row %d: decode: %v", split, i, err)
			}
			b.commit()
			if got != want {
				t.Fatalf("split %d row %d: got %+v, want %+v", split, i, got, want)
			}
		}
		if b.bufsCnt() != 0 {
			t.Fatalf("split %d: leftover chunks after final row", split)
		}
	}
}

func TestDecodeNeedMoreIsIdempotent(t *testing.T) {
	t.Parallel()

	full := encodeEvent(event{ID: 9, Name: "retry me", Code: "XYZW", Temp: 0})

	m, err := manifestOf(reflect.TypeFor[event]())
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}

	var b bufList
	b.push(full[:5]) // mid-field
	scratch := make([]byte, 64)

	// Retrying with unchanged input keeps failing the same way without
	// corrupting the buffer.
	for range 3 {
		var row event
		if err := m.decode(&b, scratch, reflect.ValueOf(&row).Elem()); !errors.Is(err, errNeedMore) {
			t.Fatalf("expected errNeedMore, got %v", err)
		}
		b.rollback()
	}

	b.push(full[5:])
	var got event
	if err := m.decode(&b, scratch, reflect.ValueOf(&got).Elem()); err != nil {
		t.Fatalf("decode after completion: %v", err)
	}
	if got.ID != 9 || got.Name != "retry me" || got.Code != "XYZW" {
		t.Fatalf("decoded row = %+v", got)
	}
}

func TestReadUvarint(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		bytes []byte
		want  uint64
	}{
		{"zero", []byte{0x00}, 0},
		{"one byte", []byte{0x7F}, 127},
		{"two bytes", []byte{0x80, 0x01}, 128},
		{"multi group", []byte{0xE5, 0x8E, 0x26}, 624485},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var b bufList
			b.push(tc.bytes)
			got, err := readUvarint(&b)
			if err != nil {
				t.Fatalf("readUvarint: %v", err)
			}
			if got != tc.want {
				t.Fatalf("readUvarint = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestReadUvarintOverflow(t *testing.T) {
	t.Parallel()

	var b bufList
	b.push([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01})
	if _, err := readUvarint(&b); err == nil || errors.Is(err, errNeedMore) {
		t.Fatalf("expected a terminal overflow error, got %v", err)
	}
}
