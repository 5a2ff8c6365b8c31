package coltype

import (
	"bytes"
	"io"
	"testing"
)

// fakeStreams is a tiny in-memory StreamWriter/StreamReader pair used to
// round-trip a single column without going through the storage engine.
type fakeStreams struct {
	bufs map[string]*bytes.Buffer
}

func newFakeStreams() *fakeStreams {
	return &fakeStreams{bufs: make(map[string]*bytes.Buffer)}
}

func (f *fakeStreams) writer(path string) io.Writer {
	b := &bytes.Buffer{}
	f.bufs[path] = b
	return b
}

func (f *fakeStreams) reader(path string) io.Reader {
	b, ok := f.bufs[path]
	if !ok {
		return nil
	}
	return bytes.NewReader(b.Bytes())
}

func TestInt64RoundTrip(t *testing.T) {
	col := &Int64Column{Values: []int64{1, -2, 3, 0, 1 << 40, -(1 << 40)}}
	fs := newFakeStreams()

	if err := (Int64Type{}).SerializeBinaryBulkWithMultipleStreams("a", col, fs.writer); err != nil {
		t.Fatalf("serialize: %v", err)
	}

	got, err := Int64Type{}.DeserializeBinaryBulkWithMultipleStreams("a", fs.reader, col.RowCount(), DefaultDeserializeOptions)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}

	gotCol := got.(*Int64Column)
	if len(gotCol.Values) != len(col.Values) {
		t.Fatalf("row count mismatch: got %d want %d", len(gotCol.Values), len(col.Values))
	}
	for i, v := range col.Values {
		if gotCol.Values[i] != v {
			t.Errorf("row %d: got %d want %d", i, gotCol.Values[i], v)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	col := NewStringColumn([]string{"hello", "", "world", "x"})
	fs := newFakeStreams()

	if err := (StringType{}).SerializeBinaryBulkWithMultipleStreams("s", col, fs.writer); err != nil {
		t.Fatalf("serialize: %v", err)
	}

	got, err := StringType{}.DeserializeBinaryBulkWithMultipleStreams("s", fs.reader, col.RowCount(), DefaultDeserializeOptions)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}

	gotCol := got.(*StringColumn)
	for i := range col.Offsets {
		if gotCol.At(i) != col.At(i) {
			t.Errorf("row %d: got %q want %q", i, gotCol.At(i), col.At(i))
		}
	}
}

func TestArrayRoundTrip(t *testing.T) {
	col := NewInt64ArrayColumn([][]int64{{1, 2}, {}, {3}, {4, 5, 6}})
	typ := ArrayType{Element: Int64Type{}}
	fs := newFakeStreams()

	if err := typ.SerializeBinaryBulkWithMultipleStreams("arr", col, fs.writer); err != nil {
		t.Fatalf("serialize: %v", err)
	}

	got, err := typ.DeserializeBinaryBulkWithMultipleStreams("arr", fs.reader, col.RowCount(), DefaultDeserializeOptions)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}

	gotCol := got.(*ArrayColumn)
	if len(gotCol.Counts) != len(col.Counts) {
		t.Fatalf("row count mismatch")
	}
	for i := range col.Counts {
		if gotCol.Counts[i] != col.Counts[i] {
			t.Errorf("row %d count: got %d want %d", i, gotCol.Counts[i], col.Counts[i])
		}
	}
	gotVals := gotCol.Values.(*Int64Column).Values
	wantVals := col.Values.(*Int64Column).Values
	if len(gotVals) != len(wantVals) {
		t.Fatalf("value count mismatch: got %d want %d", len(gotVals), len(wantVals))
	}
	for i := range wantVals {
		if gotVals[i] != wantVals[i] {
			t.Errorf("value %d: got %d want %d", i, gotVals[i], wantVals[i])
		}
	}
}

func TestNullableRoundTrip(t *testing.T) {
	col := &NullableColumn{
		Null:  []bool{false, true, false},
		Inner: &Int64Column{Values: []int64{10, 0, 30}},
	}
	typ := NullableType{Inner: Int64Type{}}
	fs := newFakeStreams()

	if err := typ.SerializeBinaryBulkWithMultipleStreams("n", col, fs.writer); err != nil {
		t.Fatalf("serialize: %v", err)
	}

	got, err := typ.DeserializeBinaryBulkWithMultipleStreams("n", fs.reader, col.RowCount(), DefaultDeserializeOptions)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}

	gotCol := got.(*NullableColumn)
	for i, want := range col.Null {
		if gotCol.Null[i] != want {
			t.Errorf("row %d null: got %v want %v", i, gotCol.Null[i], want)
		}
	}
}

func TestSharedArrayGroupEnumeratesSamePath(t *testing.T) {
	a := ArrayType{Element: Int64Type{}, GroupName: "nested"}
	b := ArrayType{Element: StringType{}, GroupName: "nested"}

	pa, _ := a.SizesStreamPath("nested.a")
	pb, _ := b.SizesStreamPath("nested.b")
	if pa != pb {
		t.Fatalf("expected shared size path, got %q and %q", pa, pb)
	}

	streamsA := a.EnumerateStreams("nested.a")
	streamsB := b.EnumerateStreams("nested.b")
	if streamsA[0] != streamsB[0] {
		t.Fatalf("expected shared first substream, got %q and %q", streamsA[0], streamsB[0])
	}
	if streamsA[1] == streamsB[1] {
		t.Fatalf("expected distinct value substreams, got %q for both", streamsA[1])
	}
}
