package ubifs

import (
	"bytes"
	"compress/zlib"
	"testing"
)

func TestDecompress_None(t *testing.T) {
	data := []byte("hello")
	got, err := Decompress(CompressNone, data, uint32(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestDecompress_Zlib(t *testing.T) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write([]byte("hello ubifs")); err != nil {
		t.Fatal(err)
	}
	w.Close()

	got, err := Decompress(CompressZlib, buf.Bytes(), uint32(len("hello ubifs")))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello ubifs" {
		t.Fatalf("got %q", got)
	}
}

func TestDecompress_UnknownType(t *testing.T) {
	if _, err := Decompress(200, nil, 0); err == nil {
		t.Fatal("expected an error for an unrecognized compression type")
	}
}
