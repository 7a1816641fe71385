// Package mtd implements layer L1: identifying MTD-like partitions within a
// raw flash dump and detecting UBI signatures within them.
package mtd

import (
	"fmt"
	"io"
	"os"

	"github.com/wiwaszko/ubift/internal/ubiferrors"
)

// Image is the sole physical input: a read-only byte array addressable by
// absolute offset. It is never mutated after construction.
type Image struct {
	r    io.ReaderAt
	size int64
}

// Open opens path read-only and stats its size. The file is read through an
// io.ReaderAt for the lifetime of the returned Image; the OS page cache
// gives the same effect as an explicit mmap without pulling in a platform
// dependent mmap library (see SPEC_FULL.md §3).
func Open(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ubiferrors.InputError("open image", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ubiferrors.InputError("stat image", err)
	}
	return &Image{r: f, size: fi.Size()}, nil
}

// NewImage wraps an arbitrary io.ReaderAt of known size, primarily for
// tests that build fixture images in memory.
func NewImage(r io.ReaderAt, size int64) *Image {
	return &Image{r: r, size: size}
}

// Size returns the total byte length of the image.
func (img *Image) Size() int64 { return img.size }

// ReadAt implements io.ReaderAt over the whole image.
func (img *Image) ReadAt(p []byte, off int64) (int, error) {
	return img.r.ReadAt(p, off)
}

// Slice reads exactly length bytes at offset, returning ubiferrors.InputError
// if the range falls outside the image.
func (img *Image) Slice(offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > img.size {
		return nil, ubiferrors.InputError(
			fmt.Sprintf("range [%d,%d) outside image of size %d", offset, offset+length, img.size), nil)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(io.NewSectionReader(img.r, offset, length), buf); err != nil {
		return nil, ubiferrors.InputError("short read", err)
	}
	return buf, nil
}

// Close releases the underlying file handle, if any.
func (img *Image) Close() error {
	if c, ok := img.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
