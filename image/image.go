// Package image defines the program image type, as well as an encoder
// and decoder for its file format.
//
// An image holds the flat machine code loaded into RAM at address 0, the
// start offsets of its segments and optional debug symbols. On disk it is
// a gzip stream holding a small header followed by the three sections.
package image

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/hex"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/pkg/errors"

	"github.com/hexaflex/dcff/devices"
)

// Magic identifies an image stream once decompressed.
const Magic = "DCFF"

// Version is the current file format version.
const Version = 1

var (
	// ErrFormat is returned when a stream is not an image.
	ErrFormat = errors.New("image: invalid format")

	// ErrCorrupt is returned when an image stream is malformed.
	ErrCorrupt = errors.New("image: corrupt data")
)

// Image defines a complete program image.
type Image struct {
	Segments []uint16 // Segment start addresses; the first is the entry point.
	Code     []byte   // Machine code, loaded at address 0.
	Debug    Debug    // Optional debug symbols.
}

// New creates a new, empty image.
func New() *Image {
	return &Image{}
}

// FromBinary creates an image from raw machine code with a single segment at 0.
func FromBinary(code []byte) *Image {
	return &Image{
		Segments: []uint16{0},
		Code:     code,
	}
}

// Entry returns the address execution starts at.
func (img *Image) Entry() uint16 {
	if len(img.Segments) == 0 {
		return 0
	}
	return img.Segments[0]
}

// Place copies the machine code into m, starting at address 0.
// size is the capacity of m in bytes.
func (img *Image) Place(m devices.Memory, size int) error {
	if size > 0x10000 {
		size = 0x10000
	}
	if len(img.Code) > size {
		return errors.Errorf("image: code of %d bytes exceeds memory of %d bytes", len(img.Code), size)
	}
	for i, b := range img.Code {
		m.Poke(uint16(i), b)
	}
	return nil
}

// Load reads image data from the given stream.
func (img *Image) Load(r io.Reader) (err error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return errors.Wrap(ErrFormat, err.Error())
	}

	defer gz.Close()
	defer recoverOnPanic(&err)

	br := bufio.NewReader(gz)
	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(br, magic); err != nil || string(magic) != Magic {
		return ErrFormat
	}
	if v := readU8(br); v != Version {
		return errors.Errorf("image: unsupported version %d", v)
	}

	img.Segments = make([]uint16, readU16(br))
	for i := range img.Segments {
		img.Segments[i] = readU16(br)
	}

	img.Code = readBlob(br)
	img.Debug.read(br)
	return
}

// Save writes image data to the given stream.
func (img *Image) Save(w io.Writer) (err error) {
	defer recoverOnPanic(&err)

	gz := gzip.NewWriter(w)
	defer func() {
		if cerr := gz.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "image")
		}
	}()

	_, werr := io.WriteString(gz, Magic)
	check(werr)
	writeU8(gz, Version)

	writeU16(gz, uint16(len(img.Segments)))
	for _, s := range img.Segments {
		writeU16(gz, s)
	}

	writeBlob(gz, img.Code)
	img.Debug.write(gz)
	return
}

// Read loads an image from p. Streams that are not images are treated
// as raw machine code. A malformed image is an error.
func Read(p []byte) (*Image, error) {
	img := New()
	err := img.Load(bytes.NewReader(p))
	if err == nil {
		return img, nil
	}
	if errors.Cause(err) == ErrFormat {
		return FromBinary(p), nil
	}
	return nil, err
}

func recoverOnPanic(err *error) {
	x := recover()
	if x == nil {
		return
	}

	switch tx := x.(type) {
	case runtime.Error:
		panic(tx)
	case error:
		*err = errors.Wrapf(tx, "image")
	default:
		*err = fmt.Errorf("image: %v", tx)
	}
}

// String returns a human-readable dump of the image's contents.
func (img *Image) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Segments (%d):\n", len(img.Segments))
	for i, v := range img.Segments {
		fmt.Fprintf(&sb, " %d: %04x\n", i, v)
	}

	if len(img.Debug.Files) > 0 {
		fmt.Fprintf(&sb, "Source files (%d):\n", len(img.Debug.Files))
		for i, v := range img.Debug.Files {
			fmt.Fprintf(&sb, " %d: %s\n", i, v)
		}

		fmt.Fprintf(&sb, "Debug symbols (%d):\n", len(img.Debug.Symbols))
		for _, v := range img.Debug.Symbols {
			fmt.Fprintf(&sb, " %04x: File: %d, Line: %d, Col: %d Flags: %02x\n",
				v.Address, v.File, v.Line, v.Col, v.Flags)
		}
	}

	if len(img.Code) > 0 {
		fmt.Fprintf(&sb, "Code:\n")
		fmt.Fprintf(&sb, "%s\n", hex.Dump(img.Code))
	}

	return sb.String()
}
