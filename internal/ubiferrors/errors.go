// Package ubiferrors implements the error taxonomy of the core: InputError,
// GeometryError, IntegrityError, DecodingError, and UnrecoverableError. Every
// type wraps an underlying cause and carries enough location context (an
// LEB/PEB index and byte offset where applicable) for a command to print a
// diagnostic naming the offending structure.
package ubiferrors

import "fmt"

// Location pins an error to a byte range in the input image, optionally
// further qualified by a PEB or LEB index (-1 when not applicable).
// NoLocation, not the zero value, means "no specific location."
type Location struct {
	Offset int64
	PEB    int // -1 if not applicable
	LEB    int // -1 if not applicable
}

func (l Location) String() string {
	switch {
	case l.PEB >= 0 && l.LEB >= 0:
		return fmt.Sprintf("peb=%d leb=%d offset=0x%x", l.PEB, l.LEB, l.Offset)
	case l.PEB >= 0:
		return fmt.Sprintf("peb=%d offset=0x%x", l.PEB, l.Offset)
	case l.LEB >= 0:
		return fmt.Sprintf("leb=%d offset=0x%x", l.LEB, l.Offset)
	default:
		return fmt.Sprintf("offset=0x%x", l.Offset)
	}
}

// NoLocation is used when an error has no byte-range context at all.
var NoLocation = Location{PEB: -1, LEB: -1}

type taggedError struct {
	tag string
	loc Location
	msg string
	err error
}

func (e *taggedError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s (%s): %v", e.tag, e.msg, e.loc, e.err)
	}
	return fmt.Sprintf("%s: %s (%s)", e.tag, e.msg, e.loc)
}

func (e *taggedError) Unwrap() error { return e.err }

func newTagged(tag, msg string, loc Location, cause error) error {
	return &taggedError{tag: tag, loc: loc, msg: msg, err: cause}
}

// InputError reports an unreadable file or an impossible offset/length.
func InputError(msg string, cause error) error {
	return newTagged("InputError", msg, NoLocation, cause)
}

// GeometryError reports that the PEB size or LEB size could not be deduced
// and none was supplied.
func GeometryError(msg string, cause error) error {
	return newTagged("GeometryError", msg, NoLocation, cause)
}

// IntegrityError reports a magic mismatch or CRC failure on a structure
// required to proceed.
func IntegrityError(msg string, loc Location, cause error) error {
	return newTagged("IntegrityError", msg, loc, cause)
}

// DecodingError reports a malformed or truncated node on a live path, or a
// decompression failure.
func DecodingError(msg string, loc Location, cause error) error {
	return newTagged("DecodingError", msg, loc, cause)
}

// UnrecoverableError reports an invariant-violating state the user must
// resolve (e.g. two live PEBs with equal (seq, ec) for the same key).
func UnrecoverableError(msg string, loc Location, cause error) error {
	return newTagged("UnrecoverableError", msg, loc, cause)
}

// Is reports whether err was produced by one of this package's
// constructors with the given tag, e.g. Is(err, "IntegrityError").
func Is(err error, tag string) bool {
	te, ok := err.(*taggedError)
	return ok && te.tag == tag
}
