// Package ubiftcli holds the shared plumbing every ubift subcommand needs:
// offset/size flag parsing and opening an image down through the UBI and
// UBIFS layers.
package ubiftcli

import (
	"strconv"
	"strings"

	"github.com/wiwaszko/ubift/internal/ubiferrors"
)

// ParseOffset accepts either a decimal integer or a "0x"-prefixed
// hexadecimal one, as used by the --offset/--peb-size flags and the numeric
// positional arguments.
func ParseOffset(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ubiferrors.InputError("empty offset", nil)
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	var v uint64
	var err error
	if lower := strings.ToLower(s); strings.HasPrefix(lower, "0x") {
		v, err = strconv.ParseUint(s[2:], 16, 64)
	} else {
		v, err = strconv.ParseUint(s, 10, 64)
	}
	if err != nil {
		return 0, ubiferrors.InputError("invalid offset \""+s+"\"", err)
	}

	out := int64(v)
	if neg {
		out = -out
	}
	return out, nil
}
