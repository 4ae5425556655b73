package config

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// RGB is a parsed accent color.
type RGB struct {
	R, G, B uint8
}

// ParseColor parses an accent color in `#rgb` or `#rrggbb` notation. The
// short form doubles each digit, so `#abc` equals `#aabbcc`.
func ParseColor(value string) (RGB, error) {
	if !strings.HasPrefix(value, "#") {
		return RGB{}, fmt.Errorf("accent color %q must start with '#'", value)
	}
	digits := value[1:]

	switch len(digits) {
	case 3:
		expanded := make([]byte, 6)
		for i := 0; i < 3; i++ {
			expanded[2*i] = digits[i]
			expanded[2*i+1] = digits[i]
		}
		digits = string(expanded)
	case 6:
	default:
		return RGB{}, fmt.Errorf("accent color %q must have 3 or 6 hex digits", value)
	}

	var channels [3]uint8
	for i := 0; i < 3; i++ {
		n, err := strconv.ParseUint(digits[2*i:2*i+2], 16, 8)
		if err != nil {
			return RGB{}, fmt.Errorf("accent color %q is not valid hex: %w", value, err)
		}
		channels[i] = uint8(n)
	}
	return RGB{R: channels[0], G: channels[1], B: channels[2]}, nil
}

// Hex renders the color in `#rrggbb` notation.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// NRGBA returns the color fully opaque for image operations.
func (c RGB) NRGBA() color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
}
