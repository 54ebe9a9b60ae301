package sdfgraph

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/soypat/geometry/ms3"
	"golang.org/x/image/colornames"
)

// ParseColor parses an instance color. Accepted forms are "#rgb", "#rrggbb"
// and CSS/SVG color names such as "tomato". Components of the result are in [0,1].
func ParseColor(s string) (ms3.Vec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ms3.Vec{}, fmt.Errorf("empty color")
	}
	if s[0] != '#' {
		c, ok := colornames.Map[strings.ToLower(s)]
		if !ok {
			return ms3.Vec{}, fmt.Errorf("unknown color name %q", s)
		}
		return ms3.Vec{X: float32(c.R) / 255, Y: float32(c.G) / 255, Z: float32(c.B) / 255}, nil
	}
	hex := s[1:]
	switch len(hex) {
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	case 6:
	default:
		return ms3.Vec{}, fmt.Errorf("invalid hex color %q", s)
	}
	rgb, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return ms3.Vec{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return ms3.Vec{
		X: float32(rgb>>16&0xff) / 255,
		Y: float32(rgb>>8&0xff) / 255,
		Z: float32(rgb&0xff) / 255,
	}, nil
}
