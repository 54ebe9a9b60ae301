//go:build tinygo || !cgo

package graphaux

import "github.com/soypat/sdfgraph"

func ui(s *sdfgraph.Scene, cfg UIConfig) error {
	return errNoCGO
}

func renderPNG(filename string, s *sdfgraph.Scene, cfg ImageConfig) error {
	return errNoCGO
}
