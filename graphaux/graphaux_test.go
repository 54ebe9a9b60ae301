package graphaux

import (
	"testing"

	"github.com/soypat/sdfgraph"
	"github.com/soypat/sdfgraph/catalog"
)

func TestArgumentValidation(t *testing.T) {
	if err := UI(nil, UIConfig{}); err == nil {
		t.Error("UI accepted nil scene")
	}
	if err := RenderPNGFile("x.png", nil, ImageConfig{Width: 1, Height: 1}); err == nil {
		t.Error("RenderPNGFile accepted nil scene")
	}
	s := sdfgraph.NewScene(catalog.NewDefault(), sdfgraph.Mode2D)
	for _, cfg := range []ImageConfig{{}, {Width: 10}, {Width: -1, Height: 10}} {
		if err := RenderPNGFile("x.png", s, cfg); err == nil {
			t.Errorf("RenderPNGFile accepted %dx%d image", cfg.Width, cfg.Height)
		}
	}
}
