// Package graphaux provides a preview window and image output for scenes so
// users can get set up quickly. Applications embedding the engine will usually
// drive glrender themselves.
package graphaux

import (
	"context"
	"errors"
	"log/slog"

	"github.com/soypat/sdfgraph"
	"github.com/soypat/sdfgraph/modsrc"
	"github.com/soypat/sdfgraph/modulation"
)

// UIConfig configures the preview window opened by [UI].
type UIConfig struct {
	Title  string
	Width  int
	Height int
	// Rules modulate the scene's parameters with readings sampled from Bank.
	Rules []modulation.Rule
	Bank  *modsrc.Bank
	// OnFrame, if set, is called at the start of every frame with the elapsed
	// time in seconds. It may mutate the scene.
	OnFrame func(s *sdfgraph.Scene, t float32)
	// Context cancels the render loop when done.
	Context context.Context
	Logger  *slog.Logger
}

// ImageConfig configures [RenderPNGFile].
type ImageConfig struct {
	Width  int
	Height int
	// Time is the value of the time uniform, in seconds.
	Time  float32
	Rules []modulation.Rule
	// Sources are the readings the rules are evaluated with.
	Sources map[string]float32
	Logger  *slog.Logger
}

var errNoCGO = errors.New("graphaux: require cgo for GL rendering")

// UI opens a window that renders the scene until the window is closed or
// cfg.Context is done. Structural edits are compiled off the render loop.
// UI must be called from the main goroutine.
func UI(s *sdfgraph.Scene, cfg UIConfig) error {
	if s == nil {
		return errors.New("graphaux: nil scene")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = 800, 600
	}
	if cfg.Title == "" {
		cfg.Title = "sdfgraph preview"
	}
	return ui(s, cfg)
}

// RenderPNGFile renders a single frame of the scene offscreen and writes it to filename.
func RenderPNGFile(filename string, s *sdfgraph.Scene, cfg ImageConfig) error {
	if s == nil {
		return errors.New("graphaux: nil scene")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return errors.New("graphaux: image dimensions must be positive")
	}
	return renderPNG(filename, s, cfg)
}
