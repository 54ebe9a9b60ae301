//go:build !tinygo && cgo

package graphaux

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/soypat/sdfgraph"
	"github.com/soypat/sdfgraph/glbuild"
	"github.com/soypat/sdfgraph/glrender"
)

func ui(s *sdfgraph.Scene, cfg UIConfig) error {
	window, term, err := startGLFW(cfg.Width, cfg.Height, cfg.Title, true)
	if err != nil {
		return err
	}
	defer term()
	log := cfg.Logger
	if log == nil {
		log = glrender.Logger()
	}
	dev, err := glrender.NewGLDevice()
	if err != nil {
		return err
	}
	rt, err := glrender.NewRuntime(dev, glrender.Config{Logger: log})
	if err != nil {
		return err
	}
	defer rt.Close()
	if err := rt.SetRules(cfg.Rules); err != nil {
		log.Warn("malformed modulation rules ignored", slog.String("err", err.Error()))
	}

	// First program is compiled synchronously so the window never opens blank.
	g := s.Snapshot()
	cs := glbuild.Compile(s.Registry(), &g)
	rt.Apply(glrender.Result{Stamp: s.Version(), Shader: cs}, s.Version())

	ac := glrender.NewAsyncCompiler(s.Registry())
	defer ac.Close()
	submitted := s.Version()

	var (
		ctx      = cfg.Context
		sources  map[string]float32
		start    = glfw.GetTime()
		previous = start
	)
	for !window.ShouldClose() {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		now := glfw.GetTime()
		t, dt := float32(now-start), float32(now-previous)
		previous = now
		if cfg.OnFrame != nil {
			cfg.OnFrame(s, t)
		}
		if v := s.Version(); v != submitted {
			submitted = v
			ac.Submit(v, s.Snapshot())
		}
		select {
		case res := <-ac.Results():
			rt.Apply(res, submitted)
		default:
		}
		if cfg.Bank != nil {
			sources = cfg.Bank.Sample(t, dt, sources)
		}
		width, height := window.GetFramebufferSize()
		if err := rt.Render(width, height, t, s.Instances(), sources); err != nil {
			log.Error("render", slog.String("err", err.Error()))
		}
		window.SwapBuffers()
		glfw.PollEvents()
	}
	return nil
}

func renderPNG(filename string, s *sdfgraph.Scene, cfg ImageConfig) error {
	_, term, err := startGLFW(cfg.Width, cfg.Height, "sdfgraph offscreen", false)
	if err != nil {
		return err
	}
	defer term()
	g := s.Snapshot()
	cs := glbuild.Compile(s.Registry(), &g)
	if err := cs.Err(); err != nil {
		return err
	}
	dev, err := glrender.NewGLDevice()
	if err != nil {
		return err
	}
	rt, err := glrender.NewRuntime(dev, glrender.Config{Logger: cfg.Logger})
	if err != nil {
		return err
	}
	defer rt.Close()
	if !rt.UpdateShader(&cs) {
		return errors.New("graphaux: shader failed to link, see log for source")
	}
	if err := rt.SetRules(cfg.Rules); err != nil {
		return err
	}

	w, h := int32(cfg.Width), int32(cfg.Height)
	var fbo, rbo uint32
	gl.GenFramebuffers(1, &fbo)
	defer gl.DeleteFramebuffers(1, &fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, fbo)
	gl.GenRenderbuffers(1, &rbo)
	defer gl.DeleteRenderbuffers(1, &rbo)
	gl.BindRenderbuffer(gl.RENDERBUFFER, rbo)
	gl.RenderbufferStorage(gl.RENDERBUFFER, gl.RGBA8, w, h)
	gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.RENDERBUFFER, rbo)
	if status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER); status != gl.FRAMEBUFFER_COMPLETE {
		return fmt.Errorf("graphaux: incomplete framebuffer 0x%x", status)
	}
	if err := rt.Render(cfg.Width, cfg.Height, cfg.Time, s.Instances(), cfg.Sources); err != nil {
		return err
	}

	img := image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, w, h, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	flipRows(img)

	fp, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer fp.Close()
	err = png.Encode(fp, img)
	if err != nil {
		return err
	}
	return fp.Sync()
}

// flipRows converts GL's bottom-up row order to image's top-down order.
func flipRows(img *image.RGBA) {
	h := img.Rect.Dy()
	row := make([]byte, img.Stride)
	for y := 0; y < h/2; y++ {
		top := img.Pix[y*img.Stride : (y+1)*img.Stride]
		bot := img.Pix[(h-1-y)*img.Stride : (h-y)*img.Stride]
		copy(row, top)
		copy(top, bot)
		copy(bot, row)
	}
}

func startGLFW(width, height int, title string, visible bool) (window *glfw.Window, term func(), err error) {
	if err := glfw.Init(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize GLFW: %w", err)
	}
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 6)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	if !visible {
		glfw.WindowHint(glfw.Visible, glfw.False)
	}

	window, err = glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, nil, fmt.Errorf("failed to create GLFW window: %w", err)
	}
	window.MakeContextCurrent()

	if err := gl.Init(); err != nil {
		window.Destroy()
		glfw.Terminate()
		return nil, nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	return window, glfw.Terminate, nil
}
