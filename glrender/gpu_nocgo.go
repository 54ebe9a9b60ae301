//go:build tinygo || !cgo

package glrender

// NewGLDevice requires cgo.
func NewGLDevice() (Device, error) {
	return nil, errNoCGO
}
