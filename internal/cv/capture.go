package cv

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/go-vgo/robotgo"
)

// Capturer produces raster frames from an external source. CaptureFrame may
// block until a frame is available.
type Capturer interface {
	CaptureFrame() (*image.RGBA, error)
	Dimensions() (width, height int)
}

// ScreenCapturer captures the primary display through robotgo
type ScreenCapturer struct{}

// NewScreenCapturer creates a capturer for the primary display
func NewScreenCapturer() *ScreenCapturer {
	return &ScreenCapturer{}
}

// CaptureFrame grabs the current screen contents as RGBA
func (c *ScreenCapturer) CaptureFrame() (*image.RGBA, error) {
	img, err := robotgo.CaptureImg()
	if err != nil {
		return nil, fmt.Errorf("screen capture failed: %w", err)
	}
	return ToRGBA(img), nil
}

// Dimensions returns the primary display size in pixels. Queried from the
// host on every call, never cached.
func (c *ScreenCapturer) Dimensions() (width, height int) {
	return robotgo.GetScreenSize()
}

// ToRGBA converts any image to *image.RGBA without copying when possible
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
	return rgba
}
