// Package render draws the ocean column and marker artwork using
// fogleman/gg.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"

	"github.com/fogleman/gg"

	"github.com/endangered-ocean/server/pkg/oceanpalette"
)

// Canvas height cap. Depth data past this point would render off any
// reasonable screen anyway.
const maxSurfaceHeight = 20000

// Config contains renderer configuration.
type Config struct {
	SurfaceWidth   int
	MarkerSize     int
	DefaultPalette string
}

// SurfaceSpec describes one composite render of the water column.
type SurfaceSpec struct {
	Width              int
	TotalExtent        float64
	Ticks              []int
	PixelsPerDepthUnit float64
	TopPadding         float64
	Palette            string
}

// PlacedMarker is a raster ready to composite at its layout position.
type PlacedMarker struct {
	Image image.Image
	Left  float64
	Top   float64
	Label string
}

// SurfaceRenderer renders the water column with species markers at
// their layout positions.
type SurfaceRenderer struct {
	config     Config
	bufferPool sync.Pool
}

// NewSurfaceRenderer creates a new surface renderer.
func NewSurfaceRenderer(cfg Config) *SurfaceRenderer {
	if cfg.SurfaceWidth <= 0 {
		cfg.SurfaceWidth = 1200
	}
	if cfg.MarkerSize <= 0 {
		cfg.MarkerSize = 96
	}
	if cfg.DefaultPalette == "" {
		cfg.DefaultPalette = "abyss"
	}
	return &SurfaceRenderer{
		config: cfg,
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 64*1024))
			},
		},
	}
}

// MarkerSize returns the configured square marker edge in pixels.
func (r *SurfaceRenderer) MarkerSize() int {
	return r.config.MarkerSize
}

// SurfaceWidth returns the default composite width in pixels.
func (r *SurfaceRenderer) SurfaceWidth() int {
	return r.config.SurfaceWidth
}

// DefaultPalette returns the configured fallback palette name.
func (r *SurfaceRenderer) DefaultPalette() string {
	return r.config.DefaultPalette
}

// RenderSurface renders the full column as a PNG: gradient water,
// depth ticks, then markers composited over both.
func (r *SurfaceRenderer) RenderSurface(spec SurfaceSpec, markers []PlacedMarker) ([]byte, error) {
	width := spec.Width
	if width <= 0 {
		width = r.config.SurfaceWidth
	}
	height := int(math.Ceil(spec.TotalExtent))
	if height < 1 {
		height = 1
	}
	if height > maxSurfaceHeight {
		height = maxSurfaceHeight
	}

	grad := r.palette(spec.Palette)

	dc := gg.NewContext(width, height)
	fill := gg.NewLinearGradient(0, 0, 0, float64(height))
	stops := grad.Stops()
	den := float64(len(stops) - 1)
	if den <= 0 {
		den = 1
	}
	for i, c := range stops {
		fill.AddColorStop(float64(i)/den, c)
	}
	dc.SetFillStyle(fill)
	dc.DrawRectangle(0, 0, float64(width), float64(height))
	dc.Fill()

	r.drawTicks(dc, spec)

	for _, m := range markers {
		if m.Image == nil {
			continue
		}
		x := int(math.Round(m.Left))
		y := int(math.Round(m.Top))
		dc.DrawImage(m.Image, x, y)
		if m.Label != "" {
			b := m.Image.Bounds()
			dc.SetRGBA255(235, 243, 248, 230)
			dc.DrawStringAnchored(m.Label, m.Left+float64(b.Dx())/2, m.Top+float64(b.Dy())+10, 0.5, 0.5)
		}
	}

	return r.EncodePNG(dc.Image())
}

// Placeholder draws the stand-in tile used when a species has no
// usable photo: tinted water with a crossed frame.
func (r *SurfaceRenderer) Placeholder(w, h int, tint color.RGBA) image.Image {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dc := gg.NewContext(w, h)
	dc.SetRGBA255(11, 36, 57, 255)
	dc.Clear()

	dc.SetColor(color.RGBA{R: tint.R, G: tint.G, B: tint.B, A: 90})
	dc.DrawRectangle(0, 0, float64(w), float64(h))
	dc.Fill()

	dc.SetColor(color.RGBA{R: tint.R, G: tint.G, B: tint.B, A: 255})
	dc.SetLineWidth(2)
	dc.DrawRectangle(1, 1, float64(w)-2, float64(h)-2)
	dc.Stroke()
	dc.DrawLine(0, 0, float64(w), float64(h))
	dc.Stroke()
	dc.DrawLine(float64(w), 0, 0, float64(h))
	dc.Stroke()

	return dc.Image()
}

// EncodePNG encodes an image with the fast encoder, reusing pooled
// buffers between renders.
func (r *SurfaceRenderer) EncodePNG(img image.Image) ([]byte, error) {
	buf := r.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		r.bufferPool.Put(buf)
	}()

	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(buf, img); err != nil {
		return nil, err
	}

	// Copy out before the buffer returns to the pool.
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}

func (r *SurfaceRenderer) drawTicks(dc *gg.Context, spec SurfaceSpec) {
	w := float64(dc.Width())
	h := float64(dc.Height())
	for _, depth := range spec.Ticks {
		y := spec.TopPadding + float64(depth)*spec.PixelsPerDepthUnit
		if y > h {
			break
		}
		dc.SetRGBA255(255, 255, 255, 46)
		dc.SetLineWidth(1)
		dc.DrawLine(0, y, w, y)
		dc.Stroke()
		dc.SetRGBA255(220, 235, 245, 220)
		dc.DrawString(fmt.Sprintf("%d m", depth), 8, y-4)
	}
}

func (r *SurfaceRenderer) palette(name string) oceanpalette.Gradient {
	if name != "" {
		if g, err := oceanpalette.Lookup(name); err == nil {
			return g
		}
	}
	if g, err := oceanpalette.Lookup(r.config.DefaultPalette); err == nil {
		return g
	}
	return oceanpalette.Abyss
}
