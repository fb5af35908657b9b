// Package pixelate turns source photos into blocky rasters by
// shrinking them with a smoothing kernel and scaling the result back
// up without one.
package pixelate

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// Renderer is the only drawing capability the transform needs: scale
// src onto a fresh dstW x dstH surface, with or without smoothing.
type Renderer interface {
	DrawScaled(src image.Image, dstW, dstH int, smooth bool) image.Image
}

// KernelRenderer draws with the x/image scaling kernels. Smoothing
// uses CatmullRom, which averages source pixels during reduction
// instead of point-sampling them; non-smoothing uses NearestNeighbor,
// which keeps hard block edges during magnification.
type KernelRenderer struct{}

// DrawScaled implements Renderer.
func (KernelRenderer) DrawScaled(src image.Image, dstW, dstH int, smooth bool) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	var kernel xdraw.Interpolator = xdraw.NearestNeighbor
	if smooth {
		kernel = xdraw.CatmullRom
	}
	kernel.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// Transform reduces src to a tiny intermediate grid, then scales the
// grid up to the target size, producing blocks of roughly pixelSize
// pixels. A pixelSize of 1 degenerates to a plain scaled draw.
func Transform(r Renderer, src image.Image, targetW, targetH, pixelSize int) image.Image {
	if pixelSize < 1 {
		pixelSize = 1
	}
	tiny := r.DrawScaled(src, reduced(targetW, pixelSize), reduced(targetH, pixelSize), true)
	return r.DrawScaled(tiny, targetW, targetH, false)
}

// Render runs the transform with the kernel renderer.
func Render(src image.Image, targetW, targetH, pixelSize int) image.Image {
	return Transform(KernelRenderer{}, src, targetW, targetH, pixelSize)
}

// reduced returns the intermediate grid length for one axis, at least
// one cell so the reduction never collapses to nothing.
func reduced(target, pixelSize int) int {
	n := target / pixelSize
	if n < 1 {
		return 1
	}
	return n
}
