package main

import (
	"image"

	"gocv.io/x/gocv"
)

// zoomSource crops the frame center by the digital zoom factor and scales
// the crop to the detector's frame size.
type zoomSource struct {
	cap  *gocv.VideoCapture
	raw  gocv.Mat
	zoom float64
	size image.Point
}

func newZoomSource(cap *gocv.VideoCapture, zoom float64, width, height int) *zoomSource {
	return &zoomSource{cap: cap, raw: gocv.NewMat(), zoom: zoom, size: image.Pt(width, height)}
}

// Read implements tracking.FrameSource.
func (z *zoomSource) Read(dst *gocv.Mat) bool {
	if z.zoom <= 1 {
		return z.cap.Read(dst)
	}
	if !z.cap.Read(&z.raw) || z.raw.Empty() {
		return false
	}
	region := z.raw.Region(centerCrop(z.raw.Cols(), z.raw.Rows(), z.zoom))
	defer region.Close()
	gocv.Resize(region, dst, z.size, 0, 0, gocv.InterpolationLinear)
	return !dst.Empty()
}

func (z *zoomSource) Close() error {
	return z.raw.Close()
}

// centerCrop returns the centered w/zoom x h/zoom rectangle.
func centerCrop(w, h int, zoom float64) image.Rectangle {
	cw := max(1, int(float64(w)/zoom))
	ch := max(1, int(float64(h)/zoom))
	x0 := (w - cw) / 2
	y0 := (h - ch) / 2
	return image.Rect(x0, y0, x0+cw, y0+ch)
}
