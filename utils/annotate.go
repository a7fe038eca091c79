package utils

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"github.com/Perceptus-Labs/roomscout/models"
)

var boxColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}

const boxThickness = 2

// Annotate draws a rectangle around every detection and re-encodes the frame.
// A frame without detections is returned unchanged.
func Annotate(frame []byte, detections []models.Detection) ([]byte, error) {
	if len(detections) == 0 {
		return frame, nil
	}

	src, err := jpeg.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	bounds := src.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, src, bounds.Min, draw.Src)

	for _, d := range detections {
		rect := image.Rect(d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2).Intersect(bounds)
		if rect.Empty() {
			continue
		}
		drawOutline(canvas, rect)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, canvas, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return out.Bytes(), nil
}

func drawOutline(img *image.RGBA, r image.Rectangle) {
	fill := image.NewUniform(boxColor)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+boxThickness),
		image.Rect(r.Min.X, r.Max.Y-boxThickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+boxThickness, r.Max.Y),
		image.Rect(r.Max.X-boxThickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(r), fill, image.Point{}, draw.Src)
	}
}
