package utils

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/Perceptus-Labs/roomscout/models"
)

func blankJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestAnnotateWithoutDetections(t *testing.T) {
	frame := blankJPEG(t, 32, 32)
	got, err := Annotate(frame, nil)
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}
	if !bytes.Equal(got, frame) {
		t.Error("frame without detections should pass through unchanged")
	}
}

func TestAnnotateKeepsDimensions(t *testing.T) {
	frame := blankJPEG(t, 64, 48)
	got, err := Annotate(frame, []models.Detection{
		{Label: "bed", Box: models.Box{X1: 10, Y1: 10, X2: 40, Y2: 30}},
		{Label: "tv", Box: models.Box{X1: 50, Y1: 40, X2: 500, Y2: 500}}, // clipped
	})
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(got))
	if err != nil {
		t.Fatalf("annotated frame is not a JPEG: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 64, 48) {
		t.Errorf("bounds = %v", img.Bounds())
	}
}

func TestAnnotateRejectsGarbage(t *testing.T) {
	if _, err := Annotate([]byte("not a jpeg"), []models.Detection{{Label: "bed"}}); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestDrawOutline(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	drawOutline(img, image.Rect(2, 2, 12, 12))

	tests := []struct {
		x, y int
		want color.RGBA
	}{
		{2, 2, boxColor},
		{7, 2, boxColor},
		{11, 7, boxColor},
		{7, 11, boxColor},
		{7, 7, color.RGBA{}},
		{15, 15, color.RGBA{}},
	}
	for _, tt := range tests {
		if got := img.RGBAAt(tt.x, tt.y); got != tt.want {
			t.Errorf("pixel (%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}
