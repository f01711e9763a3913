package preprocess

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestNormalizeShapeAndRange(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"png small", encodePNG(t, 10, 10)},
		{"png large", encodePNG(t, 640, 480)},
		{"png non-square", encodePNG(t, 300, 100)},
		{"jpeg", encodeJPEG(t, 224, 224)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tensor, err := Normalize(bytes.NewReader(tc.data))
			if err != nil {
				t.Fatalf("expected success, got error: %v", err)
			}

			wantShape := []int64{1, Side, Side, Channels}
			if len(tensor.Shape) != len(wantShape) {
				t.Fatalf("expected rank %d, got %d", len(wantShape), len(tensor.Shape))
			}
			for i, dim := range wantShape {
				if tensor.Shape[i] != dim {
					t.Fatalf("shape[%d]: expected %d, got %d", i, dim, tensor.Shape[i])
				}
			}
			if len(tensor.Data) != Side*Side*Channels {
				t.Fatalf("expected %d values, got %d", Side*Side*Channels, len(tensor.Data))
			}
			for i, v := range tensor.Data {
				if v < 0 || v > 1 {
					t.Fatalf("value at %d out of [0,1]: %f", i, v)
				}
			}
		})
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	_, err := Normalize(bytes.NewReader([]byte("this is not an image")))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestNormalizeRejectsEmptyInput(t *testing.T) {
	_, err := Normalize(bytes.NewReader(nil))
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}
