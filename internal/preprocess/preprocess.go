// Package preprocess turns uploaded scan images into the fixed tensor shape
// the classification model expects.
package preprocess

import (
	"errors"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
)

// Side is the square resolution of the model input.
const Side = 224

// Channels is the number of color channels of the model input.
const Channels = 3

// ErrDecode indicates the bytes were not a decodable raster image.
var ErrDecode = errors.New("could not decode image")

// Tensor is a rank-4 numeric array in row-major order.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// Normalize decodes a PNG or JPEG image, converts it to RGB, resizes it to
// Side x Side, and scales the channel values into [0,1]. The result has shape
// (1, Side, Side, Channels) with a leading batch dimension of one.
func Normalize(r io.Reader) (*Tensor, error) {
	img, err := imaging.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	resized := imaging.Resize(img, Side, Side, imaging.Lanczos)

	data := make([]float32, Side*Side*Channels)
	i := 0
	for y := 0; y < Side; y++ {
		for x := 0; x < Side; x++ {
			px := resized.NRGBAAt(x, y)
			data[i] = float32(px.R) / 255.0
			data[i+1] = float32(px.G) / 255.0
			data[i+2] = float32(px.B) / 255.0
			i += Channels
		}
	}

	return &Tensor{
		Shape: []int64{1, Side, Side, Channels},
		Data:  data,
	}, nil
}
