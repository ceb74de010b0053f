//go:build gocv

package raster

import (
	"errors"

	"gocv.io/x/gocv"
)

// With OpenCV available, its decoder runs first and the pure Go strategies
// act as fallbacks. IMReadColor always yields three channels.
func platformDecoders() []Decoder {
	return []Decoder{{Name: "opencv", Decode: decodeOpenCV}}
}

func decodeOpenCV(data []byte, _ string) (*Image, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, err
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, errors.New("opencv could not decode image")
	}
	img, err := mat.ToImage()
	if err != nil {
		return nil, err
	}
	return FromImage(img), nil
}
