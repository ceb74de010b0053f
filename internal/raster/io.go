package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// JPEGQuality is the quality used when saving JPEG files.
const JPEGQuality = 95

// SupportedExtensions lists the file extensions Load and Save understand.
var SupportedExtensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".gif"}

// IsSupported reports whether path has a supported raster extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Decoder is a single decode strategy. ext is the lower-cased file extension
// including the dot, or "" when unknown.
type Decoder struct {
	Name   string
	Decode func(data []byte, ext string) (*Image, error)
}

// Decoders is the ordered list of strategies tried by Load and DecodeBytes.
var Decoders = append(platformDecoders(), []Decoder{
	{Name: "stdlib", Decode: decodeSniffed},
	{Name: "imaging", Decode: decodeNormalized},
	{Name: "extension", Decode: decodeByExtension},
}...)

// Load reads and decodes the image at path.
func Load(path string) (*Image, error) {
	if path == "" {
		return nil, &ProcessingError{Stage: "load", Kind: ErrDecode, Err: errors.New("empty path")}
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: user-provided image path
	if err != nil {
		return nil, &ProcessingError{Stage: "load", Kind: ErrDecode, Err: err}
	}
	return DecodeBytes(data, strings.ToLower(filepath.Ext(path)))
}

// DecodeBytes runs the default strategies over an in-memory file.
func DecodeBytes(data []byte, ext string) (*Image, error) {
	return DecodeWith(Decoders, data, ext)
}

// DecodeWith tries each strategy in order and returns the first result that
// satisfies the buffer invariant.
func DecodeWith(decoders []Decoder, data []byte, ext string) (*Image, error) {
	if len(data) == 0 {
		return nil, &ProcessingError{Stage: "decode", Kind: ErrDecode, Err: errors.New("empty input")}
	}
	var errs []error
	for _, d := range decoders {
		img, err := d.Decode(data, ext)
		if err == nil {
			err = img.Validate()
		}
		if err == nil {
			return img, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", d.Name, err))
	}
	if len(errs) == 0 {
		errs = append(errs, errors.New("no decoders configured"))
	}
	return nil, &ProcessingError{Stage: "decode", Kind: ErrDecode, Err: errors.Join(errs...)}
}

// decodeSniffed is the fast path: format detection from magic bytes.
func decodeSniffed(data []byte, _ string) (*Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return FromImage(img), nil
}

// decodeNormalized applies EXIF orientation and forces NRGBA, yielding RGB output.
func decodeNormalized(data []byte, _ string) (*Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	return FromImage(imaging.Clone(img)), nil
}

func decodeByExtension(data []byte, ext string) (*Image, error) {
	var decode func(io.Reader) (image.Image, error)
	switch ext {
	case ".png":
		decode = png.Decode
	case ".jpg", ".jpeg":
		decode = jpeg.Decode
	case ".bmp":
		decode = bmp.Decode
	case ".tif", ".tiff":
		decode = tiff.Decode
	case ".gif":
		decode = gif.Decode
	default:
		return nil, fmt.Errorf("no codec for extension %q", ext)
	}
	img, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return FromImage(img), nil
}

// Save encodes im in the format implied by the extension of path. On failure
// no file is created.
func Save(im *Image, path string) error {
	if err := im.Validate(); err != nil {
		return &ProcessingError{Stage: "save", Kind: ErrEncode, Err: err}
	}
	var buf bytes.Buffer
	if err := Encode(&buf, im, filepath.Ext(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil { //nolint:gosec // G306: output images are not secrets
		return &ProcessingError{Stage: "save", Kind: ErrEncode, Err: err}
	}
	return nil
}

// Encode writes im to w using the format named by ext (".png", "jpeg", ...).
func Encode(w io.Writer, im *Image, ext string) error {
	if err := im.Validate(); err != nil {
		return &ProcessingError{Stage: "save", Kind: ErrEncode, Err: err}
	}
	format, err := imaging.FormatFromExtension(strings.TrimPrefix(ext, "."))
	if err != nil {
		return &ProcessingError{Stage: "save", Kind: ErrEncode, Err: fmt.Errorf("unsupported extension %q: %w", ext, err)}
	}
	if err := imaging.Encode(w, im.ToImage(), format, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return &ProcessingError{Stage: "save", Kind: ErrEncode, Err: err}
	}
	return nil
}
