package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	// ErrDecode is returned when an input cannot be decoded as an image.
	ErrDecode = errors.New("image decode failed")
	// ErrUnsupportedImage is returned for uploads whose content type is not an accepted image format.
	ErrUnsupportedImage = errors.New("unsupported image type")
	// ErrNoForeground is returned when background removal leaves no opaque pixel.
	ErrNoForeground = errors.New("no foreground detected in image")
)

var allowedMIMEs = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
	"image/bmp":  "bmp",
	"image/tiff": "tiff",
}

// Source is one raw input image, either in memory or on disk.
type Source struct {
	Name string
	Path string
	Data []byte
}

// Bytes returns the raw image bytes, reading from disk when needed.
func (s Source) Bytes() ([]byte, error) {
	if s.Data != nil {
		return s.Data, nil
	}
	if s.Path == "" {
		return nil, fmt.Errorf("%w: empty image source", ErrDecode)
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrDecode, s.Path, err)
	}
	return data, nil
}

// Validate sniffs the content type and fully decodes the image, so truncated
// pixel data is rejected before any work is queued. It returns the file
// extension for the detected type.
func Validate(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: file is empty", ErrDecode)
	}
	mimeType := mimetype.Detect(data).String()
	ext, ok := allowedMIMEs[mimeType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedImage, mimeType)
	}
	if _, err := Decode(data); err != nil {
		return "", err
	}
	return ext, nil
}

// Decode decodes raw bytes into an image.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

// ToNRGBA converts any image to a zero-origin NRGBA copy.
func ToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// ResizeForeground crops to the bounding box of non-transparent pixels, pads
// it to a centred square, then pads again so the foreground spans ratio of
// the frame. Padding is fully transparent.
func ResizeForeground(img *image.NRGBA, ratio float64) (*image.NRGBA, error) {
	box, ok := alphaBounds(img)
	if !ok {
		return nil, ErrNoForeground
	}
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}

	h, w := box.Dy(), box.Dx()
	size := max(h, w)
	newSize := int(float64(size) / ratio)
	if newSize < size {
		newSize = size
	}

	offX := (newSize-size)/2 + (size-w)/2
	offY := (newSize-size)/2 + (size-h)/2

	out := image.NewNRGBA(image.Rect(0, 0, newSize, newSize))
	draw.Draw(out, image.Rect(offX, offY, offX+w, offY+h), img, box.Min, draw.Src)
	return out, nil
}

func alphaBounds(img *image.NRGBA) (image.Rectangle, bool) {
	b := img.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.NRGBAAt(x, y).A == 0 {
				continue
			}
			minX = min(minX, x)
			minY = min(minY, y)
			maxX = max(maxX, x)
			maxY = max(maxY, y)
		}
	}
	if maxX < minX || maxY < minY {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

// CompositeOnGray blends the foreground over a 50% gray background using its
// alpha and returns an opaque image: rgb*a + 0.5*(1-a).
func CompositeOnGray(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			px := img.NRGBAAt(x, y)
			a := float32(px.A) / 255
			blend := func(c uint8) uint8 {
				v := (float32(c)/255*a + (1-a)*0.5) * 255
				return uint8(v)
			}
			out.SetNRGBA(x-b.Min.X, y-b.Min.Y, color.NRGBA{R: blend(px.R), G: blend(px.G), B: blend(px.B), A: 255})
		}
	}
	return out
}
