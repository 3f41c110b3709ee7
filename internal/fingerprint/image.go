package fingerprint

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrUndecodable is returned for bytes that are not a supported raster image.
var ErrUndecodable = errors.New("image cannot be decoded")

// DecodeImage decodes jpeg, png, gif, bmp or webp data.
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUndecodable, err)
	}
	return img, nil
}

// PrepareImage checks that data is a decodable image and, when maxSize > 0 and
// the image is larger, downscales it to fit within maxSize keeping the aspect
// ratio. The returned scale maps coordinates in the returned image back to the
// original (1 when the data is returned unchanged).
func PrepareImage(data []byte, maxSize int) ([]byte, float64, error) {
	if maxSize <= 0 {
		if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
			return nil, 0, fmt.Errorf("%w: %w", ErrUndecodable, err)
		}
		return data, 1, nil
	}

	img, err := DecodeImage(data)
	if err != nil {
		return nil, 0, err
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	// Check if resizing is needed.
	if width <= maxSize && height <= maxSize {
		return data, 1, nil
	}

	// Calculate new dimensions.
	var newWidth, newHeight int
	var scale float64
	if width > height {
		newWidth = maxSize
		newHeight = max(int(float64(height)*float64(maxSize)/float64(width)), 1)
		scale = float64(width) / float64(newWidth)
	} else {
		newHeight = maxSize
		newWidth = max(int(float64(width)*float64(maxSize)/float64(height)), 1)
		scale = float64(height) / float64(newHeight)
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.BiLinear.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 90}); err != nil {
		return nil, 0, fmt.Errorf("failed to encode resized image: %w", err)
	}

	return buf.Bytes(), scale, nil
}
