package gallery

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/kozaktomas/face-gallery/internal/constants"
	"github.com/kozaktomas/face-gallery/internal/fingerprint"
)

const cloudinaryPrefix = "https://res.cloudinary.com/"

// Loader fetches photo bytes; fetch.Loader satisfies it.
type Loader interface {
	Load(ctx context.Context, id string) ([]byte, error)
}

// Thumbnail crops a face out of its photo with padding, fits it into a
// size x size square and encodes it as JPEG. Crops are clamped to the image
// and never upscaled.
func Thumbnail(ctx context.Context, loader Loader, face fingerprint.Face, size int) ([]byte, error) {
	if size <= 0 {
		size = constants.DefaultThumbnailSize
	}

	data, err := loader.Load(ctx, face.Photo)
	if err != nil {
		return nil, fmt.Errorf("failed to load photo: %w", err)
	}
	img, err := fingerprint.DecodeImage(data)
	if err != nil {
		return nil, err
	}

	rect := cropRect(face.Box, img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("face box %v lies outside the photo", face.Box)
	}
	thumb := imaging.Fit(imaging.Crop(img, rect), size, size, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(constants.ThumbnailJPEGQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func cropRect(box fingerprint.BoundingBox, bounds image.Rectangle) image.Rectangle {
	pad := constants.ThumbnailPadding
	r := image.Rect(box.Left-pad, box.Top-pad, box.Right+pad, box.Bottom+pad)
	return r.Intersect(bounds)
}

// CloudinaryThumbnailURL returns a Cloudinary URL that crops the face with
// padding and scales it to a square thumbnail. Photos hosted elsewhere are
// returned unchanged.
func CloudinaryThumbnailURL(photo string, box fingerprint.BoundingBox) string {
	if !strings.HasPrefix(photo, cloudinaryPrefix) {
		return photo
	}
	base, rest, ok := strings.Cut(photo, "/upload/")
	if !ok {
		return photo
	}

	pad := constants.ThumbnailPadding
	size := strconv.Itoa(constants.CloudinaryThumbnailSize)
	transformation := fmt.Sprintf("c_crop,x_%d,y_%d,w_%d,h_%d/c_scale,h_%s,w_%s",
		max(0, box.Left-pad),
		max(0, box.Top-pad),
		box.Width()+2*pad,
		box.Height()+2*pad,
		size, size,
	)
	return base + "/upload/" + transformation + "/" + rest
}
