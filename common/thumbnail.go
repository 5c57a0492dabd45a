package common

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder

	"github.com/disintegration/imaging"
)

// ThumbnailContentType is the format Thumbnail produces
const ThumbnailContentType = "image/jpeg"

// Thumbnail decodes a PNG, JPEG or GIF and fits it into a size×size box,
// keeping the aspect ratio. The result is JPEG.
func Thumbnail(data []byte, size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid thumbnail size %d", size)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	thumb := img
	b := img.Bounds()
	if b.Dx() > size || b.Dy() > size {
		thumb = imaging.Fit(img, size, size, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("failed to encode %s thumbnail: %w", format, err)
	}
	return buf.Bytes(), nil
}
