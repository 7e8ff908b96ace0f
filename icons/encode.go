package icons

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/tailored-agentic-units/drawbridge/companion"
)

// Placeholder is the image shown for actions that declare no image of their
// own: a 16x16 PNG, base64 encoded.
const Placeholder = "iVBORw0KGgoAAAANSUhEUgAAABAAAAAQCAYAAAAf8/9hAAAAVklEQVR42mPQztnwnxLMAGO8+PCDJIxiAEyAFM0wmgFZIzGGoKtnQNeEzxBsahmwaSBFjAGXjcR4Da8ByCGNT552BlDkBYoCkaJopCghUZSUKc5MlGAA5PNIFiy3VsIAAAAASUVORK5CYII="

// Encode decodes a PNG, JPEG or GIF image and returns it re-encoded as a
// base64 PNG, the only image format the companion app accepts inline. Images
// larger than the default pixel cap are rejected.
func Encode(data []byte) (string, error) {
	return EncodeBounded(data, DefaultConfig().MaxImagePixels)
}

// EncodeBounded is Encode with an explicit cap on width times height,
// checked from the image header before any pixel data is decoded. A
// maxPixels of zero or less uses the default cap.
func EncodeBounded(data []byte, maxPixels int64) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyImage
	}
	if maxPixels <= 0 {
		maxPixels = DefaultConfig().MaxImagePixels
	}

	header, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	if int64(header.Width)*int64(header.Height) > maxPixels {
		return "", fmt.Errorf("%w: %dx%d", ErrImageTooLarge, header.Width, header.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ApplyPlaceholder gives a descriptor with neither an inline image nor an
// image URL the placeholder image.
func ApplyPlaceholder(d companion.ActionDescriptor) companion.ActionDescriptor {
	if d.ImageBase64 == "" && d.ImageURL == "" {
		d.ImageBase64 = Placeholder
	}
	return d
}
