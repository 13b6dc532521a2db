package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	"image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// CanonicalMaxDim is the bounding box Canonicalize fits every image within.
const CanonicalMaxDim = 250

// Canonicalize decodes an image from memory, resizes it to fit within
// CanonicalMaxDim×CanonicalMaxDim while preserving aspect ratio, and
// re-encodes it as PNG. The returned bytes are the canonical form used for
// both fingerprinting and staging.
func Canonicalize(raw []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("media: decode image: %w", err)
	}

	bounds := img.Bounds()
	targetW, targetH := fitDimensions(bounds.Dx(), bounds.Dy(), CanonicalMaxDim)

	var resized image.Image
	switch {
	case targetW > 0 && targetH > 0:
		// Both target dimensions are known: resize to the exact box with
		// a cheap nearest-neighbour filter.
		resized = imaging.Resize(img, targetW, targetH, imaging.NearestNeighbor)
	case targetW > 0:
		// Only a target width survived the fit computation (a degenerate
		// aspect ratio rounded the height to zero): let Lanczos3 scale the
		// height back in proportionally.
		resized = imaging.Resize(img, targetW, 0, imaging.Lanczos)
	default:
		resized = img
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, resized); err != nil {
		return nil, fmt.Errorf("media: encode canonical png: %w", err)
	}
	return buf.Bytes(), nil
}

// fitDimensions computes the largest (w, h) that preserves the aspect ratio
// of (srcW, srcH) while fitting within max×max.
func fitDimensions(srcW, srcH, maxDim int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return 0, 0
	}
	if srcW <= maxDim && srcH <= maxDim {
		return srcW, srcH
	}

	ratio := float64(maxDim) / float64(srcW)
	if hRatio := float64(maxDim) / float64(srcH); hRatio < ratio {
		ratio = hRatio
	}

	w := int(float64(srcW)*ratio + 0.5)
	h := int(float64(srcH)*ratio + 0.5)
	if w < 1 {
		w = 1
	}
	return w, h
}
