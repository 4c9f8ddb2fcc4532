// Package media shrinks images under a hard byte-size ceiling.
//
// Oversized images are re-encoded as JPEG at a fixed quality, then scaled
// down in height (aspect-correct) until the encoded size fits. The shrink
// ratio is derived from how far over the ceiling the current encode is;
// near convergence the ratio degenerates, so a fixed 20 px decrement takes
// over to guarantee forward progress.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/prismbot/prism/pkg/logger"
)

// ErrUndecodable means the input's format or dimensions cannot be determined.
var ErrUndecodable = errors.New("media: cannot decode image")

const (
	jpegQuality    = 80
	minShrinkRatio = 1.01
	heightStep     = 20
)

// Result is a fitted payload with its encoded format ("jpeg" once any
// re-encoding happened, the detected input format otherwise).
type Result struct {
	Format string
	Data   []byte
}

// Fit returns data unchanged when it is already at or under ceiling,
// otherwise a JPEG re-encode scaled down until it fits.
func Fit(data []byte, ceiling int) (Result, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	if len(data) <= ceiling {
		return Result{Format: format, Data: data}, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	encoded, err := encodeJPEG(src)
	if err != nil {
		return Result{}, err
	}

	height := src.Bounds().Dy()
	for len(encoded) > ceiling {
		height = nextHeight(len(encoded), ceiling, height)
		if height < 1 {
			return Result{}, fmt.Errorf("media: image cannot fit into %d bytes", ceiling)
		}
		logger.DebugCF("media", "Resizing", map[string]any{
			"size":          len(encoded),
			"ceiling":       ceiling,
			"target_height": height,
		})
		encoded, err = encodeJPEG(scaleToHeight(src, height))
		if err != nil {
			return Result{}, err
		}
	}

	logger.InfoCF("media", "Refit image", map[string]any{
		"original_size": len(data),
		"final_size":    len(encoded),
	})
	return Result{Format: "jpeg", Data: encoded}, nil
}

// nextHeight computes the following height target. The square root spreads
// the byte overshoot across both dimensions; under 1.01 the scaled step
// would shrink less than a pixel row per iteration, so a fixed decrement
// takes over.
func nextHeight(size, ceiling, height int) int {
	ratio := math.Sqrt(float64(size) / float64(ceiling))
	if ratio < minShrinkRatio {
		return height - heightStep
	}
	return int(float64(height) / ratio)
}

func scaleToHeight(src image.Image, height int) image.Image {
	bounds := src.Bounds()
	width := int(math.Round(float64(bounds.Dx()) * float64(height) / float64(bounds.Dy())))
	if width < 1 {
		width = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("media: jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}
