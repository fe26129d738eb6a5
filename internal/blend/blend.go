// Package blend generates wallpapers interpolated between two source
// images and maintains a content-addressed, size-bounded cache of the
// results.
package blend

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"

	_ "image/png" // wallpaper sources may be PNG

	xdraw "golang.org/x/image/draw"
)

// ErrGeneration indicates a source image could not be decoded or the
// blended result could not be encoded. Callers degrade to the current
// period's unblended wallpaper rather than abort.
var ErrGeneration = errors.New("blend generation failed")

const jpegQuality = 95

// Images produces the linear per-pixel interpolation of a and b at the
// given ratio: 0 yields a, 1 yields b. Both sources are scaled to size
// first; a zero size selects the larger of the two source resolutions.
func Images(a, b image.Image, ratio float64, size image.Point) *image.RGBA {
	if size.X == 0 || size.Y == 0 {
		size = maxBounds(a.Bounds().Size(), b.Bounds().Size())
	}
	ra := toRGBA(a, size)
	rb := toRGBA(b, size)

	out := image.NewRGBA(image.Rectangle{Max: size})
	for i := range out.Pix {
		pa := float64(ra.Pix[i])
		pb := float64(rb.Pix[i])
		out.Pix[i] = uint8(pa + (pb-pa)*ratio + 0.5)
	}
	return out
}

// Files decodes two image files, blends them at ratio and returns the
// result. Decode failures are reported as ErrGeneration.
func Files(pathA, pathB string, ratio float64, size image.Point) (*image.RGBA, error) {
	if ratio < 0 || ratio > 1 {
		return nil, fmt.Errorf("blend ratio must be within [0,1], got %v", ratio)
	}
	a, err := decodeFile(pathA)
	if err != nil {
		return nil, err
	}
	b, err := decodeFile(pathB)
	if err != nil {
		return nil, err
	}
	return Images(a, b, ratio, size), nil
}

// WriteFile encodes img as JPEG at path, for callers blending without
// the cache.
func WriteFile(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := encodeJPEG(f, img); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrGeneration, path, err)
	}
	return img, nil
}

// encodeJPEG writes img to w. Encode failures are ErrGeneration.
func encodeJPEG(f *os.File, img image.Image) error {
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return fmt.Errorf("%w: encoding jpeg: %v", ErrGeneration, err)
	}
	return nil
}

func toRGBA(img image.Image, size image.Point) *image.RGBA {
	dst := image.NewRGBA(image.Rectangle{Max: size})
	if img.Bounds().Size() == size {
		xdraw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, xdraw.Src)
		return dst
	}
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}

func maxBounds(a, b image.Point) image.Point {
	out := a
	if b.X > out.X {
		out.X = b.X
	}
	if b.Y > out.Y {
		out.Y = b.Y
	}
	return out
}
