package captcha

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

type PreprocessOptions struct {
	// upscale factor applied before blurring, ocr engines do poorly on
	// glyphs that are only a few pixels tall
	Scale int
	// gaussian blur sigma
	Sigma float64
	// side of the square neighborhood used for the local mean, must be odd
	BlockSize int
	// a pixel is foreground when it is darker than the local mean minus C
	C int
}

var DefaultPreprocessOptions = PreprocessOptions{
	Scale:     3,
	Sigma:     1.0,
	BlockSize: 15,
	C:         8,
}

// Preprocess turns a captcha into a black on white binary image.
func Preprocess(img image.Image, opts PreprocessOptions) *image.Gray {
	bounds := img.Bounds()
	if opts.Scale > 1 {
		img = imaging.Resize(img, bounds.Dx()*opts.Scale, bounds.Dy()*opts.Scale, imaging.Lanczos)
	}
	gray := imaging.Grayscale(img)
	if opts.Sigma > 0 {
		gray = imaging.Blur(gray, opts.Sigma)
	}
	return AdaptiveThreshold(toGray(gray), opts.BlockSize, opts.C)
}

func toGray(img image.Image) *image.Gray {
	bounds := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			out.Set(x, y, color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)))
		}
	}
	return out
}

// AdaptiveThreshold binarizes `src` against the mean of a blockSize x
// blockSize window around every pixel, using an integral image so the
// cost does not depend on the window size.
func AdaptiveThreshold(src *image.Gray, blockSize int, c int) *image.Gray {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if blockSize < 3 {
		blockSize = 3
	}
	if blockSize%2 == 0 {
		blockSize++
	}
	half := blockSize / 2

	// integral[(y+1)*(w+1)+(x+1)] = sum of src over [0,x]x[0,y]
	stride := w + 1
	integral := make([]int64, stride*(h+1))
	for y := 0; y < h; y++ {
		var row int64
		for x := 0; x < w; x++ {
			row += int64(src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
			integral[(y+1)*stride+x+1] = integral[y*stride+x+1] + row
		}
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		y0, y1 := max(y-half, 0), min(y+half, h-1)
		for x := 0; x < w; x++ {
			x0, x1 := max(x-half, 0), min(x+half, w-1)
			area := int64((x1 - x0 + 1) * (y1 - y0 + 1))
			sum := integral[(y1+1)*stride+x1+1] -
				integral[y0*stride+x1+1] -
				integral[(y1+1)*stride+x0] +
				integral[y0*stride+x0]

			value := int64(src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
			if value*area < sum-int64(c)*area {
				out.SetGray(x, y, color.Gray{Y: 0})
			} else {
				out.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return out
}
