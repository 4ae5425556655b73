// Package media derives the per-site imagery: accent tinted favicons, the
// error page illustration and the thumbnail renditions for PDF sources.
package media

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// Tint multiplies every color channel with the accent, leaving alpha alone.
func Tint(src image.Image, tint color.NRGBA) *image.NRGBA {
	bounds := src.Bounds()
	dst := image.NewNRGBA(bounds)
	xdraw.Draw(dst, bounds, src, bounds.Min, xdraw.Src)
	for i := 0; i < len(dst.Pix); i += 4 {
		dst.Pix[i+0] = uint8(uint16(dst.Pix[i+0]) * uint16(tint.R) / 255)
		dst.Pix[i+1] = uint8(uint16(dst.Pix[i+1]) * uint16(tint.G) / 255)
		dst.Pix[i+2] = uint8(uint16(dst.Pix[i+2]) * uint16(tint.B) / 255)
	}
	return dst
}

// Resize scales the image to the given size with Catmull-Rom interpolation.
func Resize(src image.Image, width, height int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// Composite lays the overlay over the base with alpha blending.
func Composite(base, overlay image.Image) *image.NRGBA {
	bounds := base.Bounds()
	dst := image.NewNRGBA(bounds)
	xdraw.Draw(dst, bounds, base, bounds.Min, xdraw.Src)
	xdraw.Draw(dst, bounds, overlay, overlay.Bounds().Min, xdraw.Over)
	return dst
}

// TintQuotient measures how colorful an image is: the summed channel
// difference against its own grayscale rendition, divided by the pixel
// count. Near zero means the image is effectively monochrome.
func TintQuotient(img image.Image) float64 {
	bounds := img.Bounds()
	pixels := bounds.Dx() * bounds.Dy()
	if pixels == 0 {
		return 0
	}
	var sum uint64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			l := color.GrayModel.Convert(c).(color.Gray).Y
			sum += channelDiff(c.R, l) + channelDiff(c.G, l) + channelDiff(c.B, l)
		}
	}
	return float64(sum) / float64(pixels)
}

func channelDiff(a, b uint8) uint64 {
	if a > b {
		return uint64(a - b)
	}
	return uint64(b - a)
}

// Grayscale flattens the image to its luminance.
func Grayscale(img image.Image) *image.Gray {
	bounds := img.Bounds()
	dst := image.NewGray(bounds)
	xdraw.Draw(dst, bounds, img, bounds.Min, xdraw.Src)
	return dst
}
