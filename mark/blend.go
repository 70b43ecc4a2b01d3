package mark

import "image"

// maskThreshold is the per-channel difference below which an overlay pixel
// is treated as anti-aliasing noise and excluded from the blend mask.
const maskThreshold = 5

// alphaForDensity maps the 0..100 density control to the overlay opacity
// used by the combined compositor: 0.2 at density 0 up to 1.0 at 100, so a
// fully "light" setting still leaves the marks visible.
func alphaForDensity(density int) float64 {
	return 0.2 + float64(clampDensity(density))/100.0*0.8
}

// symbolAlpha maps density to opacity for the standalone symbol pass. The
// mapping is linear with no floor, intentionally different from
// alphaForDensity; see the package doc comment.
func symbolAlpha(density int) float64 {
	return float64(clampDensity(density)) / 100.0
}

func clampDensity(d int) int {
	if d < 0 {
		return 0
	}
	if d > 100 {
		return 100
	}
	return d
}

// blendMasked merges overlay into dst wherever overlay differs from src by
// more than maskThreshold on any channel. At density 100 the masked pixels
// are overwritten exactly; below that they become
// overlay*alpha + src*(1-alpha). Pixels outside the mask are untouched.
// All three images must share bounds and stride.
func blendMasked(dst, src, overlay *image.RGBA, density int) {
	alpha := alphaForDensity(density)
	exact := clampDensity(density) == 100
	for i := 0; i < len(src.Pix); i += 4 {
		if !masked(src.Pix[i:i+3], overlay.Pix[i:i+3]) {
			continue
		}
		if exact {
			copy(dst.Pix[i:i+4], overlay.Pix[i:i+4])
			continue
		}
		for c := 0; c < 3; c++ {
			dst.Pix[i+c] = mix(overlay.Pix[i+c], src.Pix[i+c], alpha)
		}
		dst.Pix[i+3] = 0xff
	}
}

// blendFull mixes the whole overlay over src into dst at the given alpha.
// Used by the standalone symbol pass, where the overlay is a copy of the
// base image and unmarked pixels blend to themselves.
func blendFull(dst, src, overlay *image.RGBA, alpha float64) {
	for i := 0; i < len(src.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			dst.Pix[i+c] = mix(overlay.Pix[i+c], src.Pix[i+c], alpha)
		}
		dst.Pix[i+3] = 0xff
	}
}

func masked(src, overlay []uint8) bool {
	for c := 0; c < 3; c++ {
		d := int(overlay[c]) - int(src[c])
		if d < 0 {
			d = -d
		}
		if d > maskThreshold {
			return true
		}
	}
	return false
}

func mix(over, under uint8, alpha float64) uint8 {
	v := float64(over)*alpha + float64(under)*(1-alpha)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
