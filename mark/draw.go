package mark

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Line and ring thicknesses, matching the stroke weights the grading
// symbols have always used.
const (
	crossThickness    = 8
	circleThickness   = 3
	triangleThickness = 3
)

// stamp fills a disc of the given radius, used as the pen tip for thick
// line strokes.
func stamp(img *image.RGBA, cx, cy, radius int, col color.RGBA) {
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= r2 {
				x, y := cx+dx, cy+dy
				if image.Pt(x, y).In(img.Bounds()) {
					img.SetRGBA(x, y, col)
				}
			}
		}
	}
}

// drawLine strokes a straight segment with a round pen of the given
// thickness.
func drawLine(img *image.RGBA, x0, y0, x1, y1, thickness int, col color.RGBA) {
	dx, dy := x1-x0, y1-y0
	steps := abs(dx)
	if abs(dy) > steps {
		steps = abs(dy)
	}
	if steps == 0 {
		steps = 1
	}
	pen := thickness / 2
	if pen < 1 {
		pen = 1
	}
	for i := 0; i <= steps; i++ {
		x := x0 + dx*i/steps
		y := y0 + dy*i/steps
		stamp(img, x, y, pen, col)
	}
}

// drawCircle strokes a ring of the given radius, the accept mark.
func drawCircle(img *image.RGBA, cx, cy, radius, thickness int, col color.RGBA) {
	half := thickness / 2
	if half < 1 {
		half = 1
	}
	outer := radius + half
	inner := radius - half
	for dy := -outer; dy <= outer; dy++ {
		for dx := -outer; dx <= outer; dx++ {
			d2 := dx*dx + dy*dy
			if d2 <= outer*outer && d2 >= inner*inner {
				x, y := cx+dx, cy+dy
				if image.Pt(x, y).In(img.Bounds()) {
					img.SetRGBA(x, y, col)
				}
			}
		}
	}
}

// drawCross strokes the tilted cross, the reject mark. size is the full
// marker extent; the arms reach size/2 from the center.
func drawCross(img *image.RGBA, cx, cy, size int, col color.RGBA) {
	half := size / 2
	drawLine(img, cx-half, cy-half, cx+half, cy+half, crossThickness, col)
	drawLine(img, cx-half, cy+half, cx+half, cy-half, crossThickness, col)
}

// drawTriangle strokes the upward triangle, the partial-credit mark.
func drawTriangle(img *image.RGBA, cx, cy, size int, col color.RGBA) {
	half := size / 2
	top := image.Pt(cx, cy-half)
	left := image.Pt(cx-half, cy+half)
	right := image.Pt(cx+half, cy+half)
	drawLine(img, top.X, top.Y, left.X, left.Y, triangleThickness, col)
	drawLine(img, left.X, left.Y, right.X, right.Y, triangleThickness, col)
	drawLine(img, right.X, right.Y, top.X, top.Y, triangleThickness, col)
}

// renderText rasterizes s at the requested pixel height. The glyphs come
// from the fixed 7x13 face scaled up with CatmullRom, which keeps digits
// legible at mark-proportional sizes without shipping a font file.
func renderText(s string, height int, col color.RGBA) *image.RGBA {
	if height < basicfont.Face7x13.Height {
		height = basicfont.Face7x13.Height
	}
	face := basicfont.Face7x13
	w := font.MeasureString(face, s).Ceil()
	if w == 0 {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}
	base := image.NewRGBA(image.Rect(0, 0, w, face.Height))
	d := &font.Drawer{
		Dst:  base,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	d.DrawString(s)

	tw := w * height / face.Height
	if tw < 1 {
		tw = 1
	}
	out := image.NewRGBA(image.Rect(0, 0, tw, height))
	xdraw.CatmullRom.Scale(out, out.Bounds(), base, base.Bounds(), xdraw.Over, nil)
	return out
}

// pasteText composites a rendered text block onto dst at (x, y).
func pasteText(dst *image.RGBA, text *image.RGBA, x, y int) {
	r := text.Bounds().Add(image.Pt(x, y))
	draw.Draw(dst, r, text, text.Bounds().Min, draw.Over)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
