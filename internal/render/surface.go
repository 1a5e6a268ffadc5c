package render

import (
	"fmt"
	"image"
	"math"
	"os"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font/gofont/gobold"
)

// Base sizes at scale 1, in stage pixels.
const (
	captionPadding   = 24.0
	outlineRadius    = 3.0
	shadowOffset     = 4.0
	lineSpacing      = 1.05
	placeholderRatio = 0.035
	placeholderText  = "UPLOAD YOUR IMAGE"
)

// Options configures the render surface.
type Options struct {
	StageWidth  int
	StageHeight int
	FontPath    string  // TTF file; empty uses the embedded Go Bold font
	FontRatio   float64 // caption font size as a fraction of stage width
}

// Renderer projects an image and its captions onto a fixed-aspect stage.
// It holds no per-render state and is safe for concurrent use.
type Renderer struct {
	stageW    int
	stageH    int
	fontRatio float64
	font      *truetype.Font
}

// NewRenderer creates a renderer.
// Parameters:
//   - opts: stage size, caption font and font ratio; zero values use 800x600, Go Bold and 0.075.
//
// Returns:
//   - *Renderer: ready renderer.
//   - error: non-nil if the configured font cannot be read or parsed.
func NewRenderer(opts Options) (*Renderer, error) {
	if opts.StageWidth <= 0 {
		opts.StageWidth = 800
	}
	if opts.StageHeight <= 0 {
		opts.StageHeight = 600
	}
	if opts.FontRatio <= 0 {
		opts.FontRatio = 0.075
	}

	ttf := gobold.TTF
	if opts.FontPath != "" {
		data, err := os.ReadFile(opts.FontPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read font %s: %w", opts.FontPath, err)
		}
		ttf = data
	}
	f, err := truetype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}

	return &Renderer{
		stageW:    opts.StageWidth,
		stageH:    opts.StageHeight,
		fontRatio: opts.FontRatio,
		font:      f,
	}, nil
}

// StageSize returns the output dimensions for scale.
func (r *Renderer) StageSize(scale float64) (int, int) {
	return int(math.Round(float64(r.stageW) * scale)), int(math.Round(float64(r.stageH) * scale))
}

// Render draws img contain-fitted on a transparent stage with top and bottom
// captions overlaid. A nil img draws the upload placeholder instead.
// Every length is multiplied by scale, so a 2x render is the 1x render enlarged.
func (r *Renderer) Render(img image.Image, top, bottom string, scale float64) image.Image {
	if scale <= 0 {
		scale = 1
	}
	w, h := r.StageSize(scale)
	dc := gg.NewContext(w, h)

	if img == nil {
		r.drawPlaceholder(dc, scale)
		return dc.Image()
	}

	if fitted, x, y := containFit(img, w, h); fitted != nil {
		dc.DrawImage(fitted, x, y)
	}

	fontSize := float64(r.stageW) * r.fontRatio * scale
	dc.SetFontFace(truetype.NewFace(r.font, &truetype.Options{Size: fontSize}))

	r.drawCaption(dc, top, false, scale)
	r.drawCaption(dc, bottom, true, scale)

	return dc.Image()
}

// containFit scales img to the largest size that fits w x h without cropping
// and returns it with its centered offset.
func containFit(img image.Image, w, h int) (image.Image, int, int) {
	src := img.Bounds()
	if src.Dx() == 0 || src.Dy() == 0 {
		return nil, 0, 0
	}

	ratio := math.Min(float64(w)/float64(src.Dx()), float64(h)/float64(src.Dy()))
	fw := int(math.Round(float64(src.Dx()) * ratio))
	fh := int(math.Round(float64(src.Dy()) * ratio))
	if fw < 1 {
		fw = 1
	}
	if fh < 1 {
		fh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, fw, fh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, src, xdraw.Over, nil)
	return dst, (w - fw) / 2, (h - fh) / 2
}

// drawCaption wraps text to the padded stage width and anchors the block to
// the top or bottom edge.
func (r *Renderer) drawCaption(dc *gg.Context, text string, fromBottom bool, scale float64) {
	text = strings.ToUpper(strings.TrimSpace(text))
	if text == "" {
		return
	}

	width := float64(dc.Width())
	pad := captionPadding * scale
	lines := wrapLines(dc, text, width-2*pad)
	lineHeight := dc.FontHeight() * lineSpacing

	y := pad
	if fromBottom {
		y = float64(dc.Height()) - pad - lineHeight*float64(len(lines))
	}

	for i, line := range lines {
		drawOutlined(dc, line, width/2, y+lineHeight*float64(i), scale)
	}
}

// wrapLines word-wraps text and hard-breaks words wider than maxWidth.
func wrapLines(dc *gg.Context, text string, maxWidth float64) []string {
	var out []string
	for _, line := range dc.WordWrap(text, maxWidth) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for {
			if lw, _ := dc.MeasureString(line); lw <= maxWidth {
				break
			}
			cut := breakIndex(dc, line, maxWidth)
			out = append(out, line[:cut])
			line = line[cut:]
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// breakIndex returns the longest rune-aligned prefix of s that fits maxWidth, at least one rune.
func breakIndex(dc *gg.Context, s string, maxWidth float64) int {
	cut := 0
	for i := range s {
		if i == 0 {
			continue
		}
		if lw, _ := dc.MeasureString(s[:i]); lw > maxWidth {
			break
		}
		cut = i
	}
	if cut == 0 {
		for i := range s {
			if i > 0 {
				return i
			}
		}
		return len(s)
	}
	return cut
}

// drawOutlined draws a drop shadow, a black outline and the white glyphs,
// with (x, y) the top center of the line.
func drawOutlined(dc *gg.Context, line string, x, y, scale float64) {
	radius := math.Max(1, math.Round(outlineRadius*scale))

	dc.SetRGBA(0, 0, 0, 0.85)
	dc.DrawStringAnchored(line, x, y+shadowOffset*scale, 0.5, 1)

	dc.SetRGB(0, 0, 0)
	for dx := -radius; dx <= radius; dx++ {
		for dy := -radius; dy <= radius; dy++ {
			if (dx != 0 || dy != 0) && dx*dx+dy*dy <= radius*radius {
				dc.DrawStringAnchored(line, x+dx, y+dy, 0.5, 1)
			}
		}
	}

	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(line, x, y, 0.5, 1)
}

func (r *Renderer) drawPlaceholder(dc *gg.Context, scale float64) {
	w, h := float64(dc.Width()), float64(dc.Height())

	dc.SetHexColor("#0f172a")
	dc.DrawRoundedRectangle(0, 0, w, h, 16*scale)
	dc.Fill()

	cx, cy := w/2, h/2
	dc.SetHexColor("#1e293b")
	dc.DrawCircle(cx, cy-40*scale, 48*scale)
	dc.Fill()

	size := float64(r.stageW) * placeholderRatio * scale
	dc.SetFontFace(truetype.NewFace(r.font, &truetype.Options{Size: size}))
	dc.SetHexColor("#c084fc")
	dc.DrawStringAnchored("+", cx, cy-40*scale, 0.5, 0.35)
	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(placeholderText, cx, cy+32*scale, 0.5, 0.5)
}
