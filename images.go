package studio

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	cardWidth   = 1200
	cardHeight  = 630
	jpegQuality = 80

	// The card is drawn at a third of its size with the 7x13 bitmap face and
	// scaled up, which keeps the glyphs legible in link previews.
	cardScale    = 3
	cardMargin   = 16
	lineHeight   = 16
	cardColumns  = 52
	maxCardLines = 9
)

var (
	cardBackground = color.RGBA{0x11, 0x18, 0x27, 0xff}
	cardAccent     = color.RGBA{0x63, 0x66, 0xf1, 0xff}
	cardText       = color.RGBA{0xf9, 0xfa, 0xfb, 0xff}
	cardMuted      = color.RGBA{0x9c, 0xa3, 0xaf, 0xff}
)

// renderShareCard draws the OpenGraph preview image of a shared post and
// encodes it as JPEG.
func renderShareCard(sh Share) ([]byte, error) {
	w, h := cardWidth/cardScale, cardHeight/cardScale
	small := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(small, small.Bounds(), image.NewUniform(cardBackground), image.Point{}, draw.Src)
	draw.Draw(small, image.Rect(0, 0, 4, h), image.NewUniform(cardAccent), image.Point{}, draw.Src)

	d := &font.Drawer{Dst: small, Face: basicfont.Face7x13}
	y := cardMargin + 10
	drawLine(d, cardMuted, cardMargin, y, strings.ToUpper(sh.Platform.Name())+" - TONEMATCH")
	y += lineHeight + 6

	for _, line := range wrapLines(sh.Text, cardColumns, maxCardLines) {
		drawLine(d, cardText, cardMargin, y, line)
		y += lineHeight
	}
	if sh.Tone != "" {
		drawLine(d, cardMuted, cardMargin, h-cardMargin, "Tone: "+truncateRunes(sh.Tone, cardColumns-6))
	}

	img := image.NewRGBA(image.Rect(0, 0, cardWidth, cardHeight))
	draw.NearestNeighbor.Scale(img, img.Bounds(), small, small.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func drawLine(d *font.Drawer, c color.Color, x, y int, s string) {
	d.Src = image.NewUniform(c)
	d.Dot = fixed.P(x, y)
	d.DrawString(s)
}

// wrapLines breaks s into at most maxLines lines of at most width runes,
// splitting on spaces where possible. Text that does not fit ends with "...".
// The bitmap face only covers ASCII, so the marker is spelled out.
func wrapLines(s string, width, maxLines int) []string {
	var lines []string
	var cur []rune
	flush := func() {
		lines = append(lines, strings.TrimSpace(string(cur)))
		cur = cur[:0]
	}
	for _, para := range strings.Split(s, "\n") {
		for _, word := range strings.Fields(para) {
			r := []rune(word)
			for len(r) > width {
				if len(cur) > 0 {
					flush()
				}
				lines = append(lines, string(r[:width]))
				r = r[width:]
			}
			if len(cur) > 0 && len(cur)+1+len(r) > width {
				flush()
			}
			if len(cur) > 0 {
				cur = append(cur, ' ')
			}
			cur = append(cur, r...)
		}
		if len(cur) > 0 {
			flush()
		}
	}
	if len(lines) > maxLines {
		lines = lines[:maxLines]
		last := []rune(lines[maxLines-1])
		if len(last) > width-3 {
			last = last[:width-3]
		}
		lines[maxLines-1] = string(last) + "..."
	}
	return lines
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
