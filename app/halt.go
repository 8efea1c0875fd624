package app

import (
	"fmt"
	"image/color"
	"strings"
	"unicode/utf8"

	"framepipe/assets"
	"framepipe/hal"
	"framepipe/kernel"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
)

var (
	haltBackground = color.RGBA{R: 0x80, A: 0xFF}
	haltForeground = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
)

func (a *App) installHaltHandler() {
	a.halter = kernel.NewHalter(func(info kernel.HaltInfo) {
		a.log.Error("machine halted", "err", info.Err)
		if len(info.Stack) > 0 {
			for _, line := range strings.Split(string(info.Stack), "\n") {
				if line != "" {
					a.log.Debug(line)
				}
			}
		}
		if err := a.showHalt(info.Err); err != nil {
			a.log.Error("halt screen", "err", err)
		}
	})
}

// showHalt draws err into the displayed framebuffer and presents it
// immediately.
func (a *App) showHalt(err error) error {
	fb := a.swap.Buffer(a.swap.Active())
	mode := a.h.Video().Mode()
	d := &haltDisplay{fb: fb, w: mode.Width, h: mode.Height}

	d.fill(haltBackground)

	font := assets.Font
	fontHeight := int16(font.GetYAdvance())
	_, outboxWidth := tinyfont.LineWidth(font, "0")
	fontWidth := int16(outboxWidth)
	if fontWidth <= 0 || fontHeight <= 0 {
		return fmt.Errorf("halt screen: font has no metrics")
	}

	lines := []string{"framepipe halted:"}
	lines = append(lines, strings.Split(err.Error(), ": ")...)

	cols := int16(mode.Width) / fontWidth
	if cols <= 0 {
		cols = 1
	}
	y := int16(2)
	for _, line := range lines {
		for len(line) > 0 && y+fontHeight <= int16(mode.Height) {
			chunk, rest := takeRunes(line, cols)
			drawTextLine(d, font, fontWidth, fontHeight*3/4, 2, y, chunk, haltForeground)
			y += fontHeight
			line = strings.TrimLeft(rest, " ")
		}
	}

	if err := d.Display(); err != nil {
		return err
	}
	return a.h.Video().SwapBuffer(fb.Addr, hal.PresentImmediate)
}

func drawTextLine(
	d drivers.Displayer,
	font tinyfont.Fonter,
	fontWidth, fontOffset int16,
	x0, y0 int16,
	s string,
	fg color.RGBA,
) {
	drawX := x0
	for _, r := range s {
		tinyfont.DrawChar(d, font, drawX, y0+fontOffset, r, fg)
		drawX += fontWidth
	}
}

// haltDisplay draws through the CPU cache into a framebuffer region.
type haltDisplay struct {
	fb   hal.Region
	w, h int
}

func (d *haltDisplay) Size() (x, y int16) { return int16(d.w), int16(d.h) }

func (d *haltDisplay) SetPixel(x, y int16, c color.RGBA) {
	ix, iy := int(x), int(y)
	if ix < 0 || ix >= d.w || iy < 0 || iy >= d.h {
		return
	}
	d.fb.PutUint16(uint32((iy*d.w+ix)*2), assets.Pack(c))
}

// Display writes the drawn lines back so the video engine can see them.
func (d *haltDisplay) Display() error {
	d.fb.Writeback()
	return nil
}

func (d *haltDisplay) fill(c color.RGBA) {
	row := make([]byte, d.w*2)
	p := assets.Pack(c)
	for i := 0; i < len(row); i += 2 {
		row[i], row[i+1] = byte(p>>8), byte(p)
	}
	for y := 0; y < d.h; y++ {
		d.fb.Store(uint32(y*len(row)), row)
	}
}

func takeRunes(s string, n int16) (prefix, rest string) {
	if n <= 0 || s == "" {
		return "", s
	}
	if int64(len(s)) <= int64(n) {
		return s, ""
	}
	var i int
	var count int16
	for i < len(s) && count < n {
		_, size := utf8.DecodeRuneInString(s[i:])
		if size <= 0 {
			break
		}
		i += size
		count++
	}
	if i >= len(s) {
		return s, ""
	}
	return s[:i], s[i:]
}
