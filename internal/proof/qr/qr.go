// Package qr renders invitation URLs as SVG QR codes.
package qr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"
)

const (
	// moduleSize is the edge length of one QR module in SVG user units.
	moduleSize = 8
	// quietZone is the border, in modules, left blank around the symbol.
	quietZone = 4
)

// ErrEmptyContent is returned when asked to encode an empty string.
var ErrEmptyContent = errors.New("qr: empty content")

// RenderSVG encodes content at medium error correction and returns
// black-on-white SVG markup. Identical input yields byte-identical output.
func RenderSVG(content string) (string, error) {
	if content == "" {
		return "", ErrEmptyContent
	}
	code, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("qr: encode: %w", err)
	}
	code.DisableBorder = true
	return bitmapToSVG(code.Bitmap()), nil
}

func bitmapToSVG(bitmap [][]bool) string {
	modules := len(bitmap)
	size := (modules + 2*quietZone) * moduleSize

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" shape-rendering="crispEdges">`,
		size, size, size, size)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="#ffffff"/>`, size, size)
	b.WriteString(`<path fill="#000000" d="`)
	for y, row := range bitmap {
		for x, dark := range row {
			if !dark {
				continue
			}
			fmt.Fprintf(&b, "M%d %dh%dv%dh-%dz",
				(x+quietZone)*moduleSize, (y+quietZone)*moduleSize,
				moduleSize, moduleSize, moduleSize)
		}
	}
	b.WriteString(`"/></svg>`)
	return b.String()
}
