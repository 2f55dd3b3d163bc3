package export

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

var palette = []string{"#00ffcc", "#ff66cc", "#ffcc00", "#66aaff", "#ff4444", "#88ff44"}

// Line is one named column plotted against time.
type Line struct {
	Name   string
	Values []float64
}

// SeriesToSVG draws every line against the shared time axis on one chart,
// each in its own color with a legend entry.
func SeriesToSVG(w io.Writer, times []float64, lines []Line, width, height int) error {
	if len(times) < 2 {
		return errors.New("need at least two samples")
	}
	if len(lines) == 0 {
		return errors.New("no columns to plot")
	}

	minX, maxX := times[0], times[len(times)-1]
	minY, maxY := lines[0].Values[0], lines[0].Values[0]
	for _, l := range lines {
		if len(l.Values) != len(times) {
			return fmt.Errorf("column %s has %d samples, expected %d", l.Name, len(l.Values), len(times))
		}
		for _, v := range l.Values {
			minY = min(minY, v)
			maxY = max(maxY, v)
		}
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeY = maxY - minY

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)

	for i, l := range lines {
		color := palette[i%len(palette)]
		fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="M`, color)
		for j, v := range l.Values {
			x := (times[j] - minX) / rangeX * float64(width)
			y := float64(height) - (v-minY)/rangeY*float64(height)
			if j == 0 {
				fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
			} else {
				fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
			}
		}
		sb.WriteString("\"/>\n")
		fmt.Fprintf(&sb, `<text x="8" y="%d" fill="%s" font-family="monospace" font-size="12">%s</text>
`, 16+14*i, color, escape(l.Name))
	}

	sb.WriteString("</svg>\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

func escape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}
