package output

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/torosent/gn/internal/threshold"
)

// ColorMode controls colored output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// Colorer holds the colors used for pass/fail lines.
type Colorer struct {
	Red   *color.Color
	Green *color.Color
}

func NewColorer(when ColorMode) *Colorer {
	c := &Colorer{
		Red:   color.New(color.FgRed),
		Green: color.New(color.FgGreen),
	}
	for _, v := range []*color.Color{c.Red, c.Green} {
		switch when {
		case ColorAlways:
			v.EnableColor()
		case ColorNever:
			v.DisableColor()
		default:
			if color.NoColor { // NoColor is global and set dynamically
				v.DisableColor()
			} else {
				v.EnableColor()
			}
		}
	}
	return c
}

// PrintThresholdResults prints one line per threshold and a summary line.
func PrintThresholdResults(w io.Writer, results []threshold.Result, c *Colorer) {
	if len(results) == 0 {
		return
	}
	if c == nil {
		c = NewColorer(ColorNever)
	}
	fmt.Fprintln(w, "\nThresholds:")
	for _, r := range results {
		if r.Pass {
			c.Green.Fprintf(w, "  %s\n", r.Message)
		} else {
			c.Red.Fprintf(w, "  %s\n", r.Message)
		}
	}
	failed := len(threshold.Failed(results))
	if failed == 0 {
		c.Green.Fprintf(w, "All %d thresholds passed\n", len(results))
		return
	}
	c.Red.Fprintf(w, "%d of %d thresholds failed\n", failed, len(results))
}
