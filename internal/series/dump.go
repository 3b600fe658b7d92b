package series

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
)

// Dump writes the charts as text. Point times are labelled the way the axis
// labels them.
func (o Output) Dump(w io.Writer) {
	fmt.Fprintf(w, "Window %s, %d points, ticks every %s\n", o.Window, o.Points, o.Bucketing.Interval())
	for _, c := range o.Charts {
		fmt.Fprintf(w, "\n%s\n", c.Title)
		if Points(c.Series) == 0 {
			fmt.Fprintf(w, "  (no data)\n")
			continue
		}
		for _, s := range c.Series {
			fmt.Fprintf(w, "  %s [%s]\n", s.Label, s.Color)
			for _, p := range s.Points {
				fmt.Fprintf(w, "    %-14s %s\n", o.Bucketing.Label(p.Time), humanize.FormatFloat("#,###.##", p.Value))
			}
		}
	}
}
