package series

// Palette is a fixed list of series colours. Sensors beyond its length reuse
// colours cyclically.
type Palette []string

var DefaultPalette = Palette{
	"#4CAF50",
	"#2196F3",
	"#FFC107",
	"#E91E63",
	"#9C27B0",
	"#00BCD4",
	"#FF5722",
	"#607D8B",
}

// Color returns the colour for the i-th encountered sensor.
func (p Palette) Color(i int) string {
	if len(p) == 0 {
		p = DefaultPalette
	}
	return p[i%len(p)]
}

// fill is the translucent variant used for point backgrounds.
func fill(color string) string {
	return color + "40"
}
