package types

type RGB struct {
	R, G, B uint8
}

// Scale divides every channel by div.
func (c RGB) Scale(div uint8) RGB {
	if div == 0 {
		return c
	}
	return RGB{R: c.R / div, G: c.G / div, B: c.B / div}
}

var (
	Off       = RGB{}
	Blue      = RGB{0x00, 0x00, 0xFF}
	Green     = RGB{0x00, 0xFF, 0x00}
	Yellow    = RGB{0xFF, 0xFF, 0x00}
	Orange    = RGB{0xFF, 0x80, 0x00}
	Red       = RGB{0xFF, 0x00, 0x00}
	Magenta   = RGB{0xFF, 0x00, 0xFF}
	LightBlue = RGB{102, 178, 255}
	DimWhite  = RGB{0x77, 0x77, 0x77}
)
