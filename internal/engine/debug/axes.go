package debug

// AxesLines returns three lines from the origin along +X (red), +Y (green)
// and +Z (blue).
func AxesLines(length float32) []LineVertex {
	if length <= 0 {
		return nil
	}
	return []LineVertex{
		{R: 1}, {X: length, R: 1},
		{G: 1}, {Y: length, G: 1},
		{B: 1}, {Z: length, B: 1},
	}
}
