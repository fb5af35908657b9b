package depthlayout

// TotalExtent returns the pixel height of the scrolling surface needed
// to show everything down to the deepest anchor, never less than the
// configured minimum.
func TotalExtent(maxAnchorDepth int, cfg Config) float64 {
	extent := (float64(maxAnchorDepth) + cfg.BottomPaddingDepth) * cfg.PixelsPerDepthUnit
	if extent < cfg.MinimumExtent {
		return cfg.MinimumExtent
	}
	return extent
}

// TickMarks returns the depth-axis labels: every multiple of interval
// from the surface down to the first multiple at or past the deepest
// anchor. The surface tick 0 is always present.
func TickMarks(maxAnchorDepth, interval int) []int {
	if interval < 1 {
		return []int{0}
	}
	if maxAnchorDepth < 0 {
		maxAnchorDepth = 0
	}
	last := (maxAnchorDepth + interval - 1) / interval * interval
	ticks := make([]int, 0, last/interval+1)
	for d := 0; d <= last; d += interval {
		ticks = append(ticks, d)
	}
	return ticks
}
