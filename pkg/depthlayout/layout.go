// Package depthlayout computes marker positions for species on a
// vertical ocean column. Species are anchored at the midpoint of their
// habitat depth range, grouped into depth buckets, and spread across
// lanes and rows inside each bucket so markers never overlap.
package depthlayout

import (
	"math"
	"sort"
)

// Record is one species as seen by the layout engine. Depths are
// metres below the surface; a record missing either bound is skipped
// during placement.
type Record struct {
	ID       int64
	MinDepth *float64
	MaxDepth *float64
}

// Config holds the layout constants for one pass. Callers construct a
// Config and pass it in; the engine never reads process-wide state.
type Config struct {
	PixelsPerDepthUnit float64
	TopPadding         float64
	BottomPaddingDepth float64
	MinimumExtent      float64
	LaneCount          int
	LaneWidth          float64
	LeftMargin         float64
	BucketSize         int
	RowGap             float64
	TickInterval       int
}

// Marker is a positioned species marker. Top and Left are pixel
// offsets from the surface origin.
type Marker struct {
	ID          int64
	AnchorDepth int
	BucketKey   int
	Lane        int
	Row         int
	Top         float64
	Left        float64
}

// AssignPositions places every record carrying both depth bounds and
// returns the markers ordered by bucket, then by in-bucket slot, plus
// the deepest anchor depth (0 when nothing is placeable).
//
// Placement is deterministic: the same records and config always
// produce the same markers in the same order. Within a bucket the
// i-th item takes lane i mod LaneCount and row i / LaneCount, so a
// bucket holding more items than lanes grows downward in rows rather
// than sideways.
func AssignPositions(records []Record, cfg Config) ([]Marker, int) {
	laneCount := cfg.LaneCount
	if laneCount < 1 {
		laneCount = 1
	}
	bucketSize := cfg.BucketSize
	if bucketSize < 1 {
		bucketSize = 1
	}

	type anchored struct {
		id     int64
		anchor int
	}
	retained := make([]anchored, 0, len(records))
	for _, r := range records {
		if r.MinDepth == nil || r.MaxDepth == nil {
			continue
		}
		mid := int(math.Floor((*r.MinDepth + *r.MaxDepth) / 2))
		retained = append(retained, anchored{id: r.ID, anchor: mid})
	}
	if len(retained) == 0 {
		return nil, 0
	}

	// Ties keep input order so repeated passes never reshuffle.
	sort.SliceStable(retained, func(i, j int) bool {
		return retained[i].anchor < retained[j].anchor
	})
	maxAnchor := retained[len(retained)-1].anchor

	// Bucket keys are non-decreasing along the anchor-sorted slice, so
	// one pass visits each bucket contiguously and in ascending order.
	markers := make([]Marker, 0, len(retained))
	slot := 0
	prevKey := 0
	for i, item := range retained {
		key := bucketKey(item.anchor, bucketSize)
		if i == 0 || key != prevKey {
			slot = 0
			prevKey = key
		}
		lane := slot % laneCount
		row := slot / laneCount
		markers = append(markers, Marker{
			ID:          item.id,
			AnchorDepth: item.anchor,
			BucketKey:   key,
			Lane:        lane,
			Row:         row,
			Top:         cfg.TopPadding + float64(key)*cfg.PixelsPerDepthUnit + float64(row)*cfg.RowGap,
			Left:        cfg.LeftMargin + float64(lane)*cfg.LaneWidth,
		})
		slot++
	}
	return markers, maxAnchor
}

// bucketKey rounds an anchor depth to the nearest multiple of size.
// Anchors exactly halfway between buckets round away from zero, so a
// species sitting on the boundary lands in the deeper bucket.
func bucketKey(anchor, size int) int {
	return int(math.Round(float64(anchor)/float64(size))) * size
}
