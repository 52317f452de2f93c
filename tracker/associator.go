package tracker

import (
	"github.com/swdee/go-visionforge/detector"
	"github.com/swdee/go-visionforge/geometry"
	"gocv.io/x/gocv"
)

// AssociationStats summarises how a detection cycle was reconciled
type AssociationStats struct {
	// Continued is the number of detections matched to a previous track
	Continued int
	// Created is the number of new tracks started
	Created int
	// Skipped is the number of detections dropped for having no area
	// inside the frame
	Skipped int
}

// Associator links the detections of a new cycle to the tracks of the
// previous one.  A detection continues a previous track when it lies fully
// inside that track's expanded search region, otherwise a new track with a
// fresh identity is started
type Associator struct {
	ids       *IDGenerator
	trailSize int
}

// NewAssociator returns an Associator drawing new identities from ids.
// trailSize is the history length given to new tracks
func NewAssociator(ids *IDGenerator, trailSize int) *Associator {
	return &Associator{
		ids:       ids,
		trailSize: trailSize,
	}
}

// Associate builds the table for detection cycle number cycle.  frame is the
// image the detections were made on and is used to cut templates for new
// tracks.  prev may be nil; when given the caller must hold it with Acquire
// for the duration of the call.  The tracking loop may keep updating prev
// concurrently, each track is copied under its own lock.
//
// Previous tracks are tested in their table order and the first containing
// track wins.  Each previous track continues at most one detection so no two
// tracks of the new table share state
func (a *Associator) Associate(prev *Table, dets []detector.Detection,
	frame gocv.Mat, exp geometry.Expansion, cycle int64) (*Table, AssociationStats) {

	next := NewTable(cycle)
	stats := AssociationStats{}

	var candidates []*Track

	if prev != nil {
		candidates = prev.Tracks()
	}

	claimed := make(map[int64]bool, len(candidates))
	frameBox := geometry.NewBox(0, 0, frame.Cols(), frame.Rows())

	for _, det := range dets {

		if old := findContaining(candidates, claimed, det.Box, exp); old != nil {
			claimed[old.ID] = true

			box, tmpl := old.snapshot()

			next.insert(&Track{
				ID:         old.ID,
				Label:      det.Label,
				Confidence: det.Confidence,
				Box:        box,
				Detection:  det.Box,
				Template:   tmpl,
				Trail:      old.Trail,
			})

			stats.Continued++
			continue
		}

		crop := det.Box.Intersect(frameBox)

		if crop.Empty() {
			stats.Skipped++
			continue
		}

		region := frame.Region(crop.Rect())
		tmpl := region.Clone()
		region.Close()

		trail := NewTrail(a.trailSize)
		trail.Add(crop)

		next.insert(&Track{
			ID:         a.ids.Next(),
			Label:      det.Label,
			Confidence: det.Confidence,
			Box:        crop,
			Detection:  det.Box,
			Template:   tmpl,
			Trail:      trail,
		})

		stats.Created++
	}

	return next, stats
}

// findContaining returns the first unclaimed track whose expanded box fully
// contains box
func findContaining(tracks []*Track, claimed map[int64]bool, box geometry.Box,
	exp geometry.Expansion) *Track {

	for _, trk := range tracks {

		if claimed[trk.ID] {
			continue
		}

		if exp.Expand(trk.location()).Contains(box) {
			return trk
		}
	}

	return nil
}
