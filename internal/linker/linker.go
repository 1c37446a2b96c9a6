// Package linker associates an image observation with the text passage it
// most plausibly supports, for citation purposes.
package linker

import (
	"math"
	"strings"

	"github.com/cropsage/cropsage/internal/models"
)

// Component weights. Position proximity alone never creates a link: a
// candidate with zero tag overlap always scores 0.
const (
	tagWeight      = 0.7
	positionWeight = 0.3
	positionWindow = 10.0
)

// Link is the outcome of linking one image observation. LinkedChunkID is
// empty when no candidate shares any tag with the image.
type Link struct {
	ImageID       string  `json:"image_id"`
	LinkedChunkID string  `json:"linked_chunk_id,omitempty"`
	Score         float64 `json:"score"`
}

// LinkImage scores every candidate against the image's caption-derived tags
// and picks the single best. Deterministic: ties keep the earlier candidate.
func LinkImage(img *models.ImageObservation, candidates []*models.RankedCandidate) *Link {
	link := &Link{ImageID: img.ID}

	best := -1.0
	for _, c := range candidates {
		score := scoreCandidate(img, c)
		if score > best {
			best = score
			if score > 0 {
				link.LinkedChunkID = c.ChunkID
				link.Score = score
			}
		}
	}
	return link
}

// LinkImages links each image observation independently.
func LinkImages(images []*models.ImageObservation, candidates []*models.RankedCandidate) []*Link {
	links := make([]*Link, len(images))
	for i, img := range images {
		links[i] = LinkImage(img, candidates)
	}
	return links
}

func scoreCandidate(img *models.ImageObservation, c *models.RankedCandidate) float64 {
	overlap := tagOverlap(img.Tags, candidateTags(c))
	if overlap == 0 {
		return 0
	}
	score := tagWeight * overlap
	if img.Position != nil && c.Metadata != nil {
		delta := math.Abs(float64(*img.Position - c.Metadata.Position))
		score += positionWeight * math.Max(0, 1-delta/positionWindow)
	}
	return score
}

func candidateTags(c *models.RankedCandidate) []string {
	if c.Metadata == nil {
		return nil
	}
	return c.Metadata.Tags
}

// tagOverlap is the Jaccard similarity of the two lowercased tag sets.
func tagOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[strings.ToLower(t)] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[strings.ToLower(t)] = struct{}{}
	}
	intersection := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			intersection++
		}
	}
	if intersection == 0 {
		return 0
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}
