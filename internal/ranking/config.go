// Package ranking scores retrieved candidates on four independent signals
// and combines them into one rank score.
package ranking

import "github.com/cropsage/cropsage/internal/models"

// Config holds the signal weights for the hybrid ranker.
type Config struct {
	VectorWeight    float64
	KeywordWeight   float64
	AuthorityWeight float64
	MetadataWeight  float64
}

// DefaultConfig returns the production weights. They sum to 1 so the rank
// score stays in [0,1] as long as each component does.
func DefaultConfig() *Config {
	return &Config{
		VectorWeight:    0.55,
		KeywordWeight:   0.20,
		AuthorityWeight: 0.15,
		MetadataWeight:  0.10,
	}
}

// authorityByType is the fixed credibility weight per source category.
var authorityByType = map[models.SourceType]float64{
	models.SourceGovernment:          1.0,
	models.SourceUniversityExtension: 0.9,
	models.SourceResearchPaper:       0.85,
	models.SourceManufacturer:        0.6,
	models.SourceOther:               0.5,
	models.SourceRetailer:            0.4,
}

// Authority returns the credibility weight for a source type. Unknown types
// score like "other".
func Authority(st models.SourceType) float64 {
	if a, ok := authorityByType[st]; ok {
		return a
	}
	return authorityByType[models.SourceOther]
}
