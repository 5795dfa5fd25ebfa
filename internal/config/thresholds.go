package config

// ThresholdConfig holds the quality thresholds that drive routing
// decisions in the classifier and the quality gate.
type ThresholdConfig struct {
	// MinRelevance is the default relevance score an article needs
	// to survive classification. Adaptive per-topic thresholds are
	// derived from this base.
	MinRelevance float64 `yaml:"min_relevance"`

	// MinConfidence is the default 5W1H extraction confidence an
	// article needs to be approved without review.
	MinConfidence int `yaml:"min_confidence"`

	// DuplicateSimilarity is the SimHash similarity above which two
	// fingerprints count as duplicates.
	DuplicateSimilarity float64 `yaml:"duplicate_similarity"`

	// ContentQuality is the minimum score for search-API results.
	ContentQuality float64 `yaml:"content_quality"`
}

func defaultThresholdConfig() ThresholdConfig {
	return ThresholdConfig{
		MinRelevance:        0.3,
		MinConfidence:       30,
		DuplicateSimilarity: 0.85,
		ContentQuality:      0.6,
	}
}

func (c *Config) applyThresholdEnv() {
	envFloat("MIN_RELEVANCE_SCORE", &c.Thresholds.MinRelevance)
	envInt("MIN_CONFIDENCE_SCORE", &c.Thresholds.MinConfidence)
	envFloat("DUPLICATE_SIMILARITY_THRESHOLD", &c.Thresholds.DuplicateSimilarity)
	envFloat("CONTENT_QUALITY_THRESHOLD", &c.Thresholds.ContentQuality)
}
