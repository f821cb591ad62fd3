package constants

import (
	"math"
	"testing"
	"time"
)

func TestDefaultValues(t *testing.T) {
	if DefaultPort != "8080" {
		t.Errorf("Expected DefaultPort to be '8080', got '%s'", DefaultPort)
	}

	if DefaultDBPath != "tuneforge.db" {
		t.Errorf("Expected DefaultDBPath to be 'tuneforge.db', got '%s'", DefaultDBPath)
	}

	if DefaultOllamaURL != "http://127.0.0.1:11434" {
		t.Errorf("Expected DefaultOllamaURL to be 'http://127.0.0.1:11434', got '%s'", DefaultOllamaURL)
	}
}

func TestSimilarityDefaults(t *testing.T) {
	if DefaultStatsTTL != 300*time.Second {
		t.Errorf("Expected DefaultStatsTTL to be 300s, got %v", DefaultStatsTTL)
	}
	if DefaultVectorCacheSize != 1000 {
		t.Errorf("Expected DefaultVectorCacheSize to be 1000, got %d", DefaultVectorCacheSize)
	}
	if VectorCacheEvictionBatch <= 0 || VectorCacheEvictionBatch > DefaultVectorCacheSize {
		t.Errorf("VectorCacheEvictionBatch out of range: %d", VectorCacheEvictionBatch)
	}
}

func TestDefaultThresholdIsRelativeToWeightedScale(t *testing.T) {
	// energy, valence, danceability, tempo, acousticness, instrumentalness, loudness, speechiness
	maxDistance := math.Sqrt(1.0 + 1.0 + 1.0 + 0.5 + 0.5 + 0.3 + 0.3 + 0.2)
	ratio := DefaultThreshold / maxDistance
	if math.Abs(ratio-0.35) > 0.001 {
		t.Errorf("Expected DefaultThreshold to be 0.35 of %f, got ratio %f", maxDistance, ratio)
	}
}

func TestProviders(t *testing.T) {
	for _, p := range []string{ProviderOllama, ProviderOpenAI} {
		if p == "" {
			t.Error("Provider constant should not be empty")
		}
	}
}

func TestIndexNames(t *testing.T) {
	names := map[string]bool{}
	for _, n := range []string{IndexTracksTitleArtist, IndexFeaturesTrackID, IndexTracksIDTitleArtist} {
		if names[n] {
			t.Errorf("Duplicate index name %s", n)
		}
		names[n] = true
	}
}

func TestHistoryDefaults(t *testing.T) {
	if MaxHistoryItems <= 0 || MaxHistoryItems > DefaultJobRetention {
		t.Errorf("MaxHistoryItems should be within job retention, got %d of %d", MaxHistoryItems, DefaultJobRetention)
	}
	if ProgressUpdateFreq <= 0 {
		t.Errorf("ProgressUpdateFreq must be positive, got %v", ProgressUpdateFreq)
	}
}
