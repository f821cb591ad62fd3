// Package constants contains application-wide constants to avoid magic numbers and strings.
package constants

import "time"

// Application defaults
const (
	DefaultPort         = "8080"
	DefaultDBPath       = "tuneforge.db"
	DefaultConfigPath   = "tuneforge.yaml"
	DefaultOllamaURL    = "http://127.0.0.1:11434"
	DefaultOllamaModel  = "auto"
	DefaultOpenAIModel  = "gpt-4o-mini"
	DefaultHTTPTimeout  = 2 * time.Minute
	DefaultRetryCount   = 3
	DefaultRetryBase    = 1 * time.Second
	DefaultRequestGap   = 250 * time.Millisecond
	DefaultJobRetention = 50
)

// Suggestion providers
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	// ModelDetectRetry is how long a failed model auto detection is remembered.
	ModelDetectRetry = time.Minute
)

// Similarity engine
const (
	DefaultStatsTTL          = 300 * time.Second
	DefaultVectorCacheSize   = 1000
	VectorCacheEvictionBatch = 100
)

// Expansion jobs
const (
	// DefaultThreshold is 0.35 of the maximum weighted distance (sqrt(4.8) with default weights).
	DefaultThreshold          = 0.767
	DefaultMaxAttempts        = 10
	DefaultContextWindow      = 10
	DefaultSuggestionTimeout  = 90 * time.Second
	DefaultMaxConcurrentJobs  = 4
	DefaultCandidatesPerRound = 15
	MaxRejectedExamples       = 50
	ResolverCacheTTL          = 1 * time.Hour
)

// Circuit breaker
const (
	DefaultBreakerFailures = 5
	DefaultBreakerTimeout  = 60 * time.Second
)

// Database
const (
	TracksTable   = "tracks"
	FeaturesTable = "audio_features"
	JobsTable     = "expansion_jobs"
)

// Index names managed by EnsureIndexes
const (
	IndexTracksTitleArtist   = "sonic_tracks_title_artist"
	IndexFeaturesTrackID     = "sonic_audio_features_track_id"
	IndexTracksIDTitleArtist = "sonic_tracks_id_title_artist"
)

// History and progress
const (
	MaxHistoryItems    = 20
	ProgressUpdateFreq = 2 * time.Second // CLI progress lines
)
