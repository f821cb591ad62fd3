package suggest

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/icewall905/tuneforge/internal/domain"
)

var (
	arrayPattern  = regexp.MustCompile(`(?s)\[\s*\{.*?\}\s*\]`)
	objectPattern = regexp.MustCompile(`(?s)\{[^{}]*\}`)
)

type rawCandidate struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album"`
}

func (r rawCandidate) candidate() (domain.Candidate, bool) {
	c := domain.Candidate{
		Title:  strings.TrimSpace(r.Title),
		Artist: strings.TrimSpace(r.Artist),
		Album:  strings.TrimSpace(r.Album),
	}
	return c, c.Title != "" && c.Artist != ""
}

// ParseCandidates pulls candidates out of model output. It looks for a JSON
// array of objects first and falls back to decoding objects one at a time.
// Entries without both title and artist are dropped.
func ParseCandidates(text string) ([]domain.Candidate, error) {
	if m := arrayPattern.FindString(text); m != "" {
		var raws []rawCandidate
		if err := json.Unmarshal([]byte(m), &raws); err == nil {
			if out := collect(raws); len(out) > 0 {
				return out, nil
			}
		}
	}

	var raws []rawCandidate
	for _, m := range objectPattern.FindAllString(text, -1) {
		var r rawCandidate
		if err := json.Unmarshal([]byte(m), &r); err != nil {
			continue
		}
		raws = append(raws, r)
	}
	if out := collect(raws); len(out) > 0 {
		return out, nil
	}
	return nil, ErrNoCandidates
}

func collect(raws []rawCandidate) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(raws))
	for _, r := range raws {
		if c, ok := r.candidate(); ok {
			out = append(out, c)
		}
	}
	return out
}
