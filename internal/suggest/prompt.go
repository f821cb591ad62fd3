package suggest

import (
	"fmt"
	"strings"

	"github.com/icewall905/tuneforge/internal/domain"
)

// Rejection is a candidate that was turned down in an earlier round.
type Rejection struct {
	Candidate domain.Candidate
	Reason    string
}

// PromptInput is everything a round knows when asking for more tracks.
type PromptInput struct {
	Seed       domain.Track
	SeedVector domain.Vector
	RandomSeed string
	Hint       string
	Accepted   []domain.Candidate
	Rejected   []Rejection
	Exclude    []domain.Candidate
	Needed     int
	Window     int
}

// BuildPrompt writes the round prompt. The accepted and rejected lists are
// cut to the most recent Window entries; the exclusion list is complete.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a music expert helping build a playlist of songs that sound like %q by %s.\n",
		in.Seed.Title, in.Seed.Artist)
	if in.Seed.Album != "" {
		fmt.Fprintf(&b, "The seed track is from the album %q.\n", in.Seed.Album)
	}
	if in.Seed.Genre.Valid && in.Seed.Genre.String != "" {
		fmt.Fprintf(&b, "Genre: %s.\n", in.Seed.Genre.String)
	}

	b.WriteString("Its sound profile (0 = low, 1 = high): ")
	for i, f := range domain.Features() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %.2f", f, in.SeedVector[f])
	}
	b.WriteString(".\n")

	if in.Hint != "" {
		fmt.Fprintf(&b, "Listener preferences: %s.\n", in.Hint)
	}
	fmt.Fprintf(&b, "Variation token: %s. Use it to vary your picks between requests.\n", in.RandomSeed)

	if accepted := tail(in.Accepted, in.Window); len(accepted) > 0 {
		b.WriteString("\nThese tracks were a good sonic match, suggest more like them:\n")
		for _, c := range accepted {
			fmt.Fprintf(&b, "- %s\n", c.Display())
		}
	}

	if rejected := tail(in.Rejected, in.Window); len(rejected) > 0 {
		b.WriteString("\nThese tracks did not work, avoid similar picks:\n")
		for _, r := range rejected {
			fmt.Fprintf(&b, "- %s (%s)\n", r.Candidate.Display(), r.Reason)
		}
	}

	if len(in.Exclude) > 0 {
		b.WriteString("\nDo not suggest any of these again:\n")
		for _, c := range in.Exclude {
			fmt.Fprintf(&b, "- %s\n", c.Display())
		}
	}

	needed := max(in.Needed, 1)
	fmt.Fprintf(&b, "\nSuggest %d different tracks. Respond only with a JSON array of objects with "+
		`"title", "artist" and "album" keys, for example [{"title": "Song", "artist": "Artist", "album": "Album"}]. `+
		"No other text.\n", needed)

	return b.String()
}

func tail[T any](items []T, n int) []T {
	if n <= 0 || len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}
