package memory

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/raphaelgruber/helix-go/internal/models"
)

// patternStopwords are query words too common to count as a topic.
var patternStopwords = map[string]struct{}{
	"what": {}, "this": {}, "that": {}, "with": {}, "from": {},
	"about": {}, "does": {}, "have": {}, "which": {}, "their": {},
	"between": {}, "would": {}, "could": {}, "show": {}, "tell": {},
}

// Patterns summarizes what a session has been asking about: recurring query
// topics, total query count, and how long the session has been active.
func (s *Store) Patterns(sessionID string) (models.LearningPatterns, error) {
	if err := validateSession(sessionID); err != nil {
		return models.LearningPatterns{}, err
	}

	items := s.session(sessionID)
	if len(items) == 0 {
		return models.LearningPatterns{
			SessionDuration: "N/A",
			Patterns:        []string{},
			Insights:        "No data available",
		}, nil
	}

	queries := make([]string, 0, len(items))
	for _, item := range items {
		if item.Content.Query != "" {
			queries = append(queries, item.Content.Query)
		}
	}

	duration := "N/A"
	if span := items[len(items)-1].CreatedAt.Sub(items[0].CreatedAt); span > 0 {
		duration = span.Round(time.Second).String()
	}

	return models.LearningPatterns{
		TotalQueries:    len(queries),
		SessionDuration: duration,
		Patterns:        queryPatterns(queries),
		Insights:        fmt.Sprintf("Session contains %d memory items.", len(items)),
	}, nil
}

// queryPatterns extracts words that recur across queries, most frequent
// first, capped at five.
func queryPatterns(queries []string) []string {
	counts := make(map[string]int)
	for _, query := range queries {
		seen := make(map[string]struct{})
		for _, word := range strings.Fields(strings.ToLower(query)) {
			word = strings.Trim(word, ".,;:!?()[]\"'")
			if len(word) <= 3 {
				continue
			}
			if _, stop := patternStopwords[word]; stop {
				continue
			}
			if _, dup := seen[word]; dup {
				continue
			}
			seen[word] = struct{}{}
			counts[word]++
		}
	}

	recurring := make([]string, 0, len(counts))
	for word, n := range counts {
		if n >= 2 {
			recurring = append(recurring, word)
		}
	}
	sort.Slice(recurring, func(i, j int) bool {
		if counts[recurring[i]] != counts[recurring[j]] {
			return counts[recurring[i]] > counts[recurring[j]]
		}
		return recurring[i] < recurring[j]
	})

	if len(recurring) > 5 {
		recurring = recurring[:5]
	}
	return recurring
}
