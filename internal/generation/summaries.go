package generation

import (
	"fmt"
	"strings"
	"time"

	"github.com/testsmith/testsmith/internal/types"
)

// MaxSummaries caps the number of proposals kept from one model response.
const MaxSummaries = 8

// AssignSummaryIDs gives every summary without an id a timestamp-derived one
// and suffixes duplicates so ids are unique within the slice.
func AssignSummaryIDs(summaries []types.Summary, now time.Time) []types.Summary {
	seen := make(map[string]struct{}, len(summaries))
	for i := range summaries {
		id := strings.TrimSpace(summaries[i].ID)
		if id == "" {
			id = fmt.Sprintf("test_%d_%d", now.UnixMilli(), i)
		}

		candidate := id
		for n := 2; ; n++ {
			if _, ok := seen[candidate]; !ok {
				break
			}
			candidate = fmt.Sprintf("%s_%d", id, n)
		}

		seen[candidate] = struct{}{}
		summaries[i].ID = candidate
	}

	return summaries
}

// NormalizeSummaries clamps model-proposed summaries onto the closed test type
// and priority sets, pins a framework for language and assigns ids.
func NormalizeSummaries(summaries []types.Summary, language string, now time.Time) []types.Summary {
	if len(summaries) > MaxSummaries {
		summaries = summaries[:MaxSummaries]
	}

	for i := range summaries {
		s := &summaries[i]
		if s.Title == "" {
			s.Title = fmt.Sprintf("Test case %d", i+1)
		}
		if !s.TestType.Valid() {
			s.TestType = types.TestTypeUnit
		}
		if !s.Priority.Valid() {
			s.Priority = types.PriorityMedium
		}
		s.Framework = ResolveFramework(language, s.Framework).String()
	}

	return AssignSummaryIDs(summaries, now)
}

// FallbackSummaries is the deterministic proposal for files when the model
// cannot be used. It always returns exactly three summaries.
func FallbackSummaries(files []types.FileSnapshot, now time.Time) []types.Summary {
	source := "the selected source"
	language := ""
	if len(files) > 0 {
		source = files[0].Path
		language = files[0].Language
	}
	framework := DefaultFramework(language).String()
	ms := now.UnixMilli()

	return []types.Summary{
		{
			ID:          fmt.Sprintf("fallback-unit-%d", ms),
			Title:       "Unit tests for " + source,
			Description: "Test individual functions and methods in isolation with representative inputs.",
			TestType:    types.TestTypeUnit,
			Framework:   framework,
			Priority:    types.PriorityHigh,
		},
		{
			ID:          fmt.Sprintf("fallback-integration-%d", ms),
			Title:       "Integration tests for " + source,
			Description: "Test how the module interacts with the components and modules it depends on.",
			TestType:    types.TestTypeIntegration,
			Framework:   framework,
			Priority:    types.PriorityMedium,
		},
		{
			ID:          fmt.Sprintf("fallback-edge-%d", ms),
			Title:       "Edge case and error handling tests for " + source,
			Description: "Test boundary values, invalid input and error paths.",
			TestType:    types.TestTypeUnit,
			Framework:   framework,
			Priority:    types.PriorityMedium,
		},
	}
}
