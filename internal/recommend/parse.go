package recommend

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperengineering/voyager/internal/types"
)

// candidate is a parsed provider answer.
type candidate struct {
	Name string
	Year int
}

var exoticSpaces = strings.NewReplacer(
	"\u202f", " ", // narrow no-break space
	"\u00a0", " ", // no-break space
)

// parseAnswer reads "<name>\n<year>". Lines after the second are ignored.
func parseAnswer(raw string) (candidate, error) {
	lines := strings.Split(exoticSpaces.Replace(raw), "\n")
	if len(lines) < 2 {
		return candidate{}, fmt.Errorf("%w: expected two lines, got %q", ErrMalformedRecommendation, raw)
	}

	name := strings.TrimSpace(lines[0])
	if name == "" {
		return candidate{}, fmt.Errorf("%w: empty title in %q", ErrMalformedRecommendation, raw)
	}
	year, err := strconv.Atoi(strings.TrimSpace(lines[1]))
	if err != nil {
		return candidate{}, fmt.Errorf("%w: year %q is not a number", ErrMalformedRecommendation, strings.TrimSpace(lines[1]))
	}
	return candidate{Name: name, Year: year}, nil
}

// projectItems renders items as "Title (Year)" prompt entries.
func projectItems(items []types.MediaItem) ([]string, error) {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item.Year == 0 {
			return nil, fmt.Errorf("%w: %q (id %s)", ErrMissingReleaseYear, item.Title, item.ID)
		}
		out = append(out, fmt.Sprintf("%s (%d)", item.Title, item.Year))
	}
	return out, nil
}

// seenInHistory reports whether the provider repeated a watched title.
func seenInHistory(c candidate, history []types.MediaItem) bool {
	for _, item := range history {
		if item.Year == c.Year && strings.EqualFold(strings.TrimSpace(item.Title), c.Name) {
			return true
		}
	}
	return false
}

// pickResult chooses between the top two search hits. The popularity swap only
// applies when the year filter had to be dropped and the runner-up's title is
// an exact case-insensitive match.
func pickResult(results []types.CatalogResult, name string, yearDropped bool) types.CatalogResult {
	if yearDropped && len(results) >= 2 &&
		results[1].Popularity > results[0].Popularity &&
		strings.EqualFold(strings.TrimSpace(results[1].Title), name) {
		return results[1]
	}
	return results[0]
}
