package provider

import (
	"strings"

	"github.com/hyperengineering/voyager/internal/types"
)

const (
	movieInstruction = "You're a taste based movie recommendation bot. Understand the user's taste from the list of favourite movies only (not the watch history) " +
		"and recommend one good movie based on those favourites. The recommended movie must not be part of the watch history. " +
		"Your output should only be the `name of the movie` and the `release year` on the next line, and only recommend one movie. " +
		"Example response : <Movie name>\n<Release year>"

	tvInstruction = "You're a taste based tv show recommendation bot. Understand the user's taste from the list of favourite tv shows only (not the watch history) " +
		"and recommend one tv show based on those favourites. The recommended tv show must not be part of the watch history. " +
		"Your output should only be the `name of the show` and the `first air year` on the next line, and only recommend one show. " +
		"Example response : <Tv show name>\n<First air year>"
)

// prompt is the provider-neutral content of one recommendation request.
type prompt struct {
	instruction string
	favourites  string
	history     string
}

func buildPrompt(kind types.MediaKind, favourites, history []string) prompt {
	p := prompt{
		instruction: movieInstruction,
		favourites:  "Favourite Movies : " + formatList(favourites),
		history:     "Watch history : " + formatList(history),
	}
	if kind == types.KindTV {
		p.instruction = tvInstruction
		p.favourites = "Favourite TV Shows : " + formatList(favourites)
	}
	return p
}

// userTurn joins both lists into a single message body.
func (p prompt) userTurn() string {
	return p.favourites + "\n" + p.history
}

// formatList renders items as [`a`, `b`], escaping backticks inside titles.
func formatList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('`')
		b.WriteString(strings.ReplaceAll(item, "`", "\\`"))
		b.WriteByte('`')
	}
	b.WriteByte(']')
	return b.String()
}
