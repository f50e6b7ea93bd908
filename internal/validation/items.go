package validation

import (
	"fmt"

	"github.com/hyperengineering/voyager/internal/types"
)

const (
	MaxTitleLength    = 500
	MaxOverviewLength = 5000
	MaxPosterLength   = 500
	MaxItemsPerWrite  = 100
	MinYear           = 1870
	MaxYear           = 2100
	MinKeywordLength  = 2
	MaxKeywordLength  = 200
)

// ValidateMediaItem checks one profile item. index is used in field names.
func ValidateMediaItem(index int, item types.MediaItem) []ValidationError {
	var c Collector
	prefix := fmt.Sprintf("items[%d]", index)

	c.Add(ValidateDigits(prefix+".id", item.ID))

	title := prefix + ".title"
	c.Add(ValidateRequired(title, item.Title))
	c.Add(ValidateUTF8(title, item.Title))
	c.Add(ValidateNoNullBytes(title, item.Title))
	c.Add(ValidateMaxLength(title, item.Title, MaxTitleLength))

	// The pipeline renders every item as "Title (Year)", so the year is required.
	c.Add(ValidateIntRange(prefix+".year", item.Year, MinYear, MaxYear))

	c.Add(ValidateUTF8(prefix+".overview", item.Overview))
	c.Add(ValidateMaxLength(prefix+".overview", item.Overview, MaxOverviewLength))
	c.Add(ValidateMaxLength(prefix+".poster", item.Poster, MaxPosterLength))

	return c.Errors()
}

// ValidateAddItemsRequest checks a profile write body.
func ValidateAddItemsRequest(req types.AddItemsRequest) []ValidationError {
	var c Collector

	if len(req.Items) == 0 {
		c.Add(&ValidationError{Field: "items", Message: "must contain at least one item"})
	}
	if len(req.Items) > MaxItemsPerWrite {
		c.Add(&ValidationError{Field: "items", Message: fmt.Sprintf("exceeds maximum of %d items", MaxItemsPerWrite)})
		return c.Errors()
	}

	for i, item := range req.Items {
		for _, e := range ValidateMediaItem(i, item) {
			c.Add(&e)
		}
	}
	return c.Errors()
}

// ValidateKeyword checks a catalog search keyword.
func ValidateKeyword(keyword string) []ValidationError {
	var c Collector
	c.Add(ValidateMinLength("keyword", keyword, MinKeywordLength))
	c.Add(ValidateMaxLength("keyword", keyword, MaxKeywordLength))
	c.Add(ValidateUTF8("keyword", keyword))
	return c.Errors()
}
