package status

import (
	"github.com/livefeeds/feedwatch/internal/catalog"
	"github.com/livefeeds/feedwatch/internal/output"
)

// ShouldUpdate decides whether an entity's outward-facing feed needs
// regenerating. Two distinct status codes that map to the same catalog
// comment carry the same public message, and regenerating the feed for them
// would only produce noise.
//
// No previous record for the entity means the feed has never been published,
// which always warrants an update.
func ShouldUpdate(previous *output.Document, id, code string, cat catalog.Catalog) bool {
	prev, ok := previous.Find(id)
	if !ok {
		return true
	}
	if prev.Status.Code == code {
		return false
	}

	prevComment, prevOK := cat.Comment(prev.Status.Code)
	currComment, currOK := cat.Comment(code)
	if !prevOK || !currOK {
		// A code outside the catalog cannot be compared by message;
		// regenerate rather than silently suppress.
		return true
	}
	return prevComment != currComment
}
