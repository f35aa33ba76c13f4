package reconcile

import (
	"github.com/amaumene/chansync/internal/models"
	"github.com/amaumene/chansync/internal/utils"
)

// idMatches pairs a draft with a server item by upload or file id
func idMatches(draft, item models.ContentItem) bool {
	if draft.UploadID != "" && (draft.UploadID == item.UploadID || draft.UploadID == item.FileID) {
		return true
	}
	return draft.FileID != "" && draft.FileID == item.FileID
}

// metadataMatches compares title, description and price loosely. Two empty
// values match.
func metadataMatches(draft, item models.ContentItem) bool {
	return utils.EqualFold(draft.Title, item.Title) &&
		utils.EqualFold(draft.Description, item.Description) &&
		utils.NormalizePrice(draft.Price) == utils.NormalizePrice(item.Price)
}

// MatchesDraft reports whether item represents the same logical video as draft
func MatchesDraft(draft, item models.ContentItem) bool {
	return idMatches(draft, item) || metadataMatches(draft, item)
}

// MatchDraft finds the server item that best corresponds to the draft and
// returns its index, or -1. Priority:
// 1. Upload or file id
// 2. Normalized title, description and price
// 3. When the draft has no metadata at all, the newest item with a thumbnail
func MatchDraft(draft models.ContentItem, items []models.ContentItem) int {
	for i := range items {
		if idMatches(draft, items[i]) {
			return i
		}
	}

	for i := range items {
		if metadataMatches(draft, items[i]) {
			return i
		}
	}

	if draft.HasMetadata() {
		return -1
	}

	best := -1
	var bestKey sortKey
	for i := range items {
		if !items[i].HasThumbnail() {
			continue
		}
		key := keyOf(items[i])
		if best < 0 || key.before(bestKey) {
			best = i
			bestKey = key
		}
	}
	return best
}

// findReplacement returns the index of a ready server item that retires the
// draft, or -1
func findReplacement(draft models.ContentItem, items []models.ContentItem) int {
	for i := range items {
		if items[i].IsReady() && idMatches(draft, items[i]) {
			return i
		}
	}
	for i := range items {
		if items[i].IsReady() && metadataMatches(draft, items[i]) {
			return i
		}
	}
	return -1
}
