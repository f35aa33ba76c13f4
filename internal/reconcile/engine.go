// Package reconcile merges the local draft with fetched server pages into the
// single list a channel displays.
//
// Reconcile is pure: it never performs I/O and never fails. Running it twice
// with the same inputs, or feeding its output back in as the displayed list,
// yields the same list.
package reconcile

import (
	"strings"

	"bitbucket.org/creachadair/stringset"
	"github.com/amaumene/chansync/internal/models"
	"github.com/amaumene/chansync/internal/utils"
)

// Filter holds the viewer's list settings
type Filter struct {
	Mode       models.ChannelMode
	Visibility models.Visibility // only applied in aggregated mode
	OnlyMine   bool
	Viewer     string // username of the current viewer
}

// Input is everything one reconciliation pass needs
type Input struct {
	Draft     *models.ContentItem
	Fetched   []models.ContentItem
	Displayed []models.ContentItem
	Filter    Filter
}

// View is the derived, externally visible state
type View struct {
	// Items is the list to display
	Items []models.ContentItem `json:"items"`
	// Visible is the list after the visibility filter, before "only mine"
	Visible []models.ContentItem `json:"-"`
	// Own is the subset of Visible authored by the viewer
	Own []models.ContentItem `json:"own"`
}

// WithOnlyMine returns the view as it would look with the "only mine" toggle
// set, without recomputing anything
func (v View) WithOnlyMine(onlyMine bool) View {
	if onlyMine {
		v.Items = v.Own
	} else {
		v.Items = v.Visible
	}
	return v
}

// Result is the outcome of one reconciliation pass
type Result struct {
	View View
	// Draft is the draft that survived the pass, nil if there was none or it was retired
	Draft *models.ContentItem
	// Retired is the draft replaced by a processed server item. Its local file
	// must be deleted by the owner of the draft slot.
	Retired *models.ContentItem
	// Replacement is the server item that took over from Retired
	Replacement *models.ContentItem
	// Suppressed counts server videos hidden because they are still processing
	Suppressed int
}

// Reconcile runs one reconciliation pass
func Reconcile(in Input) Result {
	var result Result

	var draft *models.ContentItem
	if in.Draft != nil {
		d := *in.Draft
		draft = &d
	}

	// Hide half-processed server videos while a draft is showing, otherwise
	// the same video appears twice
	candidates := make([]models.ContentItem, 0, len(in.Fetched))
	for _, item := range in.Fetched {
		if draft != nil && item.IsVideo() && !item.IsReady() {
			result.Suppressed++
			continue
		}
		candidates = append(candidates, item)
	}

	// Retire the draft once its processed server counterpart shows up
	if draft != nil {
		if idx := findReplacement(*draft, candidates); idx >= 0 {
			replacement := candidates[idx]
			result.Retired = draft
			result.Replacement = &replacement
			draft = nil
		}
	}

	working := make([]models.ContentItem, 0, len(candidates)+1)
	if draft != nil {
		working = append(working, *draft)
	}
	working = append(working, candidates...)

	working = Dedupe(working)
	SortItems(working)

	visible := applyVisibility(working, in.Filter)
	own := OwnContent(visible, in.Filter.Viewer)

	previous := indexBySK(in.Displayed)
	visible = mergeAll(visible, previous)
	own = mergeAll(own, previous)

	result.View = View{Visible: visible, Own: own}.WithOnlyMine(in.Filter.OnlyMine)
	result.Draft = draft
	return result
}

// Dedupe drops every item whose SK was already seen; the first occurrence wins
func Dedupe(items []models.ContentItem) []models.ContentItem {
	seen := stringset.New()
	out := make([]models.ContentItem, 0, len(items))
	for _, item := range items {
		if seen.Contains(item.SK) {
			continue
		}
		seen.Add(item.SK)
		out = append(out, item)
	}
	return out
}

// MergeFirstPage folds a freshly fetched first page into the previously
// fetched items. The page is authoritative for the range it covers: an earlier
// item sorting at or after the page's oldest item survives only if the page
// still lists it. Older items came from pagination and are kept. A complete
// page, with no further pages, replaces previous entirely.
func MergeFirstPage(page, previous []models.ContentItem, complete bool) []models.ContentItem {
	if complete {
		return Dedupe(page)
	}
	if len(page) == 0 {
		return Dedupe(previous)
	}

	inPage := stringset.New()
	oldest := keyOf(page[0])
	for _, item := range page {
		inPage.Add(item.SK)
		if key := keyOf(item); oldest.before(key) {
			oldest = key
		}
	}

	merged := make([]models.ContentItem, 0, len(page)+len(previous))
	merged = append(merged, page...)
	for _, item := range previous {
		if inPage.Contains(item.SK) || !oldest.before(keyOf(item)) {
			continue
		}
		merged = append(merged, item)
	}
	return Dedupe(merged)
}

// Partition splits items into public and private buckets. Only an explicit
// private flag makes an item private; every item lands in exactly one bucket.
func Partition(items []models.ContentItem) (public, private []models.ContentItem) {
	public = make([]models.ContentItem, 0, len(items))
	private = make([]models.ContentItem, 0)
	for _, item := range items {
		if item.IsPrivate() {
			private = append(private, item)
		} else {
			public = append(public, item)
		}
	}
	return public, private
}

func applyVisibility(items []models.ContentItem, f Filter) []models.ContentItem {
	if f.Mode != models.ChannelModeAggregated {
		return items
	}
	public, private := Partition(items)
	switch f.Visibility {
	case models.VisibilityPublic:
		return public
	case models.VisibilityPrivate:
		return private
	default:
		return items
	}
}

// OwnContent returns the items authored by viewer
func OwnContent(items []models.ContentItem, viewer string) []models.ContentItem {
	own := make([]models.ContentItem, 0)
	if strings.TrimSpace(viewer) == "" {
		return own
	}
	for _, item := range items {
		if utils.EqualFold(item.CreatorUsername, viewer) {
			own = append(own, item)
		}
	}
	return own
}

func indexBySK(items []models.ContentItem) map[string]models.ContentItem {
	index := make(map[string]models.ContentItem, len(items))
	for _, item := range items {
		if _, ok := index[item.SK]; !ok {
			index[item.SK] = item
		}
	}
	return index
}

func mergeAll(items []models.ContentItem, previous map[string]models.ContentItem) []models.ContentItem {
	out := make([]models.ContentItem, len(items))
	for i, item := range items {
		if prev, ok := previous[item.SK]; ok {
			out[i] = Merge(prev, item)
		} else {
			out[i] = item
		}
	}
	return out
}

// Merge combines the previously displayed version of an item with its fresh
// version. Fresh values win; empty fresh values fall back to the previous ones,
// which keeps a just-edited title visible while the listing catches up.
func Merge(prev, fresh models.ContentItem) models.ContentItem {
	out := fresh

	if strings.TrimSpace(out.Title) == "" && strings.TrimSpace(prev.Title) != "" {
		out.Title = prev.Title
	}
	out.FileName = firstNonEmpty(fresh.FileName, prev.FileName)
	out.Description = firstNonEmpty(fresh.Description, prev.Description)
	out.Category = models.Category(firstNonEmpty(string(fresh.Category), string(prev.Category)))
	out.HLSURL = firstNonEmpty(fresh.HLSURL, prev.HLSURL)
	out.ThumbnailURL = firstNonEmpty(fresh.ThumbnailURL, prev.ThumbnailURL)
	out.CreatedAt = firstNonEmpty(fresh.CreatedAt, prev.CreatedAt)
	out.Airdate = firstNonEmpty(fresh.Airdate, prev.Airdate)
	out.CreatorUsername = firstNonEmpty(fresh.CreatorUsername, prev.CreatorUsername)
	out.FileID = firstNonEmpty(fresh.FileID, prev.FileID)
	out.UploadID = firstNonEmpty(fresh.UploadID, prev.UploadID)
	out.StreamKey = firstNonEmpty(fresh.StreamKey, prev.StreamKey)

	if out.Price == nil {
		out.Price = prev.Price
	}
	if out.IsVisible == nil {
		out.IsVisible = prev.IsVisible
	}
	if out.IsPrivateUsername == nil {
		out.IsPrivateUsername = prev.IsPrivateUsername
	}

	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
