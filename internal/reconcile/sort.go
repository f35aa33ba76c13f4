package reconcile

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/amaumene/chansync/internal/models"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses the date formats the backend emits, including unix
// seconds and milliseconds
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		switch len(value) {
		case 10:
			return time.Unix(n, 0).UTC(), true
		case 13:
			return time.UnixMilli(n).UTC(), true
		default:
			return time.Time{}, false
		}
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SortDate returns the date an item sorts by: airdate when set, otherwise
// createdAt. An unparseable airdate leaves the item undated.
func SortDate(item models.ContentItem) (time.Time, bool) {
	if strings.TrimSpace(item.Airdate) != "" {
		return ParseDate(item.Airdate)
	}
	return ParseDate(item.CreatedAt)
}

// sortKey is the precomputed ordering key of an item
type sortKey struct {
	date     time.Time
	dated    bool
	fileName string
}

func keyOf(item models.ContentItem) sortKey {
	date, ok := SortDate(item)
	return sortKey{date: date, dated: ok, fileName: item.FileName}
}

// before reports whether k sorts ahead of other: newest first, dated before
// undated, undated pairs by file name descending
func (k sortKey) before(other sortKey) bool {
	if k.dated && other.dated {
		return k.date.After(other.date)
	}
	if k.dated != other.dated {
		return k.dated
	}
	return k.fileName > other.fileName
}

// SortItems orders items newest first. Dated items come before undated ones;
// two undated items fall back to file name descending.
func SortItems(items []models.ContentItem) {
	type keyed struct {
		item models.ContentItem
		key  sortKey
	}

	keyedItems := make([]keyed, len(items))
	for i, item := range items {
		keyedItems[i] = keyed{item: item, key: keyOf(item)}
	}

	sort.SliceStable(keyedItems, func(i, j int) bool {
		return keyedItems[i].key.before(keyedItems[j].key)
	})

	for i := range keyedItems {
		items[i] = keyedItems[i].item
	}
}
