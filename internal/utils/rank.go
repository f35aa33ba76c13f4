package utils

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// RankUsernames orders search results by relevance to the query:
// 1. Prefix matches first
// 2. Smaller edit distance
// 3. Alphabetical
func RankUsernames(query string, usernames []string) []string {
	q := Normalize(query)
	ranked := make([]string, len(usernames))
	copy(ranked, usernames)

	type score struct {
		prefix   bool
		distance int
		key      string
	}
	scores := make(map[string]score, len(ranked))
	for _, name := range ranked {
		n := Normalize(name)
		scores[name] = score{
			prefix:   strings.HasPrefix(n, q),
			distance: levenshtein.ComputeDistance(q, n),
			key:      n,
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := scores[ranked[i]], scores[ranked[j]]
		if si.prefix != sj.prefix {
			return si.prefix
		}
		if si.distance != sj.distance {
			return si.distance < sj.distance
		}
		return si.key < sj.key
	})

	return ranked
}
