package utils

import (
	"path"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	// Upload keys are prefixed with a unix timestamp (seconds or millis) or a uuid
	uploadPrefixRegex = regexp.MustCompile(`^(\d{10,13}[-_ ]+|[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}[-_ ]*)`)
	separatorRegex    = regexp.MustCompile(`[_\-.+]+`)
)

// CleanTitle turns a stored file name into something fit for display.
// File names are never shown to end users as-is.
func CleanTitle(fileName string) string {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" {
		return "Untitled"
	}
	name = strings.TrimSuffix(name, path.Ext(name))

	for {
		trimmed := uploadPrefixRegex.ReplaceAllString(name, "")
		if trimmed == name {
			break
		}
		name = trimmed
	}

	name = separatorRegex.ReplaceAllString(name, " ")
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return "Untitled"
	}

	// Casers are stateful, one per call
	return cases.Title(language.Und).String(name)
}

// Normalize folds case and collapses whitespace so user-entered metadata can
// be compared loosely.
func Normalize(s string) string {
	folded := cases.Fold().String(norm.NFC.String(s))
	return strings.Join(strings.Fields(folded), " ")
}

// EqualFold compares two strings after Normalize.
func EqualFold(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// NormalizePrice renders an optional price for comparison. Absent and zero
// prices compare equal.
func NormalizePrice(price *float64) string {
	if price == nil || *price == 0 {
		return ""
	}
	return strconv.FormatFloat(*price, 'f', 2, 64)
}
