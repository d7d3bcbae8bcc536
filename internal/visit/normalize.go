package visit

import "strings"

// Normalize lowercases s and collapses runs of whitespace to single spaces,
// trimming both ends. Search queries and the fields they match go through it.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
