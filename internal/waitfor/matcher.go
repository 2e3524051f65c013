package waitfor

import "strings"

// Matches reports whether every part appears somewhere in buffer.
// Matching is plain case-sensitive substring containment; the order of
// the parts and their order of appearance in buffer are irrelevant,
// and parts may overlap in the text they match. An empty part list
// matches any buffer, including an empty one.
func Matches(buffer string, parts []string) bool {
	for _, part := range parts {
		if !strings.Contains(buffer, part) {
			return false
		}
	}
	return true
}
