package importmap

import "strings"

// ScopeKeys sorts scope prefixes from the most specific to the least.
type ScopeKeys []string

// Len implements the sort.Interface interface.
func (s ScopeKeys) Len() int {
	return len(s)
}

// Less implements the sort.Interface interface.
// sort by the number of slashes in the key
func (s ScopeKeys) Less(i, j int) bool {
	iLen := strings.Count(s[i], "/")
	jLen := strings.Count(s[j], "/")
	if iLen == jLen {
		return s[i] > s[j]
	}
	return iLen > jLen
}

// Swap implements the sort.Interface interface.
func (s ScopeKeys) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
}
