package heatmap

import "sort"

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func indexOf(values []string, v string) int {
	i := sort.SearchStrings(values, v)
	if i < len(values) && values[i] == v {
		return i
	}
	return -1
}
