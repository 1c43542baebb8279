package compare

// DiffRows partitions the keys of two indexes. added holds the keys present
// only in after, in after order; removed holds the keys present only in
// before, in before order.
func DiffRows(before, after *Index) (added, removed []string) {
	added = make([]string, 0)
	removed = make([]string, 0)

	for _, key := range after.keys {
		if !before.Has(key) {
			added = append(added, key)
		}
	}
	for _, key := range before.keys {
		if !after.Has(key) {
			removed = append(removed, key)
		}
	}
	return added, removed
}

// CommonKeys returns the keys present in both indexes, in before order.
func CommonKeys(before, after *Index) []string {
	common := make([]string, 0, min(before.Len(), after.Len()))
	for _, key := range before.keys {
		if after.Has(key) {
			common = append(common, key)
		}
	}
	return common
}
