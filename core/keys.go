package core

// VectorKeyPrefix namespaces vector records inside the key-value store.
const VectorKeyPrefix = "vec:"

// vectorKey builds the storage key for a record ID. IDs are appended verbatim.
func vectorKey(id string) []byte {
	key := make([]byte, 0, len(VectorKeyPrefix)+len(id))
	key = append(key, VectorKeyPrefix...)
	return append(key, id...)
}

// PrefixUpperBound returns the smallest key that is greater than every key
// starting with prefix, for use as an exclusive scan bound. Trailing 0xff
// bytes are dropped before incrementing; a prefix made only of 0xff bytes
// (or an empty prefix) has no upper bound and nil is returned.
func PrefixUpperBound(prefix []byte) []byte {
	for i := len(prefix) - 1; i >= 0; i-- {
		if prefix[i] < 0xff {
			end := make([]byte, i+1)
			copy(end, prefix[:i+1])
			end[i]++
			return end
		}
	}
	return nil
}
