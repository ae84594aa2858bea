package domain

// MoveID relocates the element at oldIndex to newIndex and returns the
// resulting sequence. The input is never mutated; callers replace the old
// slice with the returned one. Out-of-range indices are clamped to the
// nearest valid position, and oldIndex == newIndex (after clamping) returns
// a plain copy, so repeated application with the same arguments is a no-op.
func MoveID(ids []string, oldIndex, newIndex int) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	if len(out) < 2 {
		return out
	}

	oldIndex = clampIndex(oldIndex, len(out))
	newIndex = clampIndex(newIndex, len(out))
	if oldIndex == newIndex {
		return out
	}

	moved := out[oldIndex]
	if oldIndex < newIndex {
		copy(out[oldIndex:], out[oldIndex+1:newIndex+1])
	} else {
		copy(out[newIndex+1:], out[newIndex:oldIndex])
	}
	out[newIndex] = moved
	return out
}

// IndexOf returns the position of id in ids, or -1 when absent.
func IndexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

// RemoveID returns ids without the first occurrence of id. The input is not
// mutated.
func RemoveID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v == id {
			continue
		}
		out = append(out, v)
	}
	return out
}

func clampIndex(i, length int) int {
	if i < 0 {
		return 0
	}
	if i >= length {
		return length - 1
	}
	return i
}
