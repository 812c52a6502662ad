package engine

// Count is the number of tasks a column holds, summed across subsections.
func Count(b *Bucket) int {
	if b == nil {
		return 0
	}
	switch b.Column.Kind() {
	case SubsectionedColumn:
		return len(b.Active) + len(b.Done)
	default:
		return len(b.Flat)
	}
}

// Exceeded reports whether a column holds more tasks than its limit. A
// column sitting exactly at its limit is full but not exceeded.
func Exceeded(b *Bucket) bool {
	if b == nil {
		return false
	}
	limit, ok := b.Column.Limit()
	if !ok {
		return false
	}
	return Count(b) > limit
}

// AtCapacity reports whether one more task would put the column over its
// limit. This is the check that gates entry into a column.
func AtCapacity(b *Bucket) bool {
	if b == nil {
		return false
	}
	limit, ok := b.Column.Limit()
	if !ok {
		return false
	}
	return Count(b) >= limit
}
