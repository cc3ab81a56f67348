package metrics

import "sort"

// KindBucket is the failure count for one error kind.
type KindBucket struct {
	Kind  string
	Label string
	Count int64
}

// FlattenErrorKinds converts a kind->count map into rows sorted by
// descending count, then by kind for stability.
func FlattenErrorKinds(errs map[string]int64) []KindBucket {
	if len(errs) == 0 {
		return nil
	}
	rows := make([]KindBucket, 0, len(errs))
	for kind, count := range errs {
		rows = append(rows, KindBucket{Kind: kind, Label: FriendlyErrorName(kind), Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Kind < rows[j].Kind
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
