package reference

import (
	"sort"

	"github.com/jonathan/listing-auditor/internal/types"
)

type groupKey struct {
	metro    string
	category string
}

// AssignPositions ranks records by PublishedName within each (Metro, Category) group
// and stores the 1-based rank as ExpectedPosition. Equal names keep their input order.
// Existing positions are overwritten.
func AssignPositions(records []types.ReferenceRecord) {
	groups := make(map[groupKey][]int)
	order := make([]groupKey, 0)
	for i, r := range records {
		key := groupKey{metro: r.Metro, category: r.Category}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	for _, key := range order {
		members := groups[key]
		sort.SliceStable(members, func(a, b int) bool {
			return records[members[a]].PublishedName < records[members[b]].PublishedName
		})
		for rank, idx := range members {
			records[idx].ExpectedPosition = types.IntPtr(rank + 1)
		}
	}
}
