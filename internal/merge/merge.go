// Package merge reconciles local and remote study snapshots.
//
// The rule is record-level last-writer-wins: the remote snapshot is the
// base and a local record replaces its remote counterpart only when its
// lastReview is strictly newer. Records are never combined field by
// field and never deleted.
package merge

import (
	"sort"

	"github.com/alexjbarnes/wordswipe-sync/internal/models"
)

// Studied merges two StudiedSets. Neither input is modified. Equal
// timestamps keep the remote record.
func Studied(local, remote models.StudiedSet) models.StudiedSet {
	merged := make(models.StudiedSet, len(remote)+len(local))
	for k, v := range remote {
		merged[k] = v
	}

	for k, l := range local {
		r, ok := merged[k]
		if !ok || l.LastReview() > r.LastReview() {
			merged[k] = l
		}
	}

	return merged
}

// Stats merges two StatsSets by day. A remote bucket replaces the local
// bucket for the same day; local-only days are kept.
func Stats(local, remote models.StatsSet) models.StatsSet {
	merged := make(models.StatsSet, len(remote)+len(local))
	for k, v := range local {
		merged[k] = v
	}

	for k, v := range remote {
		merged[k] = v
	}

	return merged
}

// Changes returns the sorted keys whose record differs between before
// and after, including keys present in only one of them.
func Changes(before, after models.StudiedSet) []string {
	var keys []string

	for k, a := range after {
		b, ok := before[k]
		if !ok || !b.Equal(a) {
			keys = append(keys, k)
		}
	}

	for k := range before {
		if _, ok := after[k]; !ok {
			keys = append(keys, k)
		}
	}

	sort.Strings(keys)

	return keys
}
