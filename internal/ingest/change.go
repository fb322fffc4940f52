package ingest

import "sort"

// ChangeSet is the exact difference between two document id sets.
type ChangeSet struct {
	Added    []string `json:"added"`
	Deleted  []string `json:"deleted"`
	Existing []string `json:"existing"`
}

// DetectChanges computes the set difference between the ids stored at the
// last sync and the ids the source currently reports. Results are sorted
// for deterministic output.
func DetectChanges(stored, current []string) ChangeSet {
	storedSet := make(map[string]bool, len(stored))
	for _, id := range stored {
		storedSet[id] = true
	}
	currentSet := make(map[string]bool, len(current))
	for _, id := range current {
		currentSet[id] = true
	}

	var changes ChangeSet
	for id := range currentSet {
		if storedSet[id] {
			changes.Existing = append(changes.Existing, id)
		} else {
			changes.Added = append(changes.Added, id)
		}
	}
	for id := range storedSet {
		if !currentSet[id] {
			changes.Deleted = append(changes.Deleted, id)
		}
	}

	sort.Strings(changes.Added)
	sort.Strings(changes.Deleted)
	sort.Strings(changes.Existing)
	return changes
}
