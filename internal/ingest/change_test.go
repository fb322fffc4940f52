package ingest

import (
	"reflect"
	"testing"
)

func TestDetectChanges_SetDifference(t *testing.T) {
	stored := []string{"a", "b", "c"}
	current := []string{"b", "c", "d", "e"}

	changes := DetectChanges(stored, current)

	if !reflect.DeepEqual(changes.Added, []string{"d", "e"}) {
		t.Errorf("expected added [d e], got %v", changes.Added)
	}
	if !reflect.DeepEqual(changes.Deleted, []string{"a"}) {
		t.Errorf("expected deleted [a], got %v", changes.Deleted)
	}
	if !reflect.DeepEqual(changes.Existing, []string{"b", "c"}) {
		t.Errorf("expected existing [b c], got %v", changes.Existing)
	}
}

func TestDetectChanges_EmptyStored(t *testing.T) {
	changes := DetectChanges(nil, []string{"x", "y"})

	if !reflect.DeepEqual(changes.Added, []string{"x", "y"}) {
		t.Errorf("expected everything added, got %v", changes.Added)
	}
	if len(changes.Deleted) != 0 || len(changes.Existing) != 0 {
		t.Errorf("expected no deleted or existing, got %v / %v", changes.Deleted, changes.Existing)
	}
}

func TestDetectChanges_EmptyCurrent(t *testing.T) {
	changes := DetectChanges([]string{"x", "y"}, nil)

	if !reflect.DeepEqual(changes.Deleted, []string{"x", "y"}) {
		t.Errorf("expected everything deleted, got %v", changes.Deleted)
	}
	if len(changes.Added) != 0 || len(changes.Existing) != 0 {
		t.Errorf("expected no added or existing, got %v / %v", changes.Added, changes.Existing)
	}
}

func TestDetectChanges_SortsOutput(t *testing.T) {
	changes := DetectChanges([]string{"z", "m"}, []string{"m", "c", "a"})

	if !reflect.DeepEqual(changes.Added, []string{"a", "c"}) {
		t.Errorf("expected sorted added [a c], got %v", changes.Added)
	}
	if !reflect.DeepEqual(changes.Deleted, []string{"z"}) {
		t.Errorf("expected deleted [z], got %v", changes.Deleted)
	}
	if !reflect.DeepEqual(changes.Existing, []string{"m"}) {
		t.Errorf("expected existing [m], got %v", changes.Existing)
	}
}

func TestDetectChanges_DuplicateIDsCollapse(t *testing.T) {
	changes := DetectChanges([]string{"a", "a"}, []string{"a", "b", "b"})

	if !reflect.DeepEqual(changes.Added, []string{"b"}) {
		t.Errorf("expected added [b], got %v", changes.Added)
	}
	if !reflect.DeepEqual(changes.Existing, []string{"a"}) {
		t.Errorf("expected existing [a], got %v", changes.Existing)
	}
}
