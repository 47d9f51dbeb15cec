package engine

import (
	"fmt"

	"patchbay"
)

type (
	// UndoableAction is one reversible edit of the session.
	UndoableAction interface {
		Undo() error
		Redo() error
		fmt.Stringer
	}

	// UndoManager receives completed actions. The engine only produces
	// actions; stack policy belongs to the application.
	UndoManager interface {
		Perform(a UndoableAction)
	}

	// RecordAction covers one recording pass as a single undoable step: every
	// region created between the first start and the last stop, across
	// tracks and automation lanes.
	RecordAction struct {
		tracks  []*Track
		regions []*patchbay.Region
	}
)

func (a *RecordAction) add(t *Track, r *patchbay.Region) {
	a.tracks = append(a.tracks, t)
	a.regions = append(a.regions, r)
}

// Regions returns the regions this pass created.
func (a *RecordAction) Regions() []*patchbay.Region { return a.regions }

func (a *RecordAction) Undo() error {
	for i, r := range a.regions {
		if !a.tracks[i].RemoveRegion(r.ID) {
			return fmt.Errorf("region %+v no longer on track %q", r.ID, a.tracks[i].Name)
		}
	}
	return nil
}

func (a *RecordAction) Redo() error {
	for i, r := range a.regions {
		a.tracks[i].AddRegion(r)
	}
	return nil
}

func (a *RecordAction) String() string {
	if len(a.regions) == 1 {
		return "record 1 region"
	}
	return fmt.Sprintf("record %d regions", len(a.regions))
}
