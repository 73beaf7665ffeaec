package storage

// Scope is the partition guard every read and write is filtered through.
// Demo sessions see only demo-flagged rows; real sessions see only
// non-demo rows owned by (or shared with) their user. A row outside the
// scope behaves as if it does not exist.
type Scope struct {
	OwnerID string
	Demo    bool
}

// taskFilter returns the WHERE fragment and args restricting tasks to the
// scope. Real users also see tasks assigned to them.
func (sc Scope) taskFilter() (string, []any) {
	if sc.Demo {
		return "demo = 1", nil
	}
	return "demo = 0 AND (owner_id = ? OR assignee_id = ?)", []any{sc.OwnerID, sc.OwnerID}
}

// projectFilter is the project analogue; team membership grants access.
func (sc Scope) projectFilter() (string, []any) {
	if sc.Demo {
		return "demo = 1", nil
	}
	return "demo = 0 AND (owner_id = ? OR (',' || team_members || ',') LIKE ?)",
		[]any{sc.OwnerID, "%," + sc.OwnerID + ",%"}
}

// settingsFilter matches the singleton settings row for the scope.
func (sc Scope) settingsFilter() (string, []any) {
	if sc.Demo {
		return "demo = 1", nil
	}
	return "demo = 0 AND owner_id = ?", []any{sc.OwnerID}
}
