package persistence

import "strings"

// Scope limits report and listing queries to the rows a caller may see.
// An unrestricted scope sees everything; otherwise rows are limited to
// those owned by UserID.
type Scope struct {
	UserID       int64
	Unrestricted bool
}

// AllRows returns a scope that applies no ownership filter.
func AllRows() Scope {
	return Scope{Unrestricted: true}
}

// OwnedBy returns a scope limited to rows owned by userID.
func OwnedBy(userID int64) Scope {
	return Scope{UserID: userID}
}

// Clause returns an AND fragment restricting column to the scope's owner,
// using '?' placeholders. It returns an empty fragment for unrestricted scopes.
func (s Scope) Clause(column string) (string, []any) {
	if s.Unrestricted {
		return "", nil
	}
	return " AND " + column + " = ?", []any{s.UserID}
}

// Where accumulates AND conditions for dynamic queries.
type Where struct {
	parts []string
	args  []any
}

// Add appends a condition with its arguments. Empty conditions are ignored.
func (w *Where) Add(cond string, args ...any) {
	cond = strings.TrimSpace(cond)
	cond = strings.TrimPrefix(cond, "AND ")
	if cond == "" {
		return
	}
	w.parts = append(w.parts, cond)
	w.args = append(w.args, args...)
}

// Scope appends the ownership condition for scope on column.
func (w *Where) Scope(scope Scope, column string) {
	clause, args := scope.Clause(column)
	w.Add(clause, args...)
}

// SQL renders the accumulated conditions as a WHERE clause, or an empty
// string when there are none.
func (w *Where) SQL() string {
	if len(w.parts) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.parts, " AND ")
}

// Args returns the positional arguments in condition order.
func (w *Where) Args() []any {
	return w.args
}
