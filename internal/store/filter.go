package store

import "strings"

// TimeFilter narrows an operation to an inclusive timestamp range (seconds).
// Nil bounds are open ends.
type TimeFilter struct {
	StartTs *int64 `json:"startTs,omitempty"`
	EndTs   *int64 `json:"endTs,omitempty"`
}

// Predicate is one structurally composed WHERE condition with its bind
// arguments. Clauses are assembled from predicates instead of string surgery
// so filters compose without caring what came before them.
type Predicate struct {
	Expr string
	Args []any
}

// timePredicates builds range predicates for a timestamp column.
func timePredicates(f *TimeFilter, column string) []Predicate {
	if f == nil {
		return nil
	}
	var preds []Predicate
	if f.StartTs != nil {
		preds = append(preds, Predicate{Expr: column + " >= ?", Args: []any{*f.StartTs}})
	}
	if f.EndTs != nil {
		preds = append(preds, Predicate{Expr: column + " <= ?", Args: []any{*f.EndTs}})
	}
	return preds
}

// excludeSystem filters out system traffic: the reserved sender plus the
// system message type.
func excludeSystem(memberAlias, msgAlias string) []Predicate {
	return []Predicate{
		{Expr: memberAlias + ".name != ?", Args: []any{SystemSenderName}},
		{Expr: msgAlias + ".type != ?", Args: []any{int(MessageSystem)}},
	}
}

// textOnly keeps non-empty text messages, the input of content-based scans.
func textOnly(msgAlias string) []Predicate {
	return []Predicate{
		{Expr: msgAlias + ".type = ?", Args: []any{int(MessageText)}},
		{Expr: msgAlias + ".content IS NOT NULL"},
		{Expr: "TRIM(" + msgAlias + ".content) != ''"},
	}
}

// whereClause renders predicates into " WHERE ..." plus flattened args.
// No predicates renders to an empty clause.
func whereClause(preds []Predicate) (string, []any) {
	if len(preds) == 0 {
		return "", nil
	}
	exprs := make([]string, 0, len(preds))
	var args []any
	for _, p := range preds {
		exprs = append(exprs, p.Expr)
		args = append(args, p.Args...)
	}
	return " WHERE " + strings.Join(exprs, " AND "), args
}
