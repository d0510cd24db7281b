package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Normalize converts v into its JSON-decoded form (numbers become float64,
// times become RFC 3339 strings) so that rows and filter values compare alike.
func Normalize(v any) any {
	switch t := v.(type) {
	case nil, string, bool, float64:
		return t
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Sprint(v)
	}
	return out
}

// Matches reports whether row satisfies every filter. Stores that cannot
// push filters down to a server evaluate them with this function.
func Matches(row Row, filters []Filter) bool {
	for _, f := range filters {
		if !matchOne(Normalize(row[f.Field]), f) {
			return false
		}
	}
	return true
}

func matchOne(got any, f Filter) bool {
	switch f.Op {
	case OpEq:
		return compare(got, Normalize(f.Value)) == 0 && got != nil
	case OpNeq:
		return compare(got, Normalize(f.Value)) != 0
	case OpGte:
		return got != nil && compare(got, Normalize(f.Value)) >= 0
	case OpLte:
		return got != nil && compare(got, Normalize(f.Value)) <= 0
	case OpILike:
		s, ok := got.(string)
		return ok && strings.Contains(strings.ToLower(s), strings.ToLower(fmt.Sprint(f.Value)))
	case OpIn:
		vs, _ := f.Value.([]any)
		for _, v := range vs {
			if got != nil && compare(got, Normalize(v)) == 0 {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// compare orders two normalized values. nil sorts after everything; numbers
// compare numerically; strings that both parse as timestamps compare as time.
func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}

	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			}
			return 1
		}
	case string:
		if y, ok := b.(string); ok {
			tx, errX := time.Parse(time.RFC3339Nano, x)
			ty, errY := time.Parse(time.RFC3339Nano, y)
			if errX == nil && errY == nil {
				return tx.Compare(ty)
			}
			return strings.Compare(x, y)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// SortRows sorts rows in place by o. Rows missing the field sort last.
func SortRows(rows []Row, o *Order) {
	if o == nil {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := Normalize(rows[i][o.Field]), Normalize(rows[j][o.Field])
		if a == nil || b == nil {
			return a != nil
		}
		c := compare(a, b)
		if o.Descending {
			return c > 0
		}
		return c < 0
	})
}
