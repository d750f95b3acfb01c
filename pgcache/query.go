package pgcache

import "fmt"

// queries holds the two SQL strings a Policy compiles to: the full-reload
// statement and the incremental-delta statement. When a policy has no UpdatedField, delta equals full.
type queries struct {
	name  string
	full  string
	delta string
}

// composeQueries builds the full and delta query text for a policy. It is
// computed once per Cache, at construction time.
func composeQueries[T any, K comparable](p *Policy[T, K]) queries {
	base := p.queryText()
	where := p.whereTextOrEmpty()
	updated := p.updatedFieldNameOrEmpty()

	full := base
	if where != "" {
		full = fmt.Sprintf("%s where %s", base, where)
	}

	delta := full
	if updated != "" {
		if where != "" {
			delta = fmt.Sprintf("%s where (%s) and %s >= $1", base, where, updated)
		} else {
			delta = fmt.Sprintf("%s where %s >= $1", base, updated)
		}
	}

	return queries{name: p.Name, full: full, delta: delta}
}
