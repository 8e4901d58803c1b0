package core

import (
	"context"
	"strings"
)

// Transactor runs fn inside a database transaction. Repositories called with the
// ctx passed to fn join that transaction; an error returned by fn rolls it back.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// DBOrdering sorts a query by one field. Field is an API name until CleanOrdering
// maps it to a column.
type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	if ord.Ascending {
		return ord.Field + " ASC"
	}
	return ord.Field + " DESC"
}

// ParseOrdering reads a comma separated list of fields, each optionally
// prefixed with "-" for descending order: "-created_at,name".
func ParseOrdering(param string) []DBOrdering {
	var ordering []DBOrdering
	for _, field := range strings.Split(param, ",") {
		field = strings.TrimSpace(field)
		desc := strings.HasPrefix(field, "-")
		if field = strings.TrimPrefix(field, "-"); field == "" {
			continue
		}
		ordering = append(ordering, DBOrdering{Field: field, Ascending: !desc})
	}
	return ordering
}

// CleanOrdering keeps the orderings whose field is allowed, mapping API names to columns.
func CleanOrdering(ordering []DBOrdering, allowed map[string]string) []DBOrdering {
	cleaned := make([]DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		if col, ok := allowed[ord.Field]; ok {
			cleaned = append(cleaned, DBOrdering{Field: col, Ascending: ord.Ascending})
		}
	}
	return cleaned
}
