package postgres

import (
	"fmt"

	"github.com/alanyoungcy/web3dona/internal/domain"
)

// defaultListLimit caps list queries that do not ask for a limit.
const defaultListLimit = 50

// listQuery appends the created_at window, newest-first ordering and
// pagination of opts to base, which must end in a WHERE clause.
func listQuery(base string, opts domain.ListOpts) (string, []any) {
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	query := base
	if opts.Since != nil {
		query += " AND created_at >= " + next(*opts.Since)
	}
	if opts.Until != nil {
		query += " AND created_at <= " + next(*opts.Until)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += " ORDER BY created_at DESC LIMIT " + next(limit)
	if opts.Offset > 0 {
		query += " OFFSET " + next(opts.Offset)
	}
	return query, args
}
