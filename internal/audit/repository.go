package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository reads audit_logs from PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// TimelineWindow returns up to limit rows matching the filters, newest first,
// skipping offset rows.
func (r *PGRepository) TimelineWindow(ctx context.Context, filters TimelineFilters, limit, offset int) ([]TimelineRow, error) {
	var clauses []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if !filters.From.IsZero() {
		add("occurred_at >= $%d", filters.From)
	}
	if !filters.To.IsZero() {
		add("occurred_at <= $%d", filters.To)
	}
	if filters.Entity != "" {
		add("entity = $%d", filters.Entity)
	}
	if filters.Actor != "" {
		add("actor_email = $%d", filters.Actor)
	}
	if filters.Op != "" {
		add("op = $%d", filters.Op)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	args = append(args, limit, offset)
	query := fmt.Sprintf(
		`SELECT entity, entity_id, op, changes, actor_id, actor_email, occurred_at
		 FROM audit_logs%s ORDER BY occurred_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []TimelineRow
	for rows.Next() {
		var row TimelineRow
		var changesJSON []byte
		if err := rows.Scan(&row.Entity, &row.EntityID, &row.Op, &changesJSON,
			&row.ActorID, &row.ActorEmail, &row.At); err != nil {
			return nil, err
		}
		if len(changesJSON) > 0 {
			_ = json.Unmarshal(changesJSON, &row.Changes)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// PurgeOlderThan deletes audit rows past the retention window and reports how
// many were removed.
func (r *PGRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM audit_logs WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
