package bugs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bugtrack/bugtrack/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const bugColumns = `id, title, description, steps_to_reproduce, classification,
	author_id, author_email, assigned_to_id, assigned_to_name,
	closed, closed_on, closed_by, created_at, updated_at`

// GetBug fetches a bug by ID.
func (r *Repository) GetBug(ctx context.Context, id uuid.UUID) (Bug, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+bugColumns+` FROM bugs WHERE id = $1`, id)
	bug, err := scanBug(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bug{}, shared.ErrNotFound
		}
		return Bug{}, err
	}
	return bug, nil
}

// ListBugs returns bugs matching the filters plus the unpaged total.
func (r *Repository) ListBugs(ctx context.Context, filters ListFilters, limit, offset int) ([]Bug, int, error) {
	where, args := buildFilters(filters)
	countQuery := `SELECT COUNT(*) FROM bugs` + where
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	listQuery := fmt.Sprintf(`SELECT `+bugColumns+` FROM bugs%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var bugsOut []Bug
	for rows.Next() {
		bug, err := scanBug(rows)
		if err != nil {
			return nil, 0, err
		}
		bugsOut = append(bugsOut, bug)
	}
	return bugsOut, total, rows.Err()
}

// InsertBug stores a new bug report.
func (r *Repository) InsertBug(ctx context.Context, bug Bug) (Bug, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO bugs (id, title, description, steps_to_reproduce, classification,
		                   author_id, author_email, closed, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, NOW(), NOW())
		 RETURNING `+bugColumns,
		bug.ID, bug.Title, bug.Description, bug.StepsToReproduce, bug.Classification,
		bug.AuthorID, bug.AuthorEmail)
	return scanBug(row)
}

// UpdateBug persists the bug with a compare-and-set on updated_at so a
// concurrent edit between authorization check and write surfaces as a
// conflict instead of silently overwriting.
func (r *Repository) UpdateBug(ctx context.Context, bug Bug, expectedUpdatedAt time.Time) (Bug, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE bugs
		 SET title = $2, description = $3, steps_to_reproduce = $4, classification = $5,
		     assigned_to_id = $6, assigned_to_name = $7,
		     closed = $8, closed_on = $9, closed_by = $10, updated_at = NOW()
		 WHERE id = $1 AND updated_at = $11
		 RETURNING `+bugColumns,
		bug.ID, bug.Title, bug.Description, bug.StepsToReproduce, bug.Classification,
		bug.AssignedToID, bug.AssignedToName,
		bug.Closed, bug.ClosedOn, bug.ClosedBy, expectedUpdatedAt)
	updated, err := scanBug(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Row exists but updated_at moved, or the bug vanished.
			if _, getErr := r.GetBug(ctx, bug.ID); getErr != nil {
				return Bug{}, getErr
			}
			return Bug{}, shared.ErrConflict
		}
		return Bug{}, err
	}
	return updated, nil
}

// InsertComment stores a discussion entry.
func (r *Repository) InsertComment(ctx context.Context, comment Comment) (Comment, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO bug_comments (id, bug_id, author_id, author_email, body, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 RETURNING id, bug_id, author_id, author_email, body, created_at`,
		comment.ID, comment.BugID, comment.AuthorID, comment.AuthorEmail, comment.Body)
	var out Comment
	err := row.Scan(&out.ID, &out.BugID, &out.AuthorID, &out.AuthorEmail, &out.Body, &out.CreatedAt)
	return out, err
}

// ListComments returns a bug's comments oldest first.
func (r *Repository) ListComments(ctx context.Context, bugID uuid.UUID) ([]Comment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, bug_id, author_id, author_email, body, created_at
		 FROM bug_comments WHERE bug_id = $1 ORDER BY created_at`, bugID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var comments []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.BugID, &c.AuthorID, &c.AuthorEmail, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// InsertTestCase stores a QA verification record.
func (r *Repository) InsertTestCase(ctx context.Context, tc TestCase) (TestCase, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO bug_test_cases (id, bug_id, author_id, author_email, title, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 RETURNING id, bug_id, author_id, author_email, title, status, created_at`,
		tc.ID, tc.BugID, tc.AuthorID, tc.AuthorEmail, tc.Title, tc.Status)
	var out TestCase
	err := row.Scan(&out.ID, &out.BugID, &out.AuthorID, &out.AuthorEmail, &out.Title, &out.Status, &out.CreatedAt)
	return out, err
}

// ListTestCases returns a bug's test cases oldest first.
func (r *Repository) ListTestCases(ctx context.Context, bugID uuid.UUID) ([]TestCase, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, bug_id, author_id, author_email, title, status, created_at
		 FROM bug_test_cases WHERE bug_id = $1 ORDER BY created_at`, bugID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cases []TestCase
	for rows.Next() {
		var tc TestCase
		if err := rows.Scan(&tc.ID, &tc.BugID, &tc.AuthorID, &tc.AuthorEmail, &tc.Title, &tc.Status, &tc.CreatedAt); err != nil {
			return nil, err
		}
		cases = append(cases, tc)
	}
	return cases, rows.Err()
}

// StaleOpenBugs counts open bugs untouched since the cutoff, for the
// background scan.
func (r *Repository) StaleOpenBugs(ctx context.Context, cutoff time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM bugs WHERE closed = FALSE AND updated_at < $1`, cutoff).Scan(&count)
	return count, err
}

func buildFilters(filters ListFilters) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filters.Classification != "" {
		add("classification = $%d", filters.Classification)
	}
	if filters.Closed != nil {
		add("closed = $%d", *filters.Closed)
	}
	if filters.AssignedToID != nil {
		add("assigned_to_id = $%d", *filters.AssignedToID)
	}
	if filters.AuthorID != nil {
		add("author_id = $%d", *filters.AuthorID)
	}
	if filters.Search != "" {
		args = append(args, filters.Search)
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(
			"(title ILIKE '%%' || $%d || '%%' OR description ILIKE '%%' || $%d || '%%')", n, n))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBug(row rowScanner) (Bug, error) {
	var bug Bug
	err := row.Scan(&bug.ID, &bug.Title, &bug.Description, &bug.StepsToReproduce, &bug.Classification,
		&bug.AuthorID, &bug.AuthorEmail, &bug.AssignedToID, &bug.AssignedToName,
		&bug.Closed, &bug.ClosedOn, &bug.ClosedBy, &bug.CreatedAt, &bug.UpdatedAt)
	return bug, err
}
