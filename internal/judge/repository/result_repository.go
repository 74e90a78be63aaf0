package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"codejudge/internal/judge/model"
	"codejudge/internal/judge/sandbox/result"
	appErr "codejudge/pkg/errors"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

type resultRow struct {
	ID            int64     `db:"id"`
	SubmissionID  int64     `db:"submission_id"`
	TestCaseID    int64     `db:"test_case_id"`
	Verdict       string    `db:"verdict"`
	ExecutionTime float64   `db:"execution_time"`
	MemoryUsed    float64   `db:"memory_used"`
	CreatedAt     time.Time `db:"created_at"`
}

type ResultRepository interface {
	// Replace drops any earlier results of the submission and stores results in their place.
	Replace(ctx context.Context, submissionID int64, results []model.Result) error
	ListBySubmission(ctx context.Context, submissionID int64) ([]model.Result, error)
	WithSession(session sqlx.Session) ResultRepository
}

type MySQLResultRepository struct {
	conn  sqlx.SqlConn
	table string
}

func NewResultRepository(conn sqlx.SqlConn) ResultRepository {
	return &MySQLResultRepository{conn: conn, table: "`results`"}
}

func (r *MySQLResultRepository) WithSession(session sqlx.Session) ResultRepository {
	if session == nil {
		return r
	}
	return &MySQLResultRepository{conn: sqlx.NewSqlConnFromSession(session), table: r.table}
}

func (r *MySQLResultRepository) Replace(ctx context.Context, submissionID int64, results []model.Result) error {
	del := fmt.Sprintf("delete from %s where `submission_id` = ?", r.table)
	if _, err := r.conn.ExecCtx(ctx, del, submissionID); err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "clear results of submission %d failed", submissionID)
	}
	if len(results) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(results))
	args := make([]any, 0, len(results)*6)
	for _, res := range results {
		placeholders = append(placeholders, "(?, ?, ?, ?, ?, ?)")
		args = append(args, submissionID, res.TestCaseID, string(res.Verdict), res.ExecutionTime, res.MemoryUsed, res.CreatedAt)
	}
	insert := fmt.Sprintf("insert into %s (`submission_id`, `test_case_id`, `verdict`, `execution_time`, `memory_used`, `created_at`) values %s",
		r.table, strings.Join(placeholders, ", "))
	if _, err := r.conn.ExecCtx(ctx, insert, args...); err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "insert results of submission %d failed", submissionID)
	}
	return nil
}

func (r *MySQLResultRepository) ListBySubmission(ctx context.Context, submissionID int64) ([]model.Result, error) {
	query := fmt.Sprintf("select `id`, `submission_id`, `test_case_id`, `verdict`, `execution_time`, `memory_used`, `created_at` from %s where `submission_id` = ? order by `id`", r.table)
	var rows []resultRow
	if err := r.conn.QueryRowsCtx(ctx, &rows, query, submissionID); err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "list results of submission %d failed", submissionID)
	}
	out := make([]model.Result, 0, len(rows))
	for _, row := range rows {
		v, ok := result.ParseVerdict(row.Verdict)
		if !ok {
			return nil, appErr.Newf(appErr.InvalidValue, "result %d has unknown verdict %q", row.ID, row.Verdict)
		}
		out = append(out, model.Result{
			ID:            row.ID,
			SubmissionID:  row.SubmissionID,
			TestCaseID:    row.TestCaseID,
			Verdict:       v,
			ExecutionTime: row.ExecutionTime,
			MemoryUsed:    row.MemoryUsed,
			CreatedAt:     row.CreatedAt,
		})
	}
	return out, nil
}
