package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codejudge/internal/common/db"
	"codejudge/internal/judge/model"
	appErr "codejudge/pkg/errors"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

const submissionColumns = "`id`, `user_id`, `problem_id`, `language`, `code`, `status`, `created_at`"

type submissionRow struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	ProblemID int64     `db:"problem_id"`
	Language  string    `db:"language"`
	Code      string    `db:"code"`
	Status    int       `db:"status"`
	CreatedAt time.Time `db:"created_at"`
}

func (r submissionRow) toModel() model.Submission {
	return model.Submission{
		ID:        r.ID,
		UserID:    r.UserID,
		ProblemID: r.ProblemID,
		Language:  r.Language,
		Code:      r.Code,
		Status:    model.SubmissionStatus(r.Status),
		CreatedAt: r.CreatedAt,
	}
}

type SubmissionRepository interface {
	// Create inserts the submission and returns its id.
	Create(ctx context.Context, submission *model.Submission) (int64, error)
	Get(ctx context.Context, id int64) (model.Submission, error)
	UpdateStatus(ctx context.Context, id int64, status model.SubmissionStatus) error
	WithSession(session sqlx.Session) SubmissionRepository
}

type MySQLSubmissionRepository struct {
	conn  sqlx.SqlConn
	table string
	now   func() time.Time
}

func NewSubmissionRepository(conn sqlx.SqlConn) SubmissionRepository {
	return &MySQLSubmissionRepository{conn: conn, table: "`submissions`", now: time.Now}
}

func (r *MySQLSubmissionRepository) WithSession(session sqlx.Session) SubmissionRepository {
	if session == nil {
		return r
	}
	return &MySQLSubmissionRepository{conn: sqlx.NewSqlConnFromSession(session), table: r.table, now: r.now}
}

func (r *MySQLSubmissionRepository) Create(ctx context.Context, submission *model.Submission) (int64, error) {
	if submission == nil {
		return 0, errors.New("submission is nil")
	}
	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = r.now()
	}
	query := fmt.Sprintf("insert into %s (`user_id`, `problem_id`, `language`, `code`, `status`, `created_at`, `updated_at`) values (?, ?, ?, ?, ?, ?, ?)", r.table)
	result, err := r.conn.ExecCtx(ctx, query,
		submission.UserID,
		submission.ProblemID,
		submission.Language,
		submission.Code,
		int(submission.Status),
		submission.CreatedAt,
		submission.CreatedAt,
	)
	if err != nil {
		return 0, appErr.Wrapf(err, appErr.SubmissionCreateFailed, "insert submission failed")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, appErr.Wrapf(err, appErr.SubmissionCreateFailed, "read submission id failed")
	}
	submission.ID = id
	return id, nil
}

func (r *MySQLSubmissionRepository) Get(ctx context.Context, id int64) (model.Submission, error) {
	query := fmt.Sprintf("select %s from %s where `id` = ? limit 1", submissionColumns, r.table)
	var row submissionRow
	if err := r.conn.QueryRowCtx(ctx, &row, query, id); err != nil {
		if db.IsNoRows(err) {
			return model.Submission{}, appErr.Newf(appErr.SubmissionNotFound, "submission %d not found", id)
		}
		return model.Submission{}, appErr.Wrapf(err, appErr.DatabaseError, "load submission %d failed", id)
	}
	return row.toModel(), nil
}

func (r *MySQLSubmissionRepository) UpdateStatus(ctx context.Context, id int64, status model.SubmissionStatus) error {
	query := fmt.Sprintf("update %s set `status` = ?, `updated_at` = ? where `id` = ?", r.table)
	if _, err := r.conn.ExecCtx(ctx, query, int(status), r.now(), id); err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "update submission %d status failed", id)
	}
	return nil
}
