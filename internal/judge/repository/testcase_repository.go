package repository

import (
	"context"
	"fmt"

	"codejudge/internal/judge/model"
	appErr "codejudge/pkg/errors"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

type testCaseRow struct {
	ID         int64  `db:"id"`
	ProblemID  int64  `db:"problem_id"`
	Input      string `db:"input"`
	Output     string `db:"output"`
	CheckOrder int    `db:"check_order"`
}

// TestCaseRepository lists the hidden tests of a problem. It satisfies sandbox.TestCaseSource.
type TestCaseRepository interface {
	ListTestCases(ctx context.Context, problemID int64) ([]model.TestCase, error)
}

type MySQLTestCaseRepository struct {
	conn  sqlx.SqlConn
	table string
}

func NewTestCaseRepository(conn sqlx.SqlConn) TestCaseRepository {
	return &MySQLTestCaseRepository{conn: conn, table: "`test_cases`"}
}

// ListTestCases returns tests in id order. check_order is only for display.
func (r *MySQLTestCaseRepository) ListTestCases(ctx context.Context, problemID int64) ([]model.TestCase, error) {
	query := fmt.Sprintf("select `id`, `problem_id`, `input`, `output`, `check_order` from %s where `problem_id` = ? order by `id`", r.table)
	var rows []testCaseRow
	if err := r.conn.QueryRowsCtx(ctx, &rows, query, problemID); err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "list test cases of problem %d failed", problemID)
	}
	tests := make([]model.TestCase, 0, len(rows))
	for _, row := range rows {
		tests = append(tests, model.TestCase{
			ID:         row.ID,
			ProblemID:  row.ProblemID,
			Input:      row.Input,
			Output:     row.Output,
			CheckOrder: row.CheckOrder,
		})
	}
	return tests, nil
}
