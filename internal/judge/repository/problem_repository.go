package repository

import (
	"context"
	"fmt"

	"codejudge/internal/common/db"
	"codejudge/internal/judge/model"
	appErr "codejudge/pkg/errors"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

const problemColumns = "`id`, `title`, `description`, `input_description`, `output_description`, `sample_input`, `sample_output`, `time_limit`, `memory_limit`"

type problemRow struct {
	ID                int64  `db:"id"`
	Title             string `db:"title"`
	Description       string `db:"description"`
	InputDescription  string `db:"input_description"`
	OutputDescription string `db:"output_description"`
	SampleInput       string `db:"sample_input"`
	SampleOutput      string `db:"sample_output"`
	TimeLimit         int    `db:"time_limit"`
	MemoryLimit       int    `db:"memory_limit"`
}

func (r problemRow) toModel() model.Problem {
	return model.Problem{
		ID:                r.ID,
		Title:             r.Title,
		Description:       r.Description,
		InputDescription:  r.InputDescription,
		OutputDescription: r.OutputDescription,
		SampleInput:       r.SampleInput,
		SampleOutput:      r.SampleOutput,
		TimeLimit:         r.TimeLimit,
		MemoryLimit:       r.MemoryLimit,
	}
}

// ProblemRepository reads problem statements. The catalogue is owned elsewhere.
type ProblemRepository interface {
	Get(ctx context.Context, id int64) (model.Problem, error)
}

type MySQLProblemRepository struct {
	conn  sqlx.SqlConn
	table string
}

func NewProblemRepository(conn sqlx.SqlConn) ProblemRepository {
	return &MySQLProblemRepository{conn: conn, table: "`problems`"}
}

func (r *MySQLProblemRepository) Get(ctx context.Context, id int64) (model.Problem, error) {
	query := fmt.Sprintf("select %s from %s where `id` = ? limit 1", problemColumns, r.table)
	var row problemRow
	if err := r.conn.QueryRowCtx(ctx, &row, query, id); err != nil {
		if db.IsNoRows(err) {
			return model.Problem{}, appErr.Newf(appErr.ProblemNotFound, "problem %d not found", id)
		}
		return model.Problem{}, appErr.Wrapf(err, appErr.DatabaseError, "load problem %d failed", id)
	}
	return row.toModel(), nil
}
