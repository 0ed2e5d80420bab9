package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/datawhisker/boxstat/internal/backend"
	"github.com/datawhisker/boxstat/internal/dialect"
	"github.com/datawhisker/boxstat/internal/plan"
)

// Store executes plans against a SQL engine through database/sql. The
// connection is assumed valid; pooling, retries, and transactions are the
// caller's concern.
type Store struct {
	db      *sql.DB
	engine  string
	dialect dialect.Dialect
}

// Open opens a database/sql connection and wraps it in a Store. The engine
// identifier selects the dialect via the given profiles.
func Open(driver, dsn, engine string, profiles dialect.Profiles) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", engine, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s: %w", engine, err)
	}
	return NewStore(db, engine, profiles.Detect(engine)), nil
}

// NewStore wraps an existing connection. Useful when the caller manages the
// connection lifecycle itself.
func NewStore(db *sql.DB, engine string, d dialect.Dialect) *Store {
	return &Store{db: db, engine: engine, dialect: d}
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct use, such as loading fixtures.
func (s *Store) DB() *sql.DB { return s.db }

// Engine implements backend.Backend.
func (s *Store) Engine() string { return s.engine }

// Dialect returns the detected dialect for this store.
func (s *Store) Dialect() dialect.Dialect { return s.dialect }

// QuantileMethod implements backend.Backend.
func (s *Store) QuantileMethod() string {
	if s.dialect == dialect.DistributedCompute {
		return "approximate, delegated to the engine's APPROX_PERCENTILE"
	}
	return "exact, delegated to the engine's PERCENTILE_CONT (linear interpolation)"
}

// Handle returns a backend handle for a table on this store.
func (s *Store) Handle(table string, schema backend.Schema) *backend.Handle {
	return backend.NewHandle(s, table, schema)
}

// Execute compiles and runs a plan: one statement for the aggregate shape,
// two dependent statements (windowed view, then distinct collapse) for the
// windowed shape. Engine errors are wrapped with the offending statement and
// propagated verbatim - an engine that rejects the generic quantile syntax
// fails here, visibly.
func (s *Store) Execute(ctx context.Context, p *plan.Plan) (*backend.Result, error) {
	if !p.Summary.Windowed {
		stmt, err := Compile(p)
		if err != nil {
			return nil, &backend.Error{Code: backend.ErrCodeBadPlan, Message: err.Error(), Engine: s.engine}
		}
		return s.query(ctx, stmt)
	}

	view := "boxstat_w_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	phase1, phase2, cleanup, err := CompileRestricted(p, view)
	if err != nil {
		return nil, &backend.Error{Code: backend.ErrCodeBadPlan, Message: err.Error(), Engine: s.engine}
	}

	if _, err := s.db.ExecContext(ctx, phase1); err != nil {
		return nil, backend.NewExecError(s.engine, phase1, err)
	}
	// Cleanup is best-effort: a failed drop leaves a session-scoped view
	// behind but never masks the query result or error.
	defer s.db.ExecContext(context.WithoutCancel(ctx), cleanup)

	return s.query(ctx, phase2)
}

// query runs one statement and materializes the rows.
func (s *Store) query(ctx context.Context, stmt string) (*backend.Result, error) {
	rows, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, backend.NewExecError(s.engine, stmt, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, backend.NewExecError(s.engine, stmt, err)
	}

	result := &backend.Result{Columns: cols}
	for rows.Next() {
		cells := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, backend.NewExecError(s.engine, stmt, err)
		}
		for i, c := range cells {
			if b, ok := c.([]byte); ok {
				cells[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, backend.NewExecError(s.engine, stmt, err)
	}
	return result, nil
}
