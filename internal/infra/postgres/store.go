// Package postgres implements the receipt store and operator directory on
// PostgreSQL through a pgx connection pool.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agentebl/multibanco-agent-go/internal/domain"
	"github.com/agentebl/multibanco-agent-go/internal/infra/resilience"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("postgres")

//go:embed schema.sql
var schemaSQL string

const service = "postgres"

// Connect creates a pool for databaseURL and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string, maxConns int) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = int32(maxConns)
	}
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute
	poolConfig.ConnConfig.ConnectTimeout = 10 * time.Second

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Store is the Postgres-backed receipt store.
type Store struct {
	db       *pgxpool.Pool
	prefix   string
	bulkhead *resilience.Bulkhead
}

// NewStore wraps an open pool. maxConcurrency bounds in-flight queries.
func NewStore(db *pgxpool.Pool, prefix string, maxConcurrency int) *Store {
	return &Store{db: db, prefix: prefix, bulkhead: resilience.NewBulkhead(maxConcurrency)}
}

// EnsureSchema creates the receipt tables and sequence if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return &domain.ErrExternalService{Service: service, Err: fmt.Errorf("ensure schema: %w", err)}
	}
	return nil
}

// SeedOperators upserts login -> name pairs into the operator table.
func (s *Store) SeedOperators(ctx context.Context, operators map[string]string) error {
	for login, name := range operators {
		_, err := s.db.Exec(ctx, `
			INSERT INTO agent_operators (login, name, active) VALUES ($1, $2, TRUE)
			ON CONFLICT (login) DO UPDATE SET name = EXCLUDED.name`, login, name)
		if err != nil {
			return &domain.ErrExternalService{Service: service, Err: fmt.Errorf("seed operator %s: %w", login, err)}
		}
	}
	return nil
}

const receiptColumns = `
	id::text, name, date::text, bank, movement,
	operator_login, operator_name, account, description, cancelled,
	requester_id, requester_name, beneficiary_id, beneficiary_name,
	amount, fee, total, currency, created_at, updated_at`

func scanReceipt(row pgx.Row) (*domain.Receipt, error) {
	var r domain.Receipt
	err := row.Scan(
		&r.ID, &r.Name, &r.Date, &r.Bank, &r.Movement,
		&r.Operator.Login, &r.Operator.Name, &r.Account, &r.Description, &r.Cancelled,
		&r.Requester.ID, &r.Requester.FullName, &r.Beneficiary.ID, &r.Beneficiary.FullName,
		&r.Amount, &r.Fee, &r.Total, &r.Currency, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Operator.Active = r.Operator.Login != ""
	return &r, nil
}

func (s *Store) CreateReceipt(ctx context.Context, r *domain.Receipt) (*domain.Receipt, error) {
	ctx, span := tracer.Start(ctx, "Postgres.CreateReceipt")
	defer span.End()
	span.SetAttributes(attribute.String("receipt.name", r.Name))

	if err := r.Validate(); err != nil {
		return nil, err
	}

	var out *domain.Receipt
	err := s.bulkhead.Do(ctx, func() error {
		row := s.db.QueryRow(ctx, `
			INSERT INTO agent_receipts (
				id, name, date, bank, movement,
				operator_login, operator_name, account, description, cancelled,
				requester_id, requester_name, beneficiary_id, beneficiary_name,
				amount, fee, total, currency, created_at, updated_at
			) VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
			RETURNING `+receiptColumns,
			r.ID, r.Name, r.Date, string(r.Bank), string(r.Movement),
			r.Operator.Login, r.Operator.Name, r.Account, r.Description, r.Cancelled,
			r.Requester.ID, r.Requester.FullName, r.Beneficiary.ID, r.Beneficiary.FullName,
			r.Amount, r.Fee, r.Total, r.Currency, r.CreatedAt, r.UpdatedAt,
		)
		var err error
		out, err = scanReceipt(row)
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, &domain.ErrValidation{Field: "id", Message: "duplicate receipt"}
		}
		return nil, &domain.ErrExternalService{Service: service, Err: fmt.Errorf("insert receipt: %w", err)}
	}
	return out, nil
}

func (s *Store) GetReceipt(ctx context.Context, id string) (*domain.Receipt, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetReceipt")
	defer span.End()

	var out *domain.Receipt
	err := s.bulkhead.Do(ctx, func() error {
		var err error
		out, err = scanReceipt(s.db.QueryRow(ctx,
			`SELECT `+receiptColumns+` FROM agent_receipts WHERE id::text = $1`, id))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.ErrNotFound{Resource: "receipt", ID: id}
		}
		return nil, &domain.ErrExternalService{Service: service, Err: fmt.Errorf("get receipt: %w", err)}
	}
	return out, nil
}

// listQuery builds the filtered SELECT for ListReceipts.
func listQuery(f domain.ReceiptFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Date != "" {
		add("date = $%d::date", f.Date)
	}
	if f.Bank != "" {
		add("bank = $%d", string(f.Bank))
	}
	if f.Movement != "" {
		add("movement = $%d", string(f.Movement))
	}
	if !f.IncludeCancelled {
		where = append(where, "NOT cancelled")
	}

	q := `SELECT ` + receiptColumns + ` FROM agent_receipts`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, length(name) DESC, name DESC, id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return q, args
}

func (s *Store) ListReceipts(ctx context.Context, f domain.ReceiptFilter) ([]domain.Receipt, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListReceipts")
	defer span.End()

	q, args := listQuery(f)
	var out []domain.Receipt
	err := s.bulkhead.Do(ctx, func() error {
		rows, err := s.db.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			r, err := scanReceipt(rows)
			if err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			out = append(out, *r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: service, Err: fmt.Errorf("list receipts: %w", err)}
	}
	return out, nil
}

func (s *Store) UpdateReceipt(ctx context.Context, r *domain.Receipt) (*domain.Receipt, error) {
	ctx, span := tracer.Start(ctx, "Postgres.UpdateReceipt")
	defer span.End()

	if err := r.Validate(); err != nil {
		return nil, err
	}

	var out *domain.Receipt
	err := s.bulkhead.Do(ctx, func() error {
		var err error
		out, err = scanReceipt(s.db.QueryRow(ctx, `
			UPDATE agent_receipts
			SET account = $2, description = $3, amount = $4, fee = $5, total = $6, updated_at = $7
			WHERE id::text = $1
			RETURNING `+receiptColumns,
			r.ID, r.Account, r.Description, r.Amount, r.Fee, r.Total, r.UpdatedAt,
		))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.ErrNotFound{Resource: "receipt", ID: r.ID}
		}
		return nil, &domain.ErrExternalService{Service: service, Err: fmt.Errorf("update receipt: %w", err)}
	}
	return out, nil
}

func (s *Store) SetCancelled(ctx context.Context, id string, cancelled bool, at time.Time) (*domain.Receipt, error) {
	ctx, span := tracer.Start(ctx, "Postgres.SetCancelled")
	defer span.End()
	span.SetAttributes(attribute.Bool("receipt.cancelled", cancelled))

	var out *domain.Receipt
	err := s.bulkhead.Do(ctx, func() error {
		var err error
		out, err = scanReceipt(s.db.QueryRow(ctx, `
			UPDATE agent_receipts SET cancelled = $2, updated_at = $3
			WHERE id::text = $1
			RETURNING `+receiptColumns, id, cancelled, at))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.ErrNotFound{Resource: "receipt", ID: id}
		}
		return nil, &domain.ErrExternalService{Service: service, Err: fmt.Errorf("set cancelled: %w", err)}
	}
	return out, nil
}

// NextSequence draws from agent_receipt_seq, which is gap-tolerant but
// never hands out the same value twice.
func (s *Store) NextSequence(ctx context.Context) (string, error) {
	var n int64
	err := s.bulkhead.Do(ctx, func() error {
		return s.db.QueryRow(ctx, `SELECT nextval('agent_receipt_seq')`).Scan(&n)
	})
	if err != nil {
		return "", &domain.ErrExternalService{Service: service, Err: fmt.Errorf("next sequence: %w", err)}
	}
	return fmt.Sprintf("%s-%06d", s.prefix, n), nil
}

func (s *Store) FindOperator(ctx context.Context, login string) (*domain.Operator, error) {
	var op domain.Operator
	err := s.bulkhead.Do(ctx, func() error {
		return s.db.QueryRow(ctx,
			`SELECT login, name, active FROM agent_operators WHERE login = $1 AND active`, login,
		).Scan(&op.Login, &op.Name, &op.Active)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.ErrNotFound{Resource: "operator", ID: login}
		}
		return nil, &domain.ErrExternalService{Service: service, Err: fmt.Errorf("find operator: %w", err)}
	}
	return &op, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
