package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("record not found")

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Client groups the table repositories over one connection pool (or one
// transaction, inside WithTx).
type Client struct {
	drv *entsql.Driver
	db  DBTX

	users         *UserRepo
	planos        *PlanoRepo
	consultas     *ConsultaRepo
	reservas      *ReservaRepo
	cancelamentos *CancelamentoRepo
	commissions   *CommissionRepo
	avulsas       *AvulsaRepo
	audit         *AuditRepo
}

var _ Store = (*Client)(nil)

func NewClient(drv *entsql.Driver) *Client {
	return newClient(drv, drv.DB())
}

func newClient(drv *entsql.Driver, db DBTX) *Client {
	return &Client{
		drv:           drv,
		db:            db,
		users:         &UserRepo{db: db},
		planos:        &PlanoRepo{db: db},
		consultas:     &ConsultaRepo{db: db},
		reservas:      &ReservaRepo{db: db},
		cancelamentos: &CancelamentoRepo{db: db},
		commissions:   &CommissionRepo{db: db},
		avulsas:       &AvulsaRepo{db: db},
		audit:         &AuditRepo{db: db},
	}
}

func (c *Client) Users() UserStore                 { return c.users }
func (c *Client) Planos() PlanoStore               { return c.planos }
func (c *Client) Consultas() ConsultaStore         { return c.consultas }
func (c *Client) Reservas() ReservaStore           { return c.reservas }
func (c *Client) Cancelamentos() CancelamentoStore { return c.cancelamentos }
func (c *Client) Commissions() CommissionStore     { return c.commissions }
func (c *Client) Avulsas() AvulsaStore             { return c.avulsas }
func (c *Client) Audit() AuditStore                { return c.audit }

// Driver exposes the underlying ent driver (used by migrations).
func (c *Client) Driver() *entsql.Driver {
	return c.drv
}

func (c *Client) Ping(ctx context.Context) error {
	return c.drv.DB().PingContext(ctx)
}

func (c *Client) Close() error {
	return c.drv.Close()
}

// WithTx runs fn against a transaction-bound client. fn's error (or a panic)
// rolls the transaction back.
func (c *Client) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if _, inTx := c.db.(*sql.Tx); inTx {
		return fn(c)
	}

	tx, err := c.drv.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()

	if err := fn(newClient(c.drv, tx)); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = fmt.Errorf("%w: rolling back transaction: %v", err, rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.Postgres)
}

type querier interface {
	Query() (string, []any)
}

func execQuery(ctx context.Context, db DBTX, q querier) (int64, error) {
	query, args := q.Query()
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
