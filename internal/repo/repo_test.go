package repo

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	query string
	args  []any
}

// recordingDB captures every statement. Exec reports affected rows; reads go
// through a database/sql pool whose queries return no rows.
type recordingDB struct {
	calls    []execCall
	queries  []execCall
	affected int64
	empty    *sql.DB
}

func newRecordingDB(t *testing.T, affected int64) *recordingDB {
	t.Helper()
	db := sql.OpenDB(emptyConnector{})
	t.Cleanup(func() { _ = db.Close() })
	return &recordingDB{affected: affected, empty: db}
}

func (r *recordingDB) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	r.calls = append(r.calls, execCall{query: query, args: args})
	return driverResult(r.affected), nil
}

func (r *recordingDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	r.queries = append(r.queries, execCall{query: query, args: args})
	return r.empty.QueryContext(ctx, query, args...)
}

func (r *recordingDB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	r.queries = append(r.queries, execCall{query: query, args: args})
	return r.empty.QueryRowContext(ctx, query, args...)
}

func (r *recordingDB) lastQuery(t *testing.T) execCall {
	t.Helper()
	require.NotEmpty(t, r.queries)
	return r.queries[len(r.queries)-1]
}

type driverResult int64

func (d driverResult) LastInsertId() (int64, error) { return 0, nil }
func (d driverResult) RowsAffected() (int64, error) { return int64(d), nil }

type emptyConnector struct{}

func (emptyConnector) Connect(context.Context) (driver.Conn, error) { return emptyConn{}, nil }
func (emptyConnector) Driver() driver.Driver { return emptyDriver{} }

type emptyDriver struct{}

func (emptyDriver) Open(string) (driver.Conn, error) { return emptyConn{}, nil }

type emptyConn struct{}

func (emptyConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("prepare not supported") }
func (emptyConn) Close() error { return nil }
func (emptyConn) Begin() (driver.Tx, error) { return nil, errors.New("transactions not supported") }

func (emptyConn) QueryContext(context.Context, string, []driver.NamedValue) (driver.Rows, error) {
	return emptyRows{}, nil
}

type emptyRows struct{}

func (emptyRows) Columns() []string { return nil }
func (emptyRows) Close() error { return nil }
func (emptyRows) Next([]driver.Value) error { return io.EOF }

func TestCommissionUpsertIsSingleStatement(t *testing.T) {
	db := newRecordingDB(t, 1)
	repo := &CommissionRepo{db: db}

	c := &Commission{
		ConsultaID:  uuid.New(),
		PsicologoID: uuid.New(),
		PacienteID:  uuid.New(),
		Valor:       40,
		Percentual:  0.4,
		Status:      "disponivel",
		Periodo:     "2026-03",
		TipoPlano:   "avulsa",
		Type:        "repasse",
	}
	require.NoError(t, repo.Upsert(context.Background(), c))

	require.Len(t, db.calls, 1)
	q := db.calls[0].query
	assert.Contains(t, q, `INSERT INTO "commissions"`)
	assert.Contains(t, q, "ON CONFLICT")
	assert.Contains(t, q, `"excluded"."valor"`)
	assert.NotContains(t, q, `"excluded"."created_at"`)
	assert.NotEqual(t, uuid.Nil, c.ID)
	assert.Contains(t, db.calls[0].args, c.ConsultaID)
}

func TestUpdateStatusReportsMissingRow(t *testing.T) {
	db := newRecordingDB(t, 0)
	repo := &ConsultaRepo{db: db}

	err := repo.UpdateStatus(context.Background(), uuid.New(), StatusUpdate{Status: "Realizada", Faturada: true})
	assert.True(t, IsNotFound(err))
}

func TestUpdateStatusSkipsNilColumns(t *testing.T) {
	db := newRecordingDB(t, 1)
	repo := &ConsultaRepo{db: db}

	origem := "Sistemico"
	require.NoError(t, repo.UpdateStatus(context.Background(), uuid.New(), StatusUpdate{
		Status:       "EmAndamento",
		Faturada:     true,
		OrigemStatus: &origem,
	}))

	q := db.calls[0].query
	assert.Contains(t, q, `"origem_status"`)
	assert.NotContains(t, q, `"tela_gatilho"`)
	assert.NotContains(t, q, `"acao_saldo"`)
}

func TestMarkJoinedTargetsSide(t *testing.T) {
	tests := []struct {
		name         string
		psychologist bool
		userID       *uuid.UUID
		want         []string
		notWant      []string
	}{
		{
			name:    "patient without backfill",
			want:    []string{`"patient_joined_at" = $1`},
			notWant: []string{`"psychologist_joined_at" =`, `"patient_id"`},
		},
		{
			name:         "psychologist with backfill",
			psychologist: true,
			userID:       uuidPtr(uuid.New()),
			want:         []string{`"psychologist_joined_at" = $1`, `"psychologist_id"`},
			notWant:      []string{`"patient_joined_at" =`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newRecordingDB(t, 1)
			repo := &ReservaRepo{db: db}
			_, err := repo.MarkJoined(context.Background(), uuid.New(), tt.psychologist, tt.userID, time.Now())
			assert.True(t, IsNotFound(err))

			q := db.lastQuery(t).query
			assert.True(t, strings.HasPrefix(q, `UPDATE "reserva_sessao"`), q)
			assert.Contains(t, q, `RETURNING "patient_joined_at", "psychologist_joined_at"`)
			for _, w := range tt.want {
				assert.Contains(t, q, w)
			}
			for _, nw := range tt.notWant {
				assert.NotContains(t, q, nw)
			}
			assert.Empty(t, db.calls)
		})
	}
}

func TestGetByConsultaJoinsConsulta(t *testing.T) {
	db := newRecordingDB(t, 0)
	repo := &ReservaRepo{db: db}
	id := uuid.New()

	_, err := repo.GetByConsulta(context.Background(), id)
	assert.True(t, IsNotFound(err))

	q := db.lastQuery(t)
	assert.Contains(t, q.query, `FROM "reserva_sessao" AS "r" JOIN "consultas" AS "c" ON "r"."consulta_id" = "c"."id"`)
	assert.Contains(t, q.query, `WHERE "r"."consulta_id" = $1`)
	assert.Contains(t, q.query, "LIMIT 1")
	assert.Equal(t, []any{id}, q.args)
}

func TestActiveSubscriptionQuery(t *testing.T) {
	db := newRecordingDB(t, 0)
	repo := &PlanoRepo{db: db}
	user := uuid.New()
	at := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	_, err := repo.ActiveSubscription(context.Background(), user, at)
	assert.True(t, IsNotFound(err))

	q := db.lastQuery(t)
	assert.Contains(t, q.query, `JOIN "planos" AS "p" ON "a"."plano_id" = "p"."id"`)
	assert.Contains(t, q.query, `"a"."data_fim" IS NULL OR "a"."data_fim" >= $3`)
	assert.Contains(t, q.query, "ORDER BY")
	assert.Contains(t, q.query, "DESC LIMIT 1")
	assert.Equal(t, []any{user, "Ativo", at}, q.args)
}

func TestHighestAvulsaPriceIgnoresCase(t *testing.T) {
	db := newRecordingDB(t, 0)
	repo := &PlanoRepo{db: db}

	_, err := repo.HighestAvulsaPrice(context.Background())
	require.Error(t, err)

	q := db.lastQuery(t)
	assert.Contains(t, q.query, "MAX(")
	assert.Contains(t, q.query, `LOWER("tipo") IN ($2, $3)`)
	assert.Equal(t, []any{"Ativo", "avulsa", "unica"}, q.args)
}

func TestListInactiveQuery(t *testing.T) {
	db := newRecordingDB(t, 0)
	repo := &ConsultaRepo{db: db}
	deadline := time.Date(2026, 3, 10, 12, 50, 0, 0, time.UTC)

	out, err := repo.ListInactive(context.Background(), []string{"Reservado", "EmAndamento"}, deadline)
	require.NoError(t, err)
	assert.Empty(t, out)

	q := db.lastQuery(t)
	assert.Contains(t, q.query, `LEFT JOIN "reserva_sessao" AS "r" ON "c"."id" = "r"."consulta_id"`)
	assert.Contains(t, q.query, `"c"."status" IN ($1, $2)`)
	assert.Contains(t, q.query, `"r"."patient_joined_at" IS NULL OR "r"."psychologist_joined_at" IS NULL`)
	assert.Equal(t, []any{"Reservado", "EmAndamento", deadline}, q.args)
}

func TestCountByStatusQuery(t *testing.T) {
	db := newRecordingDB(t, 0)
	repo := &ConsultaRepo{db: db}
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	counts, err := repo.CountByStatus(context.Background(), from, to)
	require.NoError(t, err)
	assert.Empty(t, counts)

	q := db.lastQuery(t)
	assert.Contains(t, q.query, `COUNT(*)`)
	assert.Contains(t, q.query, `"date" >= $1 AND "date" < $2`)
	assert.Contains(t, q.query, `GROUP BY "status", "faturada"`)
	assert.Equal(t, []any{from, to}, q.args)
}

func TestSaveTokensKeepsChannelWhenEmpty(t *testing.T) {
	db := newRecordingDB(t, 1)
	repo := &ReservaRepo{db: db}

	require.NoError(t, repo.SaveTokens(context.Background(), uuid.New(), TokenPair{
		PatientID:         uuid.New(),
		PsychologistID:    uuid.New(),
		UIDPatient:        11,
		UIDPsychologist:   22,
		TokenPatient:      "007a",
		TokenPsychologist: "007b",
	}))
	assert.NotContains(t, db.calls[0].query, `"agora_channel"`)
	assert.Contains(t, db.calls[0].args, "007a")
	assert.Contains(t, db.calls[0].args, "007b")
}

func uuidPtr(id uuid.UUID) *uuid.UUID { return &id }
