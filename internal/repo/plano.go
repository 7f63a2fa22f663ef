package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/estacaoterapia/estacao_backend/internal/schema"
)

type PlanoRepo struct {
	db DBTX
}

// ActiveSubscription returns the patient's active subscription whose end date
// is open or not before at, joined with its plan.
func (r *PlanoRepo) ActiveSubscription(ctx context.Context, userID uuid.UUID, at time.Time) (*Assinatura, error) {
	b := builder()
	a := b.Table(schema.TableAssinaturas).As("a")
	p := b.Table(schema.TablePlanos).As("p")

	query, args := b.Select(
		a.C("id"), a.C("user_id"), a.C("plano_id"), a.C("status"), a.C("data_inicio"), a.C("data_fim"),
		p.C("id"), p.C("nome"), p.C("tipo"), p.C("preco"), p.C("status"),
	).
		From(a).
		Join(p).On(a.C("plano_id"), p.C("id")).
		Where(entsql.And(
			entsql.EQ(a.C("user_id"), userID),
			entsql.EQ(a.C("status"), "Ativo"),
			entsql.Or(
				entsql.IsNull(a.C("data_fim")),
				entsql.GTE(a.C("data_fim"), at),
			),
		)).
		OrderBy(entsql.Desc(a.C("data_inicio"))).
		Limit(1).
		Query()

	s := Assinatura{Plano: &Plano{}}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&s.ID, &s.UserID, &s.PlanoID, &s.Status, &s.DataInicio, &s.DataFim,
		&s.Plano.ID, &s.Plano.Nome, &s.Plano.Tipo, &s.Plano.Preco, &s.Plano.Status,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// HighestAvulsaPrice is the price of the most expensive active one-off plan,
// or 0 when there is none.
func (r *PlanoRepo) HighestAvulsaPrice(ctx context.Context) (float64, error) {
	b := builder()
	query, args := b.Select(entsql.Max("preco")).
		From(b.Table(schema.TablePlanos)).
		Where(entsql.And(
			entsql.EQ("status", "Ativo"),
			lowerIn("tipo", "avulsa", "unica"),
		)).
		Query()

	var price sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&price); err != nil {
		return 0, fmt.Errorf("max avulsa price: %w", err)
	}
	return price.Float64, nil
}

// lowerIn matches LOWER(col) against values, which must be lower case.
func lowerIn(col string, values ...any) *entsql.Predicate {
	return entsql.P(func(b *entsql.Builder) {
		b.WriteString("LOWER(").Ident(col).WriteString(")").
			WriteOp(entsql.OpIn).
			Wrap(func(b *entsql.Builder) { b.Args(values...) })
	})
}

// ReturnSession gives one consumed session back to a plan cycle.
func (r *PlanoRepo) ReturnSession(ctx context.Context, cicloID uuid.UUID) error {
	n, err := execQuery(ctx, r.db, builder().Update(schema.TableCiclosPlano).
		Add("consultas_disponiveis", 1).
		Add("consultas_usadas", -1).
		Set("updated_at", time.Now()).
		Where(entsql.EQ("id", cicloID)))
	if err != nil {
		return fmt.Errorf("return cycle session: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
