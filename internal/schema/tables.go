package schema

import (
	"fmt"
	"reflect"
	"strings"

	"entgo.io/ent"
	sqlschema "entgo.io/ent/dialect/sql/schema"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

var uuidType = uuid.UUID{}

// Table names as used by the repositories.
const (
	TableUsers            = "users"
	TablePlanos           = "planos"
	TableAssinaturas      = "assinaturas"
	TableCiclosPlano      = "ciclos_plano"
	TableConsultas        = "consultas"
	TableReservaSessao    = "reserva_sessao"
	TableCancelamentos    = "cancelamentos"
	TableCommissions      = "commissions"
	TableConsultasAvulsas = "consultas_avulsas"
	TableCreditosAvulsos  = "creditos_avulsos"
	TableAuditLogs        = "audit_logs"
)

// Tables is the migration target, built from the schema definitions above.
var Tables []*sqlschema.Table

func init() {
	users := Build(TableUsers, User{})
	planos := Build(TablePlanos, Plano{})
	assinaturas := Build(TableAssinaturas, Assinatura{})
	ciclos := Build(TableCiclosPlano, CicloPlano{})
	consultas := Build(TableConsultas, Consulta{})
	reservas := Build(TableReservaSessao, ReservaSessao{})
	cancelamentos := Build(TableCancelamentos, CancelamentoSessao{})
	commissions := Build(TableCommissions, Commission{})
	avulsas := Build(TableConsultasAvulsas, ConsultaAvulsa{})
	creditos := Build(TableCreditosAvulsos, CreditoAvulso{})
	audit := Build(TableAuditLogs, AuditLog{})

	foreignKey(assinaturas, "user_id", users, sqlschema.Cascade)
	foreignKey(assinaturas, "plano_id", planos, sqlschema.NoAction)
	foreignKey(ciclos, "assinatura_id", assinaturas, sqlschema.Cascade)
	foreignKey(consultas, "paciente_id", users, sqlschema.NoAction)
	foreignKey(consultas, "psicologo_id", users, sqlschema.SetNull)
	foreignKey(consultas, "ciclo_plano_id", ciclos, sqlschema.SetNull)
	foreignKey(reservas, "consulta_id", consultas, sqlschema.Cascade)
	foreignKey(cancelamentos, "consulta_id", consultas, sqlschema.Cascade)
	foreignKey(commissions, "consulta_id", consultas, sqlschema.Cascade)
	foreignKey(avulsas, "paciente_id", users, sqlschema.Cascade)
	foreignKey(creditos, "consulta_avulsa_id", avulsas, sqlschema.Cascade)

	Tables = []*sqlschema.Table{
		users, planos, assinaturas, ciclos, consultas, reservas,
		cancelamentos, commissions, avulsas, creditos, audit,
	}
}

// Build turns an ent schema definition into a migratable table. Mixin fields
// come first, so "id" always leads the column list.
func Build(name string, s ent.Interface) *sqlschema.Table {
	t := sqlschema.NewTable(name)

	var fields []ent.Field
	for _, m := range s.Mixin() {
		fields = append(fields, m.Fields()...)
	}
	fields = append(fields, s.Fields()...)

	for _, f := range fields {
		d := f.Descriptor()
		if d.Err != nil {
			panic(fmt.Sprintf("schema %s: field %s: %v", name, d.Name, d.Err))
		}
		c := &sqlschema.Column{
			Name:       d.Name,
			Type:       d.Info.Type,
			Unique:     d.Unique,
			Nullable:   d.Optional,
			Size:       int64(d.Size),
			SchemaType: d.SchemaType,
			Comment:    d.Comment,
			Enums: lo.Map(d.Enums, func(e struct{ N, V string }, _ int) string {
				return e.V
			}),
		}
		if d.Default != nil && reflect.TypeOf(d.Default).Kind() != reflect.Func {
			c.Default = d.Default
		}
		if d.Name == "id" {
			t.AddPrimary(c)
			continue
		}
		t.AddColumn(c)
	}

	for _, idx := range s.Indexes() {
		d := idx.Descriptor()
		t.AddIndex(name+"_"+strings.Join(d.Fields, "_"), d.Unique, d.Fields)
	}
	return t
}

func foreignKey(t *sqlschema.Table, column string, ref *sqlschema.Table, onDelete sqlschema.ReferenceOption) {
	c, ok := t.Column(column)
	if !ok {
		panic(fmt.Sprintf("schema %s: unknown column %s", t.Name, column))
	}
	refID, _ := ref.Column("id")
	t.AddForeignKey(&sqlschema.ForeignKey{
		Symbol:     t.Name + "_" + column + "_fk",
		Columns:    []*sqlschema.Column{c},
		RefTable:   ref,
		RefColumns: []*sqlschema.Column{refID},
		OnDelete:   onDelete,
	})
}
