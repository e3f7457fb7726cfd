package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"clinical-access-engine/internal/domain/audit"
)

type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// Append inserta y devuelve el evento con el seq asignado por la
// secuencia de la tabla. No hay UPDATE ni DELETE sobre audit_events
// en ningún repo: el log es append-only por construcción.
func (r *AuditRepo) Append(ctx context.Context, e audit.Event) (audit.Event, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO audit_events (
			id, tenant_id, kind, actor_id,
			professional_id, document_id, document_type, outcome,
			policy_id, request_id, detail, occurred_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING seq
	`,
		e.ID,
		e.TenantID,
		string(e.Kind),
		e.ActorID,
		e.ProfessionalID,
		e.DocumentID,
		e.DocumentType,
		string(e.Outcome),
		e.PolicyID,
		e.RequestID,
		e.Detail,
		e.OccurredAt,
	).Scan(&e.Seq)
	if err != nil {
		return audit.Event{}, err
	}
	return e, nil
}

func (r *AuditRepo) Query(ctx context.Context, tenantID string, f audit.Filter) ([]audit.Event, error) {
	where := []string{"tenant_id = $1"}
	args := []any{tenantID}

	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.ProfessionalID != "" {
		add("professional_id = $%d", f.ProfessionalID)
	}
	if f.DocumentID != "" {
		add("document_id = $%d", f.DocumentID)
	}
	if f.Outcome != "" {
		add("outcome = $%d", string(f.Outcome))
	}
	if f.Kind != "" {
		add("kind = $%d", string(f.Kind))
	}
	if !f.From.IsZero() {
		add("occurred_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("occurred_at <= $%d", f.To)
	}

	query := `
		SELECT seq, id, tenant_id, kind, actor_id,
		       professional_id, document_id, document_type, outcome,
		       policy_id, request_id, detail, occurred_at
		FROM audit_events
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY occurred_at ASC, seq ASC
	`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]audit.Event, 0)
	for rows.Next() {
		var (
			e       audit.Event
			kind    string
			outcome string
		)
		if err := rows.Scan(
			&e.Seq,
			&e.ID,
			&e.TenantID,
			&kind,
			&e.ActorID,
			&e.ProfessionalID,
			&e.DocumentID,
			&e.DocumentType,
			&outcome,
			&e.PolicyID,
			&e.RequestID,
			&e.Detail,
			&e.OccurredAt,
		); err != nil {
			return nil, err
		}
		e.Kind = audit.Kind(kind)
		e.Outcome = audit.Outcome(outcome)
		out = append(out, e)
	}
	return out, rows.Err()
}

// insertEventTx comparte el INSERT con los repos que auditan dentro de
// una transacción (aprobación/rechazo de solicitudes).
func insertEventTx(ctx context.Context, tx *sql.Tx, e audit.Event) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO audit_events (
			id, tenant_id, kind, actor_id,
			professional_id, document_id, document_type, outcome,
			policy_id, request_id, detail, occurred_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		e.ID,
		e.TenantID,
		string(e.Kind),
		e.ActorID,
		e.ProfessionalID,
		e.DocumentID,
		e.DocumentType,
		string(e.Outcome),
		e.PolicyID,
		e.RequestID,
		e.Detail,
		e.OccurredAt,
	)
	return err
}
