package postgres

import (
	"context"
	"database/sql"

	"clinical-access-engine/internal/domain/audit"
	"clinical-access-engine/internal/domain/policies"
	"clinical-access-engine/internal/domain/requests"
)

type RequestsRepo struct {
	db *sql.DB
}

func NewRequestsRepo(db *sql.DB) *RequestsRepo {
	return &RequestsRepo{db: db}
}

const requestColumns = `
	id, tenant_id, professional_id,
	scope_kind, document_types, document_id,
	reason, status,
	decided_by, decided_at, decision_note,
	created_at
`

func (r *RequestsRepo) Create(ctx context.Context, req requests.AccessRequest) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO access_requests (
			id, tenant_id, professional_id,
			scope_kind, document_types, document_id,
			reason, status,
			decided_by, decided_at, decision_note,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		req.ID,
		req.TenantID,
		req.ProfessionalID,
		string(req.Scope.Kind),
		typesToTextArray(req.Scope.DocumentTypes),
		req.Scope.DocumentID,
		req.Reason,
		string(req.Status),
		req.DecidedBy,
		toNullTime(req.DecidedAt),
		req.DecisionNote,
		req.CreatedAt,
	)
	return err
}

func (r *RequestsRepo) GetByID(ctx context.Context, tenantID, id string) (requests.AccessRequest, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+requestColumns+`
		FROM access_requests
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)

	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return requests.AccessRequest{}, requests.ErrNotFound
	}
	return req, err
}

func (r *RequestsRepo) ListPending(ctx context.Context, tenantID string) ([]requests.AccessRequest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM access_requests
		WHERE tenant_id = $1 AND status = 'pending'
		ORDER BY created_at ASC, id ASC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]requests.AccessRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// Approve ejecuta la unidad atómica de la aprobación en una transacción:
// CAS del request (UPDATE condicionado a status='pending'), alta de la
// política MANUAL y append de los eventos. Si el CAS pierde la carrera se
// hace rollback y el caller recibe ErrConflict.
func (r *RequestsRepo) Approve(ctx context.Context, req requests.AccessRequest, p policies.AccessPolicy, events []audit.Event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := r.casDecisionTx(ctx, tx, req); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO access_policies (
			id, tenant_id, professional_id,
			scope_kind, document_types, document_id,
			duration_kind, expires_at,
			management, status,
			created_at, revoked_at, revoked_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		p.ID,
		p.TenantID,
		p.ProfessionalID,
		string(p.Scope.Kind),
		typesToTextArray(p.Scope.DocumentTypes),
		p.Scope.DocumentID,
		string(p.Duration.Kind),
		toNullTime(p.Duration.ExpiresAt),
		string(p.Management),
		string(p.Status),
		p.CreatedAt,
		toNullTime(p.RevokedAt),
		p.RevokedBy,
	); err != nil {
		return err
	}

	for _, e := range events {
		if err := insertEventTx(ctx, tx, e); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *RequestsRepo) Reject(ctx context.Context, req requests.AccessRequest, event audit.Event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := r.casDecisionTx(ctx, tx, req); err != nil {
		return err
	}
	if err := insertEventTx(ctx, tx, event); err != nil {
		return err
	}

	return tx.Commit()
}

// casDecisionTx aplica la transición de estado solo si la fila sigue
// pending. Cero filas afectadas => o no existe o alguien ya decidió.
func (r *RequestsRepo) casDecisionTx(ctx context.Context, tx *sql.Tx, req requests.AccessRequest) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE access_requests
		SET status = $3, decided_by = $4, decided_at = $5, decision_note = $6
		WHERE tenant_id = $1 AND id = $2 AND status = 'pending'
	`,
		req.TenantID,
		req.ID,
		string(req.Status),
		req.DecidedBy,
		toNullTime(req.DecidedAt),
		req.DecisionNote,
	)
	if err != nil {
		return err
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		var status string
		err := tx.QueryRowContext(ctx, `
			SELECT status FROM access_requests
			WHERE tenant_id = $1 AND id = $2
		`, req.TenantID, req.ID).Scan(&status)
		if err == sql.ErrNoRows {
			return requests.ErrNotFound
		}
		if err != nil {
			return err
		}
		return requests.ErrConflict
	}
	return nil
}

func scanRequest(row rowScanner) (requests.AccessRequest, error) {
	var (
		req       requests.AccessRequest
		scopeKind string
		docTypes  []string
		status    string
		decidedAt sql.NullTime
	)

	if err := row.Scan(
		&req.ID,
		&req.TenantID,
		&req.ProfessionalID,
		&scopeKind,
		&docTypes,
		&req.Scope.DocumentID,
		&req.Reason,
		&status,
		&req.DecidedBy,
		&decidedAt,
		&req.DecisionNote,
		&req.CreatedAt,
	); err != nil {
		return requests.AccessRequest{}, err
	}

	req.Scope.Kind = policies.ScopeKind(scopeKind)
	req.Scope.DocumentTypes = docTypes
	req.Status = requests.Status(status)
	req.DecidedAt = fromNullTime(decidedAt)
	return req, nil
}
