package postgres

import (
	"context"
	"database/sql"
	"time"

	"clinical-access-engine/internal/domain/policies"
)

type PoliciesRepo struct {
	db *sql.DB
}

func NewPoliciesRepo(db *sql.DB) *PoliciesRepo {
	return &PoliciesRepo{db: db}
}

const policyColumns = `
	id, tenant_id, professional_id,
	scope_kind, document_types, document_id,
	duration_kind, expires_at,
	management, status,
	created_at, revoked_at, revoked_by
`

func (r *PoliciesRepo) Create(ctx context.Context, p policies.AccessPolicy) error {
	_, err := r.db.ExecContext(ctx, `
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
	)
	return err
}

func (r *PoliciesRepo) GetByID(ctx context.Context, tenantID, id string) (policies.AccessPolicy, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+policyColumns+`
		FROM access_policies
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)

	p, err := scanPolicy(row)
	if err == sql.ErrNoRows {
		return policies.AccessPolicy{}, policies.ErrNotFound
	}
	return p, err
}

func (r *PoliciesRepo) ListByProfessional(ctx context.Context, tenantID, professionalID string) ([]policies.AccessPolicy, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+policyColumns+`
		FROM access_policies
		WHERE tenant_id = $1 AND professional_id = $2
		ORDER BY created_at ASC, id ASC
	`, tenantID, professionalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectPolicies(rows)
}

func (r *PoliciesRepo) ListByTenant(ctx context.Context, tenantID string) ([]policies.AccessPolicy, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+policyColumns+`
		FROM access_policies
		WHERE tenant_id = $1
		ORDER BY created_at ASC, id ASC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectPolicies(rows)
}

// Revoke es el CAS sobre status: el UPDATE condicionado a status='active'
// garantiza a-lo-sumo-una revocación; rows affected 0 distingue
// inexistente de ya-revocada.
func (r *PoliciesRepo) Revoke(ctx context.Context, tenantID, id, actorID string, at time.Time) (policies.AccessPolicy, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE access_policies
		SET status = 'revoked', revoked_at = $3, revoked_by = $4
		WHERE tenant_id = $1 AND id = $2 AND status = 'active'
	`, tenantID, id, at, actorID)
	if err != nil {
		return policies.AccessPolicy{}, err
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		p, err := r.GetByID(ctx, tenantID, id)
		if err != nil {
			return policies.AccessPolicy{}, err
		}
		if p.Status == policies.StatusRevoked {
			return policies.AccessPolicy{}, policies.ErrConflict
		}
		return policies.AccessPolicy{}, policies.ErrNotFound
	}

	return r.GetByID(ctx, tenantID, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (policies.AccessPolicy, error) {
	var (
		p            policies.AccessPolicy
		scopeKind    string
		docTypes     []string
		durationKind string
		expiresAt    sql.NullTime
		management   string
		status       string
		revokedAt    sql.NullTime
	)

	if err := row.Scan(
		&p.ID,
		&p.TenantID,
		&p.ProfessionalID,
		&scopeKind,
		&docTypes,
		&p.Scope.DocumentID,
		&durationKind,
		&expiresAt,
		&management,
		&status,
		&p.CreatedAt,
		&revokedAt,
		&p.RevokedBy,
	); err != nil {
		return policies.AccessPolicy{}, err
	}

	p.Scope.Kind = policies.ScopeKind(scopeKind)
	p.Scope.DocumentTypes = docTypes
	p.Duration.Kind = policies.DurationKind(durationKind)
	p.Duration.ExpiresAt = fromNullTime(expiresAt)
	p.Management = policies.ManagementType(management)
	p.Status = policies.Status(status)
	p.RevokedAt = fromNullTime(revokedAt)
	return p, nil
}

func collectPolicies(rows *sql.Rows) ([]policies.AccessPolicy, error) {
	out := make([]policies.AccessPolicy, 0)
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func typesToTextArray(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	return in
}
