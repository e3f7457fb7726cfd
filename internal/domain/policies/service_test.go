package policies

import (
	"context"
	"errors"
	"testing"
	"time"

	"clinical-access-engine/internal/domain/audit"
)

// -------------------------
// Test repo (in-memory)
// -------------------------

type testRepo struct {
	byID    map[string]AccessPolicy
	listErr error
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]AccessPolicy{}}
}

func (r *testRepo) Create(ctx context.Context, p AccessPolicy) error {
	if p.ID == "" {
		return errors.New("repo: id required")
	}
	if _, ok := r.byID[p.ID]; ok {
		return errors.New("repo: already exists")
	}
	r.byID[p.ID] = p
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, tenantID, id string) (AccessPolicy, error) {
	p, ok := r.byID[id]
	if !ok || p.TenantID != tenantID {
		return AccessPolicy{}, ErrNotFound
	}
	return p, nil
}

func (r *testRepo) ListByProfessional(ctx context.Context, tenantID, professionalID string) ([]AccessPolicy, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]AccessPolicy, 0)
	for _, p := range r.byID {
		if p.TenantID == tenantID && p.ProfessionalID == professionalID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *testRepo) ListByTenant(ctx context.Context, tenantID string) ([]AccessPolicy, error) {
	out := make([]AccessPolicy, 0)
	for _, p := range r.byID {
		if p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *testRepo) Revoke(ctx context.Context, tenantID, id, actorID string, at time.Time) (AccessPolicy, error) {
	p, ok := r.byID[id]
	if !ok || p.TenantID != tenantID {
		return AccessPolicy{}, ErrNotFound
	}
	if p.Status == StatusRevoked {
		return AccessPolicy{}, ErrConflict
	}
	p.Status = StatusRevoked
	p.RevokedAt = &at
	p.RevokedBy = actorID
	r.byID[id] = p
	return p, nil
}

type testRecorder struct {
	events []audit.Event
	fail   error
}

func (r *testRecorder) Append(ctx context.Context, e audit.Event) (audit.Event, error) {
	if r.fail != nil {
		return audit.Event{}, r.fail
	}
	e.Seq = uint64(len(r.events) + 1)
	r.events = append(r.events, e)
	return e, nil
}

// -------------------------
// Tests
// -------------------------

func TestService_Create_ValidatesScopeShape(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo, &testRecorder{})

	// by_type sin tipos
	_, err := svc.Create(context.Background(), "t1", "admin-1", CreateInput{
		ProfessionalID: "prof-1",
		Scope:          Scope{Kind: ScopeDocumentsByType},
		Duration:       Duration{Kind: DurationIndefinite},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for by_type without types, got %v", err)
	}

	// specific_document sin id
	_, err = svc.Create(context.Background(), "t1", "admin-1", CreateInput{
		ProfessionalID: "prof-1",
		Scope:          Scope{Kind: ScopeSpecificDocument},
		Duration:       Duration{Kind: DurationIndefinite},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for specific_document without id, got %v", err)
	}

	// all_documents con id puntual de más
	_, err = svc.Create(context.Background(), "t1", "admin-1", CreateInput{
		ProfessionalID: "prof-1",
		Scope:          Scope{Kind: ScopeAllDocuments, DocumentID: "doc-1"},
		Duration:       Duration{Kind: DurationIndefinite},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for all_documents with document id, got %v", err)
	}

	if len(repo.byID) != 0 {
		t.Fatalf("no policy should have been persisted, got %d", len(repo.byID))
	}
}

func TestService_Create_ValidatesDuration(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo, &testRecorder{})

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	// temporary sin expiresAt
	_, err := svc.Create(context.Background(), "t1", "admin-1", CreateInput{
		ProfessionalID: "prof-1",
		Scope:          Scope{Kind: ScopeAllDocuments},
		Duration:       Duration{Kind: DurationTemporary},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for temporary without expiry, got %v", err)
	}

	// temporary con expiresAt en el pasado
	past := now.Add(-time.Hour)
	_, err = svc.Create(context.Background(), "t1", "admin-1", CreateInput{
		ProfessionalID: "prof-1",
		Scope:          Scope{Kind: ScopeAllDocuments},
		Duration:       Duration{Kind: DurationTemporary, ExpiresAt: &past},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for past expiry, got %v", err)
	}

	// indefinite no lleva expiresAt
	future := now.Add(time.Hour)
	_, err = svc.Create(context.Background(), "t1", "admin-1", CreateInput{
		ProfessionalID: "prof-1",
		Scope:          Scope{Kind: ScopeAllDocuments},
		Duration:       Duration{Kind: DurationIndefinite, ExpiresAt: &future},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for indefinite with expiry, got %v", err)
	}
}

func TestService_Create_PersistsAutomaticAndAudits(t *testing.T) {
	repo := newTestRepo()
	rec := &testRecorder{}
	svc := NewService(repo, rec)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	p, err := svc.Create(context.Background(), "t1", "admin-1", CreateInput{
		ProfessionalID: "prof-1",
		Scope:          Scope{Kind: ScopeDocumentsByType, DocumentTypes: []string{"LAB_RESULT"}},
		Duration:       Duration{Kind: DurationIndefinite},
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if p.Management != ManagementAutomatic {
		t.Fatalf("expected automatic management, got %s", p.Management)
	}
	if p.Status != StatusActive || p.CreatedAt != now {
		t.Fatalf("unexpected policy state: %+v", p)
	}

	if len(rec.events) != 1 {
		t.Fatalf("expected 1 audit event, got %d", len(rec.events))
	}
	e := rec.events[0]
	if e.Kind != audit.KindPolicyCreated || e.PolicyID != p.ID || e.ActorID != "admin-1" {
		t.Fatalf("unexpected audit event: %+v", e)
	}
}

func TestService_ActiveForProfessional_FiltersRevokedExpiredAndOtherTenants(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo, &testRecorder{})

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	expired := now.Add(-time.Minute)
	alive := now.Add(time.Hour)
	revokedAt := now.Add(-time.Hour)

	seed := []AccessPolicy{
		{ID: "p-active", TenantID: "t1", ProfessionalID: "prof-1", Scope: Scope{Kind: ScopeAllDocuments}, Duration: Duration{Kind: DurationIndefinite}, Status: StatusActive, CreatedAt: now.Add(-3 * time.Hour)},
		{ID: "p-temp", TenantID: "t1", ProfessionalID: "prof-1", Scope: Scope{Kind: ScopeAllDocuments}, Duration: Duration{Kind: DurationTemporary, ExpiresAt: &alive}, Status: StatusActive, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "p-expired", TenantID: "t1", ProfessionalID: "prof-1", Scope: Scope{Kind: ScopeAllDocuments}, Duration: Duration{Kind: DurationTemporary, ExpiresAt: &expired}, Status: StatusActive, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "p-revoked", TenantID: "t1", ProfessionalID: "prof-1", Scope: Scope{Kind: ScopeAllDocuments}, Duration: Duration{Kind: DurationIndefinite}, Status: StatusRevoked, RevokedAt: &revokedAt, CreatedAt: now.Add(-4 * time.Hour)},
		{ID: "p-other-tenant", TenantID: "t2", ProfessionalID: "prof-1", Scope: Scope{Kind: ScopeAllDocuments}, Duration: Duration{Kind: DurationIndefinite}, Status: StatusActive, CreatedAt: now.Add(-1 * time.Hour)},
	}
	for _, p := range seed {
		repo.byID[p.ID] = p
	}

	out, err := svc.ActiveForProfessional(context.Background(), "t1", "prof-1")
	if err != nil {
		t.Fatalf("ActiveForProfessional error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 active policies, got %d", len(out))
	}
	// orden por created_at asc
	if out[0].ID != "p-active" || out[1].ID != "p-temp" {
		t.Fatalf("unexpected order: %s, %s", out[0].ID, out[1].ID)
	}
}

func TestService_ActiveForProfessional_StoreDown_Unavailable(t *testing.T) {
	repo := newTestRepo()
	repo.listErr = errors.New("connection refused")
	svc := NewService(repo, &testRecorder{})

	_, err := svc.ActiveForProfessional(context.Background(), "t1", "prof-1")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestService_Revoke_RemovesMatchingPowerImmediately(t *testing.T) {
	repo := newTestRepo()
	rec := &testRecorder{}
	svc := NewService(repo, rec)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	p, err := svc.Create(context.Background(), "t1", "admin-1", CreateInput{
		ProfessionalID: "prof-1",
		Scope:          Scope{Kind: ScopeAllDocuments},
		Duration:       Duration{Kind: DurationIndefinite},
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	revoked, err := svc.Revoke(context.Background(), "t1", p.ID, "admin-2")
	if err != nil {
		t.Fatalf("Revoke error: %v", err)
	}
	if revoked.Status != StatusRevoked || revoked.RevokedBy != "admin-2" {
		t.Fatalf("unexpected revoked policy: %+v", revoked)
	}

	out, err := svc.ActiveForProfessional(context.Background(), "t1", "prof-1")
	if err != nil {
		t.Fatalf("ActiveForProfessional error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected no active policies after revoke, got %d", len(out))
	}

	// evento POLICY_REVOKED registrado
	last := rec.events[len(rec.events)-1]
	if last.Kind != audit.KindPolicyRevoked || last.PolicyID != p.ID {
		t.Fatalf("unexpected last audit event: %+v", last)
	}
}

func TestService_Revoke_SecondRevokeConflicts(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo, &testRecorder{})

	p, err := svc.Create(context.Background(), "t1", "admin-1", CreateInput{
		ProfessionalID: "prof-1",
		Scope:          Scope{Kind: ScopeAllDocuments},
		Duration:       Duration{Kind: DurationIndefinite},
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if _, err := svc.Revoke(context.Background(), "t1", p.ID, "admin-1"); err != nil {
		t.Fatalf("first Revoke error: %v", err)
	}
	if _, err := svc.Revoke(context.Background(), "t1", p.ID, "admin-1"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on second revoke, got %v", err)
	}
}

func TestService_Revoke_UnknownPolicy_NotFound(t *testing.T) {
	svc := NewService(newTestRepo(), &testRecorder{})

	if _, err := svc.Revoke(context.Background(), "t1", "nope", "admin-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestService_Revoke_WrongTenant_NotFound(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo, &testRecorder{})

	p, err := svc.Create(context.Background(), "t1", "admin-1", CreateInput{
		ProfessionalID: "prof-1",
		Scope:          Scope{Kind: ScopeAllDocuments},
		Duration:       Duration{Kind: DurationIndefinite},
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	// mismo id, otro tenant: estructuralmente invisible
	if _, err := svc.Revoke(context.Background(), "t2", p.ID, "admin-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound across tenants, got %v", err)
	}
}
