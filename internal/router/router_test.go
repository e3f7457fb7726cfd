package router_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"clinical-access-engine/internal/router"
)

func TestHTTP_EndToEnd_RequestApprovalAndEvaluation(t *testing.T) {
	t.Setenv("DB_DSN", "")
	ts := httptest.NewServer(router.NewRouter(router.Options{AuthVerifier: nil}))
	defer ts.Close()

	const (
		tenant  = "T1"
		prof    = "P1"
		adminID = "actorA"
	)

	// 1) P1 pide acceso a resultados de laboratorio
	var requestID string
	{
		st, body := doReq(t, ts.URL, "POST", "/requests", prof, tenant, "", map[string]any{
			"scope": map[string]any{
				"kind":           "documents_by_type",
				"document_types": []string{"LAB_RESULT"},
			},
			"reason": "f/u",
		})
		if st != http.StatusCreated {
			t.Fatalf("expected 201 submit, got %d body=%s", st, string(body))
		}
		var resp struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}
		mustUnmarshal(t, body, &resp)
		if resp.Status != "pending" {
			t.Fatalf("expected pending, got %s", resp.Status)
		}
		requestID = resp.ID
	}

	// 2) Antes de aprobar: evaluación DENIED (y queda auditada igual)
	{
		st, body := doReq(t, ts.URL, "POST", "/access/evaluate", prof, tenant, "", map[string]any{
			"document_id":   "doc123",
			"document_type": "LAB_RESULT",
		})
		if st != http.StatusOK {
			t.Fatalf("expected 200 evaluate, got %d body=%s", st, string(body))
		}
		var resp struct {
			Outcome         string `json:"outcome"`
			MatchedPolicyID string `json:"matched_policy_id"`
		}
		mustUnmarshal(t, body, &resp)
		if resp.Outcome != "denied" || resp.MatchedPolicyID != "" {
			t.Fatalf("expected denied without match, got %+v", resp)
		}
	}

	// 3) Un profesional sin rol admin no puede aprobar
	{
		st, _ := doReq(t, ts.URL, "POST", "/requests/"+requestID+"/approve", prof, tenant, "", map[string]any{
			"duration": map[string]any{"kind": "indefinite"},
		})
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 approve without admin role, got %d", st)
		}
	}

	// 4) El admin ve el request en la cola FIFO
	{
		st, body := doReq(t, ts.URL, "GET", "/requests/pending", adminID, tenant, "admin", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 pending, got %d body=%s", st, string(body))
		}
		var items []struct {
			ID string `json:"id"`
		}
		mustUnmarshal(t, body, &items)
		if len(items) != 1 || items[0].ID != requestID {
			t.Fatalf("expected single pending request %s, got %+v", requestID, items)
		}
	}

	// 5) Aprobación con duración temporaria de 30 días
	var policyID string
	{
		st, body := doReq(t, ts.URL, "POST", "/requests/"+requestID+"/approve", adminID, tenant, "admin", map[string]any{
			"duration": map[string]any{"kind": "temporary", "days": 30},
		})
		if st != http.StatusOK {
			t.Fatalf("expected 200 approve, got %d body=%s", st, string(body))
		}
		var resp struct {
			Request struct {
				Status    string `json:"status"`
				DecidedBy string `json:"decided_by"`
			} `json:"request"`
			PolicyID string `json:"policy_id"`
		}
		mustUnmarshal(t, body, &resp)
		if resp.Request.Status != "approved" || resp.Request.DecidedBy != adminID {
			t.Fatalf("unexpected approve response: %+v", resp)
		}
		if resp.PolicyID == "" {
			t.Fatalf("expected synthesized policy id")
		}
		policyID = resp.PolicyID
	}

	// 6) Segundo approve: 409, alguien ya decidió
	{
		st, _ := doReq(t, ts.URL, "POST", "/requests/"+requestID+"/approve", adminID, tenant, "admin", map[string]any{
			"duration": map[string]any{"kind": "indefinite"},
		})
		if st != http.StatusConflict {
			t.Fatalf("expected 409 on second approve, got %d", st)
		}
	}

	// 7) P1 ahora está ALLOWED para LAB_RESULT, con la política nueva
	{
		st, body := doReq(t, ts.URL, "POST", "/access/evaluate", prof, tenant, "", map[string]any{
			"document_id":   "doc123",
			"document_type": "LAB_RESULT",
		})
		if st != http.StatusOK {
			t.Fatalf("expected 200 evaluate, got %d body=%s", st, string(body))
		}
		var resp struct {
			Outcome         string `json:"outcome"`
			MatchedPolicyID string `json:"matched_policy_id"`
		}
		mustUnmarshal(t, body, &resp)
		if resp.Outcome != "allowed" || resp.MatchedPolicyID != policyID {
			t.Fatalf("expected allowed by %s, got %+v", policyID, resp)
		}
	}

	// 8) Otro tipo de documento sigue DENIED
	{
		st, body := doReq(t, ts.URL, "POST", "/access/evaluate", prof, tenant, "", map[string]any{
			"document_id":   "doc123",
			"document_type": "RADIOLOGY",
		})
		if st != http.StatusOK {
			t.Fatalf("expected 200 evaluate, got %d body=%s", st, string(body))
		}
		var resp struct {
			Outcome string `json:"outcome"`
		}
		mustUnmarshal(t, body, &resp)
		if resp.Outcome != "denied" {
			t.Fatalf("expected denied for RADIOLOGY, got %+v", resp)
		}
	}

	// 9) Mismo profesional, otro tenant: las políticas no viajan
	{
		st, body := doReq(t, ts.URL, "POST", "/access/evaluate", prof, "T2", "", map[string]any{
			"document_id":   "doc123",
			"document_type": "LAB_RESULT",
		})
		if st != http.StatusOK {
			t.Fatalf("expected 200 evaluate, got %d body=%s", st, string(body))
		}
		var resp struct {
			Outcome string `json:"outcome"`
		}
		mustUnmarshal(t, body, &resp)
		if resp.Outcome != "denied" {
			t.Fatalf("expected denied in other tenant, got %+v", resp)
		}
	}

	// 10) El audit log tiene la historia completa del tenant
	{
		st, body := doReq(t, ts.URL, "GET", "/audit", adminID, tenant, "admin", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 audit, got %d body=%s", st, string(body))
		}
		var events []struct {
			Kind string `json:"kind"`
			Seq  uint64 `json:"seq"`
		}
		mustUnmarshal(t, body, &events)

		// REQUEST_CREATED, ACCESS_DENIED, REQUEST_APPROVED, POLICY_CREATED,
		// ACCESS_ALLOWED, ACCESS_DENIED
		wantKinds := []string{
			"REQUEST_CREATED",
			"ACCESS_DENIED",
			"REQUEST_APPROVED",
			"POLICY_CREATED",
			"ACCESS_ALLOWED",
			"ACCESS_DENIED",
		}
		if len(events) != len(wantKinds) {
			t.Fatalf("expected %d audit events, got %d: %+v", len(wantKinds), len(events), events)
		}
		for i, want := range wantKinds {
			if events[i].Kind != want {
				t.Fatalf("event %d: expected %s, got %s", i, want, events[i].Kind)
			}
			if events[i].Seq != uint64(i+1) {
				t.Fatalf("event %d: expected seq %d, got %d", i, i+1, events[i].Seq)
			}
		}
	}

	// 11) Reporte de denegaciones sobre las 3 evaluaciones del tenant
	{
		st, body := doReq(t, ts.URL, "GET", "/reports/denials?window_days=1", adminID, tenant, "admin", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 denials report, got %d body=%s", st, string(body))
		}
		var rep struct {
			Evaluations int `json:"evaluations"`
			Denials     int `json:"denials"`
		}
		mustUnmarshal(t, body, &rep)
		if rep.Evaluations != 3 || rep.Denials != 2 {
			t.Fatalf("expected 3 evaluations / 2 denials, got %+v", rep)
		}
	}

	// 12) Revocar la política corta el acceso de inmediato
	{
		st, body := doReq(t, ts.URL, "POST", "/policies/"+policyID+"/revoke", adminID, tenant, "admin", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 revoke, got %d body=%s", st, string(body))
		}

		st, body = doReq(t, ts.URL, "POST", "/access/evaluate", prof, tenant, "", map[string]any{
			"document_id":   "doc123",
			"document_type": "LAB_RESULT",
		})
		if st != http.StatusOK {
			t.Fatalf("expected 200 evaluate, got %d body=%s", st, string(body))
		}
		var resp struct {
			Outcome string `json:"outcome"`
		}
		mustUnmarshal(t, body, &resp)
		if resp.Outcome != "denied" {
			t.Fatalf("expected denied after revoke, got %+v", resp)
		}
	}
}

func TestHTTP_PoliciesRequireAdmin(t *testing.T) {
	t.Setenv("DB_DSN", "")
	ts := httptest.NewServer(router.NewRouter(router.Options{AuthVerifier: nil}))
	defer ts.Close()

	// crear política directa requiere admin
	st, _ := doReq(t, ts.URL, "POST", "/policies", "P1", "T1", "", map[string]any{
		"professional_id": "P2",
		"scope":           map[string]any{"kind": "all_documents"},
		"duration":        map[string]any{"kind": "indefinite"},
	})
	if st != http.StatusForbidden {
		t.Fatalf("expected 403 create policy without admin, got %d", st)
	}

	// sin identidad: 401
	st, _ = doReq(t, ts.URL, "GET", "/policies", "", "", "", nil)
	if st != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", st)
	}

	// listar políticas de otro profesional sin admin: 403
	st, _ = doReq(t, ts.URL, "GET", "/policies?professional_id=P2", "P1", "T1", "", nil)
	if st != http.StatusForbidden {
		t.Fatalf("expected 403 listing another professional, got %d", st)
	}
}

func TestHTTP_DirectPolicyIsAutomatic(t *testing.T) {
	t.Setenv("DB_DSN", "")
	ts := httptest.NewServer(router.NewRouter(router.Options{AuthVerifier: nil}))
	defer ts.Close()

	st, body := doReq(t, ts.URL, "POST", "/policies", "admin-1", "T1", "admin", map[string]any{
		"professional_id": "P2",
		"scope":           map[string]any{"kind": "specific_document", "document_id": "doc42"},
		"duration":        map[string]any{"kind": "indefinite"},
	})
	if st != http.StatusCreated {
		t.Fatalf("expected 201 create policy, got %d body=%s", st, string(body))
	}
	var resp struct {
		Management string `json:"management"`
		Status     string `json:"status"`
	}
	mustUnmarshal(t, body, &resp)
	if resp.Management != "automatic" || resp.Status != "active" {
		t.Fatalf("unexpected policy: %+v", resp)
	}

	// P2 puede leer exactamente ese documento y ningún otro
	st, body = doReq(t, ts.URL, "POST", "/access/evaluate", "P2", "T1", "", map[string]any{
		"document_id":   "doc42",
		"document_type": "LAB_RESULT",
	})
	if st != http.StatusOK {
		t.Fatalf("expected 200 evaluate, got %d body=%s", st, string(body))
	}
	var eval struct {
		Outcome string `json:"outcome"`
	}
	mustUnmarshal(t, body, &eval)
	if eval.Outcome != "allowed" {
		t.Fatalf("expected allowed for doc42, got %+v", eval)
	}

	st, body = doReq(t, ts.URL, "POST", "/access/evaluate", "P2", "T1", "", map[string]any{
		"document_id":   "doc43",
		"document_type": "LAB_RESULT",
	})
	if st != http.StatusOK {
		t.Fatalf("expected 200 evaluate, got %d body=%s", st, string(body))
	}
	mustUnmarshal(t, body, &eval)
	if eval.Outcome != "denied" {
		t.Fatalf("expected denied for doc43, got %+v", eval)
	}
}

// -------------------------
// helpers
// -------------------------

func doReq(t *testing.T, baseURL, method, path, userID, tenantID, role string, payload map[string]any) (int, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if userID != "" {
		req.Header.Set("X-Debug-User-ID", userID)
	}
	if tenantID != "" {
		req.Header.Set("X-Debug-Tenant-ID", tenantID)
	}
	if role != "" {
		req.Header.Set("X-Debug-Role", role)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, b
}

func mustUnmarshal(t *testing.T, body []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("unmarshal %s: %v", string(body), err)
	}
}
