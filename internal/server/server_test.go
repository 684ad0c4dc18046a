package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"faulty-asset-tracker/internal/config"
	"faulty-asset-tracker/internal/database/dbtest"
	"faulty-asset-tracker/internal/metrics"
	"faulty-asset-tracker/internal/models"
	"faulty-asset-tracker/internal/users"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type testServer struct {
	t        *testing.T
	app      *fiber.App
	admin    string
	employee string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := dbtest.Open(t)
	cfg := &config.Config{
		JWTSecret:   "0123456789abcdef0123456789abcdef",
		JWTIssuer:   "faulty-asset-tracker",
		JWTAudience: "faulty-asset-tracker",
		JWTTTL:      time.Hour,
		CORSOrigins: "http://localhost:5173",
	}

	userSvc := users.NewService(db, zerolog.Nop())
	ctx := context.Background()
	for _, in := range []users.CreateUserInput{
		{Email: "admin@example.com", Password: "admin-pass", Name: "admin", Role: models.RoleAdmin},
		{Email: "jane@example.com", Password: "jane-pass", Name: "jane", Role: models.RoleEmployee},
	} {
		if _, err := userSvc.CreateUser(ctx, in); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
	}

	ts := &testServer{t: t, app: New(Deps{Config: cfg, DB: db, Log: zerolog.Nop(), Metrics: metrics.New()})}
	ts.admin = ts.login("admin@example.com", "admin-pass")
	ts.employee = ts.login("jane@example.com", "jane-pass")
	return ts
}

func (ts *testServer) do(method, path, token string, body any) (*http.Response, []byte) {
	ts.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			ts.t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.app.Test(req, -1)
	if err != nil {
		ts.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp, out
}

func (ts *testServer) login(email, password string) string {
	ts.t.Helper()
	resp, body := ts.do("POST", "/api/auth/login", "", map[string]string{"email": email, "password": password})
	if resp.StatusCode != http.StatusOK {
		ts.t.Fatalf("login %s: status %d: %s", email, resp.StatusCode, body)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.Token == "" {
		ts.t.Fatalf("login %s: bad body %s", email, body)
	}
	return out.Token
}

func expectStatus(t *testing.T, resp *http.Response, body []byte, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d: %s", want, resp.StatusCode, body)
	}
}

func assetBody(tag, serial, status string, cost *float64) map[string]any {
	return map[string]any{
		"category":      "Laptop",
		"assetName":     "Latitude 5420",
		"ticketId":      "INC-42",
		"serialNo":      serial,
		"assetTag":      tag,
		"branch":        "Lagos",
		"dateReceived":  "2025-02-10",
		"receivedBy":    "IT Desk",
		"vendor":        "Dell",
		"faultReported": "Cracked screen",
		"status":        status,
		"repairCost":    cost,
	}
}

type assetResponse struct {
	AssetTag       string   `json:"assetTag"`
	Status         string   `json:"status"`
	RepairCost     *float64 `json:"repairCost"`
	LastModifiedBy *string  `json:"lastModifiedBy"`
	LastModifiedAt *string  `json:"lastModifiedAt"`
}

func TestAssetLifecycleEndToEnd(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do("POST", "/api/assets", ts.employee, assetBody("T1", "S1", "Pending", nil))
	expectStatus(t, resp, body, http.StatusCreated)
	if loc := resp.Header.Get("Location"); loc != "/api/assets/T1" {
		t.Errorf("unexpected Location %q", loc)
	}

	resp, body = ts.do("GET", "/api/assets/T1", ts.employee, nil)
	expectStatus(t, resp, body, http.StatusOK)
	var got assetResponse
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.LastModifiedBy == nil || *got.LastModifiedBy != "jane" || got.LastModifiedAt == nil {
		t.Errorf("expected lastModifiedBy jane, got %+v", got)
	}

	fifty := 50.0
	resp, body = ts.do("PUT", "/api/assets/T1", ts.admin, assetBody("T1", "S1", "Repaired", &fifty))
	expectStatus(t, resp, body, http.StatusNoContent)

	resp, body = ts.do("GET", "/api/assets/T1", ts.employee, nil)
	expectStatus(t, resp, body, http.StatusOK)
	got = assetResponse{}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != "Repaired" || got.RepairCost == nil || *got.RepairCost != 50 {
		t.Errorf("unexpected asset after update: %+v", got)
	}
	if got.LastModifiedBy == nil || *got.LastModifiedBy != "admin" {
		t.Errorf("expected lastModifiedBy admin, got %v", got.LastModifiedBy)
	}

	resp, body = ts.do("GET", "/api/assets/T1/audit", ts.employee, nil)
	expectStatus(t, resp, body, http.StatusOK)
	var trail []models.AuditLog
	if err := json.Unmarshal(body, &trail); err != nil {
		t.Fatalf("decode trail: %v", err)
	}
	if len(trail) != 2 || trail[0].Action != "updated asset T1" || trail[1].Action != "created asset S1" {
		t.Errorf("unexpected trail: %s", body)
	}
}

func TestErrorStatuses(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do("GET", "/api/assets", "", nil)
	expectStatus(t, resp, body, http.StatusUnauthorized)
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err != nil || e.Error == "" {
		t.Errorf("expected error body, got %s", body)
	}

	resp, body = ts.do("POST", "/api/assets", ts.employee, assetBody("T1", "S1", "Broken", nil))
	expectStatus(t, resp, body, http.StatusBadRequest)

	neg := -0.01
	resp, body = ts.do("POST", "/api/assets", ts.employee, assetBody("T1", "S1", "Pending", &neg))
	expectStatus(t, resp, body, http.StatusBadRequest)

	resp, body = ts.do("POST", "/api/assets", ts.employee, assetBody("T1", "S1", "Pending", nil))
	expectStatus(t, resp, body, http.StatusCreated)
	resp, body = ts.do("POST", "/api/assets", ts.employee, assetBody("T1", "S2", "Pending", nil))
	expectStatus(t, resp, body, http.StatusConflict)

	resp, body = ts.do("GET", "/api/assets/missing", ts.employee, nil)
	expectStatus(t, resp, body, http.StatusNotFound)
	resp, body = ts.do("GET", "/api/assets/missing/audit", ts.employee, nil)
	expectStatus(t, resp, body, http.StatusNotFound)
	resp, body = ts.do("PUT", "/api/assets/missing", ts.employee, assetBody("missing", "S9", "Pending", nil))
	expectStatus(t, resp, body, http.StatusNotFound)

	resp, body = ts.do("DELETE", "/api/assets/T1", ts.employee, nil)
	expectStatus(t, resp, body, http.StatusForbidden)
}

func TestCreateRejectsInvalidKeysAndRanges(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do("POST", "/api/assets", ts.employee, assetBody("IT/LAP/001", "S1", "Pending", nil))
	expectStatus(t, resp, body, http.StatusBadRequest)
	if loc := resp.Header.Get("Location"); loc != "" {
		t.Errorf("unexpected Location %q", loc)
	}

	resp, body = ts.do("POST", "/api/assets", ts.employee, assetBody("stats", "S1", "Pending", nil))
	expectStatus(t, resp, body, http.StatusBadRequest)

	huge := 1e308
	resp, body = ts.do("POST", "/api/assets", ts.employee, assetBody("T1", "S1", "Pending", &huge))
	expectStatus(t, resp, body, http.StatusBadRequest)

	resp, body = ts.do("GET", "/api/assets", ts.employee, nil)
	expectStatus(t, resp, body, http.StatusOK)
	if string(bytes.TrimSpace(body)) != "[]" {
		t.Errorf("expected no assets, got %s", body)
	}
}

func TestSpanKeepsAssetTagAfterRequest(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	ts := newTestServer(t)
	resp, body := ts.do("POST", "/api/assets", ts.employee, assetBody("T1", "S1", "Pending", nil))
	expectStatus(t, resp, body, http.StatusCreated)
	resp, body = ts.do("PUT", "/api/assets/T1", ts.admin, assetBody("T1", "S1", "Repaired", nil))
	expectStatus(t, resp, body, http.StatusNoContent)

	// Later requests reuse the router's path buffers.
	for i := 0; i < 5; i++ {
		resp, body = ts.do("GET", "/api/assets/ZZZZZZZZZZZZ/audit", ts.employee, nil)
		expectStatus(t, resp, body, http.StatusNotFound)
	}

	var found bool
	for _, span := range rec.Ended() {
		if span.Name() != "assets.UpdateAsset" {
			continue
		}
		found = true
		for _, kv := range span.Attributes() {
			if kv.Key == "asset.tag" && kv.Value.AsString() != "T1" {
				t.Errorf("expected asset.tag T1, got %q", kv.Value.AsString())
			}
		}
	}
	if !found {
		t.Fatal("expected an assets.UpdateAsset span")
	}
}

func TestDeleteTwice(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do("POST", "/api/assets", ts.employee, assetBody("T1", "S1", "Pending", nil))
	expectStatus(t, resp, body, http.StatusCreated)

	resp, body = ts.do("DELETE", "/api/assets/T1", ts.admin, nil)
	expectStatus(t, resp, body, http.StatusNoContent)
	resp, body = ts.do("DELETE", "/api/assets/T1", ts.admin, nil)
	expectStatus(t, resp, body, http.StatusNotFound)

	resp, body = ts.do("GET", "/api/audit-logs?kind=delete", ts.admin, nil)
	expectStatus(t, resp, body, http.StatusOK)
	var logs []models.AuditLog
	if err := json.Unmarshal(body, &logs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(logs) != 1 || logs[0].Action != "deleted asset S1" {
		t.Errorf("unexpected delete log: %s", body)
	}

	resp, body = ts.do("GET", "/api/audit-logs", ts.employee, nil)
	expectStatus(t, resp, body, http.StatusForbidden)
}

func TestStatsAndSearch(t *testing.T) {
	ts := newTestServer(t)
	ten, five := 10.0, 5.0
	for _, b := range []map[string]any{
		assetBody("LAP-1", "S1", "Pending", &ten),
		assetBody("LAP-2", "S2", "Pending", nil),
		assetBody("PRN-1", "S3", "Repaired", &five),
	} {
		resp, body := ts.do("POST", "/api/assets", ts.employee, b)
		expectStatus(t, resp, body, http.StatusCreated)
	}

	resp, body := ts.do("GET", "/api/assets/stats", ts.employee, nil)
	expectStatus(t, resp, body, http.StatusOK)
	var st struct {
		TotalAssets     int64            `json:"totalAssets"`
		Pending         int64            `json:"pending"`
		Repaired        int64            `json:"repaired"`
		InRepair        int64            `json:"inRepair"`
		TotalRepairCost float64          `json:"totalRepairCost"`
		ByStatus        map[string]int64 `json:"byStatus"`
	}
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.TotalAssets != 3 || st.Pending != 2 || st.Repaired != 1 || st.InRepair != 0 || st.TotalRepairCost != 15 {
		t.Errorf("unexpected stats: %s", body)
	}
	if _, ok := st.ByStatus["Dispatched to Vendor"]; !ok {
		t.Errorf("expected zero-filled statuses: %s", body)
	}

	resp, body = ts.do("GET", "/api/assets/search?assetTag=lap", ts.employee, nil)
	expectStatus(t, resp, body, http.StatusOK)
	var found []assetResponse
	if err := json.Unmarshal(body, &found); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(found) != 2 {
		t.Errorf("expected 2 matches, got %s", body)
	}

	resp, body = ts.do("GET", "/api/assets/search", ts.employee, nil)
	expectStatus(t, resp, body, http.StatusBadRequest)

	resp, body = ts.do("GET", "/api/assets?status=Repaired", ts.employee, nil)
	expectStatus(t, resp, body, http.StatusOK)
	found = nil
	if err := json.Unmarshal(body, &found); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(found) != 1 || found[0].AssetTag != "PRN-1" {
		t.Errorf("unexpected filter result: %s", body)
	}
}

func TestAuthRoutes(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do("POST", "/api/auth/login", "", map[string]string{"email": "jane@example.com", "password": "wrong"})
	expectStatus(t, resp, body, http.StatusUnauthorized)

	// Query parameter login.
	resp, body = ts.do("POST", "/api/auth/login?email=jane@example.com&password=jane-pass", "", nil)
	expectStatus(t, resp, body, http.StatusOK)

	resp, body = ts.do("GET", "/api/auth/me", ts.employee, nil)
	expectStatus(t, resp, body, http.StatusOK)
	var me struct {
		Name  string   `json:"name"`
		Roles []string `json:"roles"`
	}
	if err := json.Unmarshal(body, &me); err != nil || me.Name != "jane" || len(me.Roles) != 1 {
		t.Errorf("unexpected /me body: %s", body)
	}

	resp, body = ts.do("PUT", "/api/auth/change-name", ts.employee, map[string]string{"newName": "admin"})
	expectStatus(t, resp, body, http.StatusConflict)

	resp, body = ts.do("PUT", "/api/auth/change-name", ts.employee, map[string]string{"newName": "Jane Doe"})
	expectStatus(t, resp, body, http.StatusOK)
	var renamed struct {
		Token       string `json:"token"`
		DisplayName string `json:"displayName"`
	}
	if err := json.Unmarshal(body, &renamed); err != nil || renamed.DisplayName != "Jane Doe" || renamed.Token == "" {
		t.Fatalf("unexpected change-name body: %s", body)
	}

	// The fresh token carries the new name into the audit log.
	resp, body = ts.do("POST", "/api/assets", renamed.Token, assetBody("T1", "S1", "Pending", nil))
	expectStatus(t, resp, body, http.StatusCreated)
	resp, body = ts.do("GET", "/api/assets/T1", ts.employee, nil)
	expectStatus(t, resp, body, http.StatusOK)
	var got assetResponse
	if err := json.Unmarshal(body, &got); err != nil || got.LastModifiedBy == nil || *got.LastModifiedBy != "Jane Doe" {
		t.Errorf("expected lastModifiedBy Jane Doe, got %s", body)
	}
}

func TestAdminUserRoutes(t *testing.T) {
	ts := newTestServer(t)

	newUser := map[string]string{"email": "bob@example.com", "password": "bob-pass-1", "name": "bob"}
	resp, body := ts.do("POST", "/api/admin/users", ts.employee, newUser)
	expectStatus(t, resp, body, http.StatusForbidden)

	resp, body = ts.do("POST", "/api/admin/users", ts.admin, newUser)
	expectStatus(t, resp, body, http.StatusCreated)
	resp, body = ts.do("POST", "/api/admin/users", ts.admin, newUser)
	expectStatus(t, resp, body, http.StatusConflict)

	resp, body = ts.do("GET", "/api/admin/users", ts.admin, nil)
	expectStatus(t, resp, body, http.StatusOK)
	var names []string
	if err := json.Unmarshal(body, &names); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(names) != 3 || names[0] != "admin" || names[1] != "bob" || names[2] != "jane" {
		t.Errorf("unexpected names: %v", names)
	}

	ts.login("bob@example.com", "bob-pass-1")
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do("GET", "/healthz", "", nil)
	expectStatus(t, resp, body, http.StatusOK)

	resp, body = ts.do("GET", "/metrics", "", nil)
	expectStatus(t, resp, body, http.StatusOK)
	if !bytes.Contains(body, []byte("faulty_assets_http_requests_total")) {
		t.Error("expected request counter in metrics output")
	}
}
