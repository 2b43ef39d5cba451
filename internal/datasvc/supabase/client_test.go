package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"wastechem.org/internal/auth"
	"wastechem.org/internal/datasvc"
)

const testUserID = "8d0f7c3e-5a4b-4f0e-9b8a-2f1d6c7e9a10"

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/", "service-key", "anon-key", WithTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New("", "s", "a"); err == nil {
		t.Fatal("expected error for empty url")
	}
	if _, err := New("http://x", "", "a"); err == nil {
		t.Fatal("expected error for missing service key")
	}
}

func TestSelectEncodesQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/rest/v1/waste" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("apikey") != "service-key" || r.Header.Get("Authorization") != "Bearer service-key" {
			t.Errorf("missing service credentials: %v", r.Header)
		}
		q := r.URL.Query()
		checks := map[string]string{
			"select":     "*",
			"name":       "ilike.%drum%",
			"category":   "eq.Solvent",
			"order":      "created_at.desc",
			"limit":      "5",
			"role_id":    "not.is.null",
			"id":         "in.(a,b)",
			"expiration": "lte.2025-07-01",
		}
		for k, want := range checks {
			if got := q.Get(k); got != want {
				t.Errorf("param %s = %q, want %q", k, got, want)
			}
		}
		_, _ = w.Write([]byte(`[{"id":"w1","name":"Drum"}]`))
	})

	q := datasvc.From("waste").
		Where(datasvc.Contains("name", "drum"), datasvc.Eq("category", "Solvent"), datasvc.NotNull("role_id"),
			datasvc.In("id", []string{"a", "b"}), datasvc.Lte("expiration", "2025-07-01")).
		Order("created_at", true).
		Take(5)
	res, err := c.Select(context.Background(), q)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(res.Rows) != 1 || res.Rows[0]["name"] != "Drum" {
		t.Fatalf("unexpected rows %+v", res.Rows)
	}
	if res.Count != nil {
		t.Fatalf("count should be nil when not requested")
	}
}

func TestSelectCountOnlyUsesHead(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method = %s, want HEAD", r.Method)
		}
		if !strings.Contains(r.Header.Get("Prefer"), "count=exact") {
			t.Errorf("Prefer = %q", r.Header.Get("Prefer"))
		}
		w.Header().Set("Content-Range", "*/17")
	})
	res, err := c.Select(context.Background(), datasvc.From("chemical").CountOnly())
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if res.CountOrZero() != 17 {
		t.Fatalf("count = %d, want 17", res.CountOrZero())
	}
}

func TestInsertReturnsRepresentation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.Contains(r.Header.Get("Prefer"), "return=representation") {
			t.Errorf("unexpected request %s prefer=%q", r.Method, r.Header.Get("Prefer"))
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		body["id"] = "new-id"
		_ = json.NewEncoder(w).Encode([]map[string]any{body})
	})
	row, err := c.Insert(context.Background(), "waste", datasvc.Row{"name": "Drum"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if row["id"] != "new-id" || row["name"] != "Drum" {
		t.Fatalf("unexpected row %+v", row)
	}
}

func TestUpdateAndDeleteSendFilters(t *testing.T) {
	methods := make(chan string, 2)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		methods <- r.Method
		if r.URL.Query().Get("id") != "eq.w1" {
			t.Errorf("id filter = %q", r.URL.Query().Get("id"))
		}
		_, _ = w.Write([]byte(`[]`))
	})
	rows, err := c.Update(context.Background(), "waste", datasvc.Row{"status": "Closed"}, datasvc.Eq("id", "w1"))
	if err != nil || len(rows) != 0 {
		t.Fatalf("Update: %v %v", rows, err)
	}
	if _, err := c.Delete(context.Background(), "waste", datasvc.Eq("id", "w1")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := <-methods + "," + <-methods; got != "PATCH,DELETE" {
		t.Fatalf("methods = %v", got)
	}
}

func TestConflictIsReported(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":"23505","message":"duplicate key value"}`))
	})
	_, err := c.Insert(context.Background(), "roles", datasvc.Row{"name": "admin"})
	var de *datasvc.Error
	if !errors.As(err, &de) {
		t.Fatalf("expected *datasvc.Error, got %v", err)
	}
	if de.Message != "duplicate key value" || !datasvc.IsConflict(err) {
		t.Fatalf("unexpected error %+v", de)
	}
}

func TestRestErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&url.Error{Op: "Get", URL: "http://x", Err: errors.New("connection refused")}, 0},
		{context.DeadlineExceeded, 0},
		{errors.New("(23503) insert or update violates foreign key constraint"), http.StatusConflict},
		{errors.New("(PGRST116) JSON object requested, multiple (or no) rows returned"), http.StatusBadRequest},
		{errors.New("(XX000) internal error"), http.StatusInternalServerError},
		{errors.New("error parsing error response"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		var de *datasvc.Error
		if !errors.As(restError("select", "waste", tc.err), &de) {
			t.Fatalf("%v: not a *datasvc.Error", tc.err)
		}
		if de.Status != tc.want {
			t.Errorf("%v: status = %d, want %d", tc.err, de.Status, tc.want)
		}
	}
}

func TestCallStopsAtTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	_, err := call(context.Background(), 20*time.Millisecond, func() (int, error) {
		<-release
		return 1, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestVerify(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/user" || r.Header.Get("apikey") != "anon-key" {
			t.Errorf("unexpected request %s apikey=%q", r.URL.Path, r.Header.Get("apikey"))
		}
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"msg":"invalid JWT"}`))
			return
		}
		_, _ = fmt.Fprintf(w, `{"id":%q,"email":"ops@example.com","aud":"authenticated"}`, testUserID)
	})

	id, err := c.Verify(context.Background(), "good")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.ID != testUserID || id.Email != "ops@example.com" {
		t.Fatalf("unexpected identity %+v", id)
	}
	if _, err := c.Verify(context.Background(), "bad"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := c.Verify(context.Background(), " "); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for blank token, got %v", err)
	}
}

func TestPing(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/health" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"version":"v2","name":"GoTrue","description":"auth"}`))
	})
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	healthy.Store(false)
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected ping failure")
	}
}

func TestSignUploadReportsTokenExpiry(t *testing.T) {
	exp := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"url": "certificates/u-1/1700-cert_v2.pdf",
		"exp": exp.Unix(),
	}).SignedString([]byte("storage-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Path != "/storage/v1/object/upload/sign/certificates/u-1/1700-cert_v2.pdf" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer service-key" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		_, _ = fmt.Fprintf(w, `{"url":"/object/upload/sign/certificates/u-1/1700-cert_v2.pdf?token=%s"}`, token)
	})
	c.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	out, err := c.SignUpload(context.Background(), "certificates", "u-1/1700-cert_v2.pdf", 15*time.Minute)
	if err != nil {
		t.Fatalf("SignUpload: %v", err)
	}
	if out.Token != token {
		t.Fatalf("token = %q", out.Token)
	}
	if !strings.HasSuffix(out.SignedURL, "/storage/v1/object/upload/sign/certificates/u-1/1700-cert_v2.pdf?token="+token) {
		t.Fatalf("signed url = %q", out.SignedURL)
	}
	if !out.ExpiresAt.Equal(exp) {
		t.Fatalf("expires_at = %v, want %v", out.ExpiresAt, exp)
	}
}

func TestSignUploadWithoutTokenFails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	if _, err := c.SignUpload(context.Background(), "sds", "u-1/1-a.pdf", time.Minute); err == nil {
		t.Fatal("expected error when no signed url is returned")
	}
}

func TestTokenExpiryFallsBackToServiceLifetime(t *testing.T) {
	c, err := New("http://localhost:54321", "s", "a")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	if got := c.tokenExpiry("not-a-jwt"); !got.Equal(now.Add(SignedUploadTTL)) {
		t.Fatalf("expiry = %v", got)
	}
}
