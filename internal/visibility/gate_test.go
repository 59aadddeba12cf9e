package visibility

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/maven-mirror/maven-mirror/internal/maven"
)

func TestGateRejectsForeignNamespaceWithoutQuery(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	gate := newTestGate(t, srv.URL)
	res, err := gate.Check(context.Background(), maven.Coordinate{GroupID: "com.example", ArtifactID: "lib"}, "tok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Allowed || res.Reason != ReasonNamespaceRejected {
		t.Fatalf("expected namespace rejection, got %+v", res)
	}
	if calls.Load() != 0 {
		t.Fatalf("metadata API should not be called, got %d calls", calls.Load())
	}
}

func TestGateDecisions(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		allowed bool
		reason  Reason
	}{
		{
			name:   "package missing",
			body:   `{"data":{"organization":{"packages":{"nodes":[]}}}}`,
			reason: ReasonPackageNotFound,
		},
		{
			name:   "no repository",
			body:   `{"data":{"organization":{"packages":{"nodes":[{"repository":null}]}}}}`,
			reason: ReasonNoBackingRepository,
		},
		{
			name:   "private repository",
			body:   `{"data":{"organization":{"packages":{"nodes":[{"repository":{"isPrivate":true}}]}}}}`,
			reason: ReasonPrivate,
		},
		{
			name:    "public repository",
			body:    `{"data":{"organization":{"packages":{"nodes":[{"repository":{"isPrivate":false}}]}}}}`,
			allowed: true,
			reason:  ReasonOK,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			gate := newTestGate(t, srv.URL)
			res, err := gate.Check(context.Background(), sampleCoordinate(), "tok")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Allowed != tc.allowed || res.Reason != tc.reason {
				t.Fatalf("expected allowed=%v reason=%s, got %+v", tc.allowed, tc.reason, res)
			}
		})
	}
}

func TestGateSendsQueryWithCredentials(t *testing.T) {
	var (
		gotAuth   string
		gotAccept string
		gotQuery  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		var req graphQLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotQuery = req.Query
		_, _ = io.WriteString(w, `{"data":{"organization":{"packages":{"nodes":[]}}}}`)
	}))
	defer srv.Close()

	gate := newTestGate(t, srv.URL)
	if _, err := gate.Check(context.Background(), sampleCoordinate(), "secret-token"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("unexpected authorization header: %q", gotAuth)
	}
	if gotAccept != packagesPreviewMediaType {
		t.Fatalf("unexpected accept header: %q", gotAccept)
	}
	if !strings.Contains(gotQuery, `"navikt"`) || !strings.Contains(gotQuery, `"no.nav.foo.bar"`) {
		t.Fatalf("query missing organization or package name: %s", gotQuery)
	}
}

func TestGateMalformedResponse(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"graphql errors": {status: http.StatusOK, body: `{"errors":[{"message":"Bad credentials"}]}`},
		"not json":       {status: http.StatusOK, body: `<html>oops</html>`},
		"unauthorized":   {status: http.StatusUnauthorized, body: `{"message":"Bad credentials"}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			gate := newTestGate(t, srv.URL)
			_, err := gate.Check(context.Background(), sampleCoordinate(), "tok")
			if !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("expected ErrMalformedResponse, got %v", err)
			}
		})
	}
}

func TestNewGateValidatesOptions(t *testing.T) {
	if _, err := NewGate(Options{Organization: "navikt", RootNamespace: "no.nav"}); err == nil {
		t.Fatalf("expected error for missing endpoint")
	}
	if _, err := NewGate(Options{Endpoint: "http://x", RootNamespace: "no.nav"}); err == nil {
		t.Fatalf("expected error for missing organization")
	}
	if _, err := NewGate(Options{Endpoint: "http://x", Organization: "navikt"}); err == nil {
		t.Fatalf("expected error for missing root namespace")
	}
}

func newTestGate(t *testing.T, endpoint string) *Gate {
	t.Helper()
	gate, err := NewGate(Options{Endpoint: endpoint, Organization: "navikt", RootNamespace: "no.nav"})
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	return gate
}

func sampleCoordinate() maven.Coordinate {
	return maven.Coordinate{GroupID: "no.nav.foo", ArtifactID: "bar", Version: "1.0", File: "bar-1.0.jar"}
}
