package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/user-provisioning/internal/config"
)

type providerStub struct {
	server     *httptest.Server
	tokenCalls int32
	userStatus int
	userBody   string
	deleted    []string
}

func newProviderStub(t *testing.T) *providerStub {
	t.Helper()
	stub := &providerStub{userStatus: http.StatusCreated}

	mux := http.NewServeMux()
	mux.HandleFunc("/realms/master/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&stub.tokenCalls, 1)
		if r.FormValue("grant_type") != "password" || r.FormValue("client_id") != "admin-cli" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"` + signedToken(t, time.Now().Add(time.Hour)) + `","expires_in":3600}`))
	})
	mux.HandleFunc("/admin/realms/test/users", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if stub.userStatus == http.StatusCreated {
			w.Header().Set("Location", stub.server.URL+"/admin/realms/test/users/abc-123")
		}
		w.WriteHeader(stub.userStatus)
		w.Write([]byte(stub.userBody))
	})
	mux.HandleFunc("/admin/realms/test/users/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		id := r.URL.Path[len("/admin/realms/test/users/"):]
		for _, d := range stub.deleted {
			if d == id {
				w.WriteHeader(http.StatusNotFound)
				return
			}
		}
		stub.deleted = append(stub.deleted, id)
		w.WriteHeader(http.StatusNoContent)
	})

	stub.server = httptest.NewServer(mux)
	t.Cleanup(stub.server.Close)
	return stub
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newTestClient(stub *providerStub) *Client {
	return NewClient(config.IdentityConfig{
		BaseURL:        stub.server.URL,
		Realm:          "test",
		AdminUsername:  "admin",
		AdminPassword:  "admin",
		AdminClientID:  "admin-cli",
		TimeoutSeconds: 5,
	}, zap.NewNop())
}

func TestClient_Register_ReturnsIdentityReference(t *testing.T) {
	stub := newProviderStub(t)
	client := newTestClient(stub)

	authID, err := client.Register(context.Background(), RegisterInput{
		Email:     "a@x.com",
		FirstName: "Asha",
		LastName:  "Perera",
		Password:  "secret",
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if authID != "abc-123" {
		t.Errorf("expected auth id from Location header, got %q", authID)
	}
}

func TestClient_Register_NonCreatedIsRegistrationError(t *testing.T) {
	stub := newProviderStub(t)
	stub.userStatus = http.StatusConflict
	stub.userBody = `{"errorMessage":"User exists with same email"}`
	client := newTestClient(stub)

	_, err := client.Register(context.Background(), RegisterInput{Email: "a@x.com"})
	var regErr *RegistrationError
	if !errors.As(err, &regErr) {
		t.Fatalf("expected *RegistrationError, got %v", err)
	}
	if regErr.StatusCode != http.StatusConflict {
		t.Errorf("expected status 409 on the error, got %d", regErr.StatusCode)
	}
}

func TestClient_Register_ProviderUnreachable(t *testing.T) {
	stub := newProviderStub(t)
	client := newTestClient(stub)
	stub.server.Close()

	_, err := client.Register(context.Background(), RegisterInput{Email: "a@x.com"})
	var regErr *RegistrationError
	if !errors.As(err, &regErr) {
		t.Fatalf("expected *RegistrationError, got %v", err)
	}
}

func TestClient_Register_CachesAdminToken(t *testing.T) {
	stub := newProviderStub(t)
	client := newTestClient(stub)

	for i := 0; i < 3; i++ {
		if _, err := client.Register(context.Background(), RegisterInput{Email: "a@x.com"}); err != nil {
			t.Fatalf("Register %d returned error: %v", i, err)
		}
	}
	if calls := atomic.LoadInt32(&stub.tokenCalls); calls != 1 {
		t.Errorf("expected a single token fetch, got %d", calls)
	}
}

func TestClient_Deregister_Idempotent(t *testing.T) {
	stub := newProviderStub(t)
	client := newTestClient(stub)

	if err := client.Deregister(context.Background(), "abc-123"); err != nil {
		t.Fatalf("first Deregister returned error: %v", err)
	}
	// Redelivery: the provider now answers 404, which still counts as done.
	if err := client.Deregister(context.Background(), "abc-123"); err != nil {
		t.Fatalf("second Deregister returned error: %v", err)
	}
	if len(stub.deleted) != 1 {
		t.Errorf("expected one deletion on the provider, got %d", len(stub.deleted))
	}
}

func TestTokenExpiry(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	got := tokenExpiry(tokenResponse{AccessToken: signedToken(t, exp)})
	if !got.Equal(exp) {
		t.Errorf("expected exp claim %s, got %s", exp, got)
	}

	got = tokenExpiry(tokenResponse{AccessToken: "not-a-jwt", ExpiresIn: 120})
	if d := time.Until(got); d < 115*time.Second || d > 125*time.Second {
		t.Errorf("expected expires_in fallback around 120s, got %s", d)
	}

	got = tokenExpiry(tokenResponse{AccessToken: "not-a-jwt"})
	if d := time.Until(got); d <= 0 || d > 2*time.Minute {
		t.Errorf("expected short default expiry, got %s", d)
	}
}
