package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/user-provisioning/internal/config"
)

// tokenRefreshSkew refreshes the cached admin token slightly before the
// provider considers it expired.
const tokenRefreshSkew = 30 * time.Second

// RegisterInput carries the attributes forwarded to the identity provider.
type RegisterInput struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// RegistrationError reports a non-success outcome from the provider. Network
// failures and timeouts are wrapped into it as well: the orchestrator treats
// every failure mode of the registrar uniformly.
type RegistrationError struct {
	StatusCode int
	Reason     string
	Err        error
}

func (e *RegistrationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("identity registration failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("identity registration failed: %s", e.Reason)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// Client talks to the identity provider's admin REST API. Once Register
// returns success the external identity exists durably; this client offers
// Deregister for the reconciliation worker, but nothing here revokes an
// identity automatically.
type Client struct {
	baseURL       string
	realm         string
	adminUsername string
	adminPassword string
	adminClientID string
	http          *http.Client
	logger        *zap.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient builds a client with the configured request timeout.
func NewClient(cfg config.IdentityConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		realm:         cfg.Realm,
		adminUsername: cfg.AdminUsername,
		adminPassword: cfg.AdminPassword,
		adminClientID: cfg.AdminClientID,
		http:          &http.Client{Timeout: cfg.Timeout()},
		logger:        logger,
	}
}

type userRepresentation struct {
	Username      string                     `json:"username"`
	Email         string                     `json:"email"`
	FirstName     string                     `json:"firstName"`
	LastName      string                     `json:"lastName"`
	Enabled       bool                       `json:"enabled"`
	EmailVerified bool                       `json:"emailVerified"`
	Credentials   []credentialRepresentation `json:"credentials"`
}

type credentialRepresentation struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

// Register creates the identity and returns the provider's opaque reference.
// Any non-201 outcome, timeout included, is a *RegistrationError.
func (c *Client) Register(ctx context.Context, in RegisterInput) (string, error) {
	token, err := c.adminToken(ctx)
	if err != nil {
		return "", &RegistrationError{Reason: "admin token unavailable", Err: err}
	}

	body, err := json.Marshal(userRepresentation{
		Username:      in.Email,
		Email:         in.Email,
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		Enabled:       true,
		EmailVerified: true,
		Credentials: []credentialRepresentation{{
			Type:      "password",
			Value:     in.Password,
			Temporary: false,
		}},
	})
	if err != nil {
		return "", &RegistrationError{Reason: "encode user representation", Err: err}
	}

	endpoint := fmt.Sprintf("%s/admin/realms/%s/users", c.baseURL, c.realm)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &RegistrationError{Reason: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &RegistrationError{Reason: "provider unreachable", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &RegistrationError{
			StatusCode: resp.StatusCode,
			Reason:     fmt.Sprintf("provider returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))),
		}
	}

	location := resp.Header.Get("Location")
	authID := path.Base(location)
	if location == "" || authID == "." || authID == "/" {
		return "", &RegistrationError{StatusCode: resp.StatusCode, Reason: "created response missing identity reference"}
	}

	c.logger.Info("identity registered", zap.String("auth_id", authID))
	return authID, nil
}

// Deregister removes the identity. A provider 404 counts as success so the
// compensation path stays idempotent under redelivery.
func (c *Client) Deregister(ctx context.Context, authID string) error {
	token, err := c.adminToken(ctx)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/admin/realms/%s/users/%s", c.baseURL, c.realm, url.PathEscape(authID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK, http.StatusNotFound:
		return nil
	default:
		return fmt.Errorf("deregister identity %s: provider returned status %d", authID, resp.StatusCode)
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// adminToken returns a cached admin access token, fetching a fresh one from
// the master realm when the cached one is close to expiry.
func (c *Client) adminToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-tokenRefreshSkew)) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", c.adminClientID)
	form.Set("username", c.adminUsername)
	form.Set("password", c.adminPassword)

	endpoint := c.baseURL + "/realms/master/protocol/openid-connect/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned empty access token")
	}

	c.accessToken = tok.AccessToken
	c.tokenExpiry = tokenExpiry(tok)
	return c.accessToken, nil
}

// tokenExpiry reads the exp claim from the token. The signature is not
// verified here; the provider remains the authority and the claim only
// schedules the local refresh. Falls back to expires_in.
func tokenExpiry(tok tokenResponse) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok.AccessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	if tok.ExpiresIn > 0 {
		return time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	}
	return time.Now().Add(time.Minute)
}
