package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/user-provisioning/internal/api/dto"
	httptransport "github.com/spec-kit/user-provisioning/internal/api/http"
	"github.com/spec-kit/user-provisioning/internal/api/http/handlers"
	"github.com/spec-kit/user-provisioning/internal/domain"
	"github.com/spec-kit/user-provisioning/internal/identity"
	"github.com/spec-kit/user-provisioning/internal/service"
)

type memoryUserRepo struct {
	users map[string]*domain.User
	seq   int
}

func (r *memoryUserRepo) duplicateOf(user *domain.User) error {
	for _, u := range r.users {
		if u.ID == user.ID {
			continue
		}
		switch {
		case u.Email == user.Email:
			return domain.ErrDuplicateEmail
		case u.IdentificationNumber == user.IdentificationNumber:
			return domain.ErrDuplicateIdentification
		case u.ContactNo == user.ContactNo:
			return domain.ErrDuplicateContactNo
		}
	}
	return nil
}

func (r *memoryUserRepo) Create(_ context.Context, user *domain.User) error {
	if err := r.duplicateOf(user); err != nil {
		return err
	}
	r.seq++
	user.ID = fmt.Sprintf("user-%d", r.seq)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *memoryUserRepo) Update(_ context.Context, user *domain.User) error {
	if _, ok := r.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	if err := r.duplicateOf(user); err != nil {
		return err
	}
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *memoryUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *memoryUserRepo) GetByAuthID(_ context.Context, authID string) (*domain.User, error) {
	for _, u := range r.users {
		if u.AuthID == authID {
			clone := *u
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memoryUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memoryUserRepo) GetByContactNo(_ context.Context, contactNo string) (*domain.User, error) {
	for _, u := range r.users {
		if u.ContactNo == contactNo {
			clone := *u
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memoryUserRepo) List(_ context.Context) ([]domain.User, error) {
	out := make([]domain.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	return out, nil
}

func (r *memoryUserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	for _, u := range r.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryUserRepo) ExistsByIdentificationNumber(_ context.Context, idNumber string) (bool, error) {
	for _, u := range r.users {
		if u.IdentificationNumber == idNumber {
			return true, nil
		}
	}
	return false, nil
}

type memoryRegistrar struct {
	calls int
	seq   int
}

func (f *memoryRegistrar) Register(_ context.Context, _ identity.RegisterInput) (string, error) {
	f.calls++
	f.seq++
	return fmt.Sprintf("auth-%d", f.seq), nil
}

func (f *memoryRegistrar) Deregister(context.Context, string) error {
	return nil
}

type memorySequenceRepo struct {
	created map[string]*domain.Sequence
	seq     int
}

func (r *memorySequenceRepo) Create(_ context.Context, seq *domain.Sequence) error {
	if _, ok := r.created[seq.AccountNumber]; ok {
		return domain.ErrDuplicateAccountNumber
	}
	r.seq++
	seq.ID = fmt.Sprintf("seq-%d", r.seq)
	seq.CreatedAt = time.Now()
	clone := *seq
	r.created[seq.AccountNumber] = &clone
	return nil
}

func (r *memorySequenceRepo) GetByAccountNumber(_ context.Context, accountNumber string) (*domain.Sequence, error) {
	seq, ok := r.created[accountNumber]
	if !ok {
		return nil, domain.ErrSequenceNotFound
	}
	clone := *seq
	return &clone, nil
}

func (r *memorySequenceRepo) ExistsByAccountNumber(_ context.Context, accountNumber string) (bool, error) {
	_, ok := r.created[accountNumber]
	return ok, nil
}

type testEnv struct {
	app       *fiber.App
	registrar *memoryRegistrar
}

func newTestApp(t *testing.T) *testEnv {
	t.Helper()

	registrar := &memoryRegistrar{}
	userService := service.NewUserService(service.UserDependencies{
		UserRepo:  &memoryUserRepo{users: make(map[string]*domain.User)},
		Registrar: registrar,
	})
	accountService := service.NewAccountService(service.AccountDependencies{
		SequenceRepo: &memorySequenceRepo{created: make(map[string]*domain.Sequence)},
	})

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, zap.NewNop(), nil, 0)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:   handlers.NewHealthHandler("test", "test", nil, nil),
		Users:    handlers.NewUsersHandler(userService),
		Accounts: handlers.NewAccountsHandler(accountService),
	})
	return &testEnv{app: app, registrar: registrar}
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response) dto.ResultResponse {
	t.Helper()
	defer resp.Body.Close()
	var out dto.ResultResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return out
}

func createUserRequest() dto.CreateUserRequest {
	return dto.CreateUserRequest{
		Email:                "a@x.com",
		ContactNo:            "0711111111",
		IdentificationNumber: "ID1",
		Password:             "secret",
		FirstName:            "Asha",
		LastName:             "Perera",
		DateOfBirth:          "1990-04-12",
		Address:              "12 Lake Rd",
		City:                 "Colombo",
		State:                "Western",
		Country:              "LK",
		PostalCode:           "00100",
	}
}

func TestUsersAPI_Create(t *testing.T) {
	env := newTestApp(t)

	resp := doJSON(t, env.app, http.MethodPost, "/users", createUserRequest())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	envelope := decodeEnvelope(t, resp)
	if !envelope.Success || envelope.Code != "CREATED" {
		t.Fatalf("expected CREATED envelope, got %+v", envelope)
	}
	if envelope.Data == nil || envelope.Data.Status != "ACTIVE" {
		t.Fatalf("expected ACTIVE user in envelope, got %+v", envelope.Data)
	}
	if envelope.Data.DateOfBirth != "1990-04-12" {
		t.Errorf("expected date of birth echoed, got %q", envelope.Data.DateOfBirth)
	}
}

func TestUsersAPI_Create_DuplicateEmailConflict(t *testing.T) {
	env := newTestApp(t)

	resp := doJSON(t, env.app, http.MethodPost, "/users", createUserRequest())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("seed create: expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()
	env.registrar.calls = 0

	dup := createUserRequest()
	dup.IdentificationNumber = "ID2"
	dup.ContactNo = "0722222222"
	resp = doJSON(t, env.app, http.MethodPost, "/users", dup)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	envelope := decodeEnvelope(t, resp)
	if envelope.Success || envelope.Code != "DUPLICATE_EMAIL" {
		t.Fatalf("expected DUPLICATE_EMAIL envelope, got %+v", envelope)
	}
	if env.registrar.calls != 0 {
		t.Errorf("duplicate must not reach the registrar, got %d calls", env.registrar.calls)
	}
}

func TestUsersAPI_Create_MissingFields(t *testing.T) {
	env := newTestApp(t)

	req := createUserRequest()
	req.Password = ""
	resp := doJSON(t, env.app, http.MethodPost, "/users", req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUsersAPI_GetByIDAndAuthID(t *testing.T) {
	env := newTestApp(t)

	created := decodeEnvelope(t, doJSON(t, env.app, http.MethodPost, "/users", createUserRequest()))

	resp := doJSON(t, env.app, http.MethodGet, "/users/"+created.Data.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get by id: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, env.app, http.MethodGet, "/users/auth/"+created.Data.AuthID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get by auth id: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, env.app, http.MethodGet, "/users/does-not-exist", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing user: expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUsersAPI_UpdateStatus(t *testing.T) {
	env := newTestApp(t)

	created := decodeEnvelope(t, doJSON(t, env.app, http.MethodPost, "/users", createUserRequest()))

	resp := doJSON(t, env.app, http.MethodPut, "/users/"+created.Data.ID+"/status",
		dto.UpdateUserStatusRequest{Status: "SUSPENDED"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	envelope := decodeEnvelope(t, resp)
	if !envelope.Success || envelope.Data.Status != "SUSPENDED" {
		t.Fatalf("expected SUSPENDED, got %+v", envelope)
	}

	resp = doJSON(t, env.app, http.MethodPut, "/users/missing/status",
		dto.UpdateUserStatusRequest{Status: "SUSPENDED"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing user: expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUsersAPI_PartialUpdate(t *testing.T) {
	env := newTestApp(t)

	created := decodeEnvelope(t, doJSON(t, env.app, http.MethodPost, "/users", createUserRequest()))

	city := "Kandy"
	resp := doJSON(t, env.app, http.MethodPut, "/users/"+created.Data.ID,
		dto.UpdateUserRequest{City: &city})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	envelope := decodeEnvelope(t, resp)
	if envelope.Data.City != "Kandy" {
		t.Errorf("expected city updated, got %q", envelope.Data.City)
	}
	if envelope.Data.Email != created.Data.Email || envelope.Data.FirstName != created.Data.FirstName {
		t.Errorf("untouched fields must survive, got %+v", envelope.Data)
	}
}

func TestAccountsAPI_GenerateAndLookup(t *testing.T) {
	env := newTestApp(t)

	resp := doJSON(t, env.app, http.MethodPost, "/accounts/number", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var generated struct {
		Data dto.AccountNumberResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&generated); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	resp.Body.Close()
	if len(generated.Data.AccountNumber) != 10 {
		t.Errorf("expected 10-digit account number, got %q", generated.Data.AccountNumber)
	}

	resp = doJSON(t, env.app, http.MethodGet, "/accounts/number/"+generated.Data.AccountNumber, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("lookup: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, env.app, http.MethodGet, "/accounts/number/9999999999", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing sequence: expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHealthAPI_Live(t *testing.T) {
	env := newTestApp(t)

	resp := doJSON(t, env.app, http.MethodGet, "/health/live", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}
