package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/user-provisioning/internal/domain"
	"github.com/spec-kit/user-provisioning/internal/events"
	"github.com/spec-kit/user-provisioning/internal/identity"
	"github.com/spec-kit/user-provisioning/internal/observability"
	"github.com/spec-kit/user-provisioning/internal/repository"
)

// IdentityRegistrar abstracts the external identity provider. Register is a
// single atomic external side effect: once it succeeds the identity exists
// durably and nothing in the provisioning workflow reverts it.
type IdentityRegistrar interface {
	Register(ctx context.Context, in identity.RegisterInput) (string, error)
	Deregister(ctx context.Context, authID string) error
}

// ResultCode classifies provisioning outcomes for callers.
type ResultCode string

const (
	CodeCreated                 ResultCode = "CREATED"
	CodeUpdated                 ResultCode = "UPDATED"
	CodeStatusUpdated           ResultCode = "STATUS_UPDATED"
	CodeDuplicateEmail          ResultCode = "DUPLICATE_EMAIL"
	CodeDuplicateIdentification ResultCode = "DUPLICATE_IDENTIFICATION"
	CodeDuplicateContactNo      ResultCode = "DUPLICATE_CONTACT_NO"
	CodeRegistrationFailed      ResultCode = "REGISTRATION_FAILED"
	CodePersistenceFailed       ResultCode = "PERSISTENCE_FAILED"
	CodeUserNotFound            ResultCode = "USER_NOT_FOUND"
	CodeInvalidStatus           ResultCode = "INVALID_STATUS"
)

// Result is the uniform envelope for provisioning and update outcomes.
// Expected business failures land here rather than in the error return.
type Result struct {
	Success bool
	Code    ResultCode
	Message string
	User    *UserView
}

// UserView is the flattened projection of a user and its profile.
type UserView struct {
	ID                   string
	AuthID               string
	Email                string
	ContactNo            string
	IdentificationNumber string
	Status               domain.UserStatus
	CreatedAt            time.Time
	FirstName            string
	LastName             string
	DateOfBirth          time.Time
	Address              string
	City                 string
	State                string
	Country              string
	PostalCode           string
}

// CreateUserInput describes a provisioning request.
type CreateUserInput struct {
	Email                string
	ContactNo            string
	IdentificationNumber string
	Password             string
	FirstName            string
	LastName             string
	DateOfBirth          time.Time
	Address              string
	City                 string
	State                string
	Country              string
	PostalCode           string
}

// UpdateUserInput carries partial updates. Nil fields are left untouched;
// there is no way to clear a field to empty through this input.
type UpdateUserInput struct {
	Email       *string
	ContactNo   *string
	FirstName   *string
	LastName    *string
	DateOfBirth *time.Time
	Address     *string
	City        *string
	State       *string
	Country     *string
	PostalCode  *string
}

// UserService orchestrates user provisioning across the identity provider
// and the local store.
type UserService struct {
	users      repository.UserRepository
	registrar  IdentityRegistrar
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// UserDependencies bundles collaborators for the user service.
type UserDependencies struct {
	UserRepo   repository.UserRepository
	Registrar  IdentityRegistrar
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(deps UserDependencies) *UserService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users:      deps.UserRepo,
		registrar:  deps.Registrar,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// CreateUser runs the provisioning workflow: uniqueness pre-checks, external
// registration, local persistence, response assembly.
//
// The pre-checks are an optimization to avoid needless registrations; the
// uniqueness guarantee itself comes from the store's constraints at write
// time. If the local write fails after registration succeeded, the external
// identity remains registered: the workflow does not deregister inline, it
// publishes an orphan event for asynchronous reconciliation.
func (s *UserService) CreateUser(ctx context.Context, in CreateUserInput) (Result, error) {
	exists, err := s.users.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return Result{}, err
	}
	if exists {
		return s.failure(CodeDuplicateEmail, "User with email already exists"), nil
	}

	exists, err = s.users.ExistsByIdentificationNumber(ctx, in.IdentificationNumber)
	if err != nil {
		return Result{}, err
	}
	if exists {
		return s.failure(CodeDuplicateIdentification, "User with identification number already exists"), nil
	}

	authID, err := s.registrar.Register(ctx, identity.RegisterInput{
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Password:  in.Password,
	})
	if err != nil {
		s.logger.Error("identity registration failed", zap.String("email", in.Email), zap.Error(err))
		return s.failure(CodeRegistrationFailed, "Failed to register identity: "+err.Error()), nil
	}

	user := &domain.User{
		AuthID:               authID,
		Email:                in.Email,
		ContactNo:            in.ContactNo,
		IdentificationNumber: in.IdentificationNumber,
		Status:               domain.UserStatusActive,
		Profile: domain.UserProfile{
			FirstName:   in.FirstName,
			LastName:    in.LastName,
			DateOfBirth: in.DateOfBirth,
			Address:     in.Address,
			City:        in.City,
			State:       in.State,
			Country:     in.Country,
			PostalCode:  in.PostalCode,
		},
	}

	if err := s.users.Create(ctx, user); err != nil {
		// The external identity now has no local counterpart. Surface the
		// orphan for the reconciliation path instead of reverting here.
		s.logger.Error("local persistence failed after registration",
			zap.String("auth_id", authID),
			zap.String("email", in.Email),
			zap.Error(err))
		s.publish(ctx, events.Event{
			Type: events.EventProvisioningOrphaned,
			Payload: events.ProvisioningOrphanedPayload{
				Orphan: domain.OrphanIdentity{
					AuthID:     authID,
					Email:      in.Email,
					Reason:     err.Error(),
					RecordedAt: time.Now(),
				},
			},
		})
		return s.failure(CodePersistenceFailed, "Failed to persist user: "+err.Error()), nil
	}

	s.publish(ctx, events.Event{
		Type:   events.EventUserCreated,
		UserID: user.ID,
		Payload: events.UserCreatedPayload{
			AuthID: user.AuthID,
			Email:  user.Email,
			Status: user.Status,
		},
	})

	view := flattenUser(user)
	s.record(CodeCreated)
	return Result{Success: true, Code: CodeCreated, Message: "User created successfully", User: &view}, nil
}

// ReadAllUsers returns every user as a flattened view. Unordered full scan.
func (s *UserService) ReadAllUsers(ctx context.Context) ([]UserView, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]UserView, 0, len(users))
	for i := range users {
		views = append(views, flattenUser(&users[i]))
	}
	return views, nil
}

// ReadUser looks a user up by its identity-provider reference.
func (s *UserService) ReadUser(ctx context.Context, authID string) (*UserView, error) {
	user, err := s.users.GetByAuthID(ctx, authID)
	if err != nil {
		return nil, err
	}
	view := flattenUser(user)
	return &view, nil
}

// ReadUserByID looks a user up by local ID.
func (s *UserService) ReadUserByID(ctx context.Context, id string) (*UserView, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view := flattenUser(user)
	return &view, nil
}

// UpdateUserStatus sets the user's status. Setting the current status again
// succeeds without a write.
func (s *UserService) UpdateUserStatus(ctx context.Context, id string, status domain.UserStatus) (Result, error) {
	if !domain.ValidStatus(status) {
		return s.failure(CodeInvalidStatus, "Unknown status: "+string(status)), nil
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return s.failure(CodeUserNotFound, "User not found with id: "+id), nil
		}
		return Result{}, err
	}

	if user.Status == status {
		view := flattenUser(user)
		return Result{Success: true, Code: CodeStatusUpdated, Message: "User status unchanged", User: &view}, nil
	}

	oldStatus := user.Status
	user.Status = status
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return s.failure(CodeUserNotFound, "User not found with id: "+id), nil
		}
		return s.failure(CodePersistenceFailed, "Failed to update user status: "+err.Error()), nil
	}

	s.publish(ctx, events.Event{
		Type:   events.EventUserStatusChanged,
		UserID: user.ID,
		Payload: events.UserStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: status,
		},
	})

	view := flattenUser(user)
	s.record(CodeStatusUpdated)
	return Result{Success: true, Code: CodeStatusUpdated, Message: "User status updated successfully", User: &view}, nil
}

// UpdateUser applies the supplied fields and leaves the rest untouched.
func (s *UserService) UpdateUser(ctx context.Context, id string, in UpdateUserInput) (Result, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return s.failure(CodeUserNotFound, "User not found with id: "+id), nil
		}
		return Result{}, err
	}

	if in.Email != nil {
		user.Email = *in.Email
	}
	if in.ContactNo != nil {
		user.ContactNo = *in.ContactNo
	}
	if in.FirstName != nil {
		user.Profile.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		user.Profile.LastName = *in.LastName
	}
	if in.DateOfBirth != nil {
		user.Profile.DateOfBirth = *in.DateOfBirth
	}
	if in.Address != nil {
		user.Profile.Address = *in.Address
	}
	if in.City != nil {
		user.Profile.City = *in.City
	}
	if in.State != nil {
		user.Profile.State = *in.State
	}
	if in.Country != nil {
		user.Profile.Country = *in.Country
	}
	if in.PostalCode != nil {
		user.Profile.PostalCode = *in.PostalCode
	}

	if err := s.users.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			return s.failure(CodeUserNotFound, "User not found with id: "+id), nil
		case errors.Is(err, domain.ErrDuplicateEmail):
			return s.failure(CodeDuplicateEmail, "User with email already exists"), nil
		case errors.Is(err, domain.ErrDuplicateContactNo):
			return s.failure(CodeDuplicateContactNo, "User with contact number already exists"), nil
		default:
			return s.failure(CodePersistenceFailed, "Failed to update user: "+err.Error()), nil
		}
	}

	s.publish(ctx, events.Event{
		Type:   events.EventUserUpdated,
		UserID: user.ID,
		Payload: events.UserUpdatedPayload{
			Email:     user.Email,
			ContactNo: user.ContactNo,
		},
	})

	view := flattenUser(user)
	s.record(CodeUpdated)
	return Result{Success: true, Code: CodeUpdated, Message: "User updated successfully", User: &view}, nil
}

func (s *UserService) failure(code ResultCode, message string) Result {
	s.record(code)
	return Result{Success: false, Code: code, Message: message}
}

func (s *UserService) record(code ResultCode) {
	s.metrics.RecordWorkflow("provisioning", string(code))
}

func (s *UserService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now()
	_ = s.dispatcher.Publish(ctx, event)
}

func flattenUser(user *domain.User) UserView {
	return UserView{
		ID:                   user.ID,
		AuthID:               user.AuthID,
		Email:                user.Email,
		ContactNo:            user.ContactNo,
		IdentificationNumber: user.IdentificationNumber,
		Status:               user.Status,
		CreatedAt:            user.CreatedAt,
		FirstName:            user.Profile.FirstName,
		LastName:             user.Profile.LastName,
		DateOfBirth:          user.Profile.DateOfBirth,
		Address:              user.Profile.Address,
		City:                 user.Profile.City,
		State:                user.Profile.State,
		Country:              user.Profile.Country,
		PostalCode:           user.Profile.PostalCode,
	}
}
