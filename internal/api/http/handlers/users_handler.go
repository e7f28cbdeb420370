package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/user-provisioning/internal/api/dto"
	"github.com/spec-kit/user-provisioning/internal/domain"
	"github.com/spec-kit/user-provisioning/internal/service"
	"github.com/spec-kit/user-provisioning/pkg/util/errorutil"
)

const dateLayout = "2006-01-02"

// UsersHandler exposes the provisioning API.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(userService *service.UserService) *UsersHandler {
	return &UsersHandler{users: userService}
}

// Create handles POST /users.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" || req.IdentificationNumber == "" {
		return errorutil.NewValidationError("email, password, identification_number required", nil)
	}

	dob, err := time.Parse(dateLayout, req.DateOfBirth)
	if err != nil {
		return errorutil.NewValidationError("date_of_birth must be YYYY-MM-DD", nil)
	}

	res, err := h.users.CreateUser(c.UserContext(), service.CreateUserInput{
		Email:                req.Email,
		ContactNo:            req.ContactNo,
		IdentificationNumber: req.IdentificationNumber,
		Password:             req.Password,
		FirstName:            req.FirstName,
		LastName:             req.LastName,
		DateOfBirth:          dob,
		Address:              req.Address,
		City:                 req.City,
		State:                req.State,
		Country:              req.Country,
		PostalCode:           req.PostalCode,
	})
	if err != nil {
		return err
	}

	return c.Status(statusForResult(res)).JSON(toResultResponse(res))
}

// List handles GET /users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	views, err := h.users.ReadAllUsers(c.UserContext())
	if err != nil {
		return err
	}

	out := make([]dto.UserResponse, 0, len(views))
	for i := range views {
		out = append(out, toUserResponse(&views[i]))
	}
	return c.JSON(fiber.Map{"data": out})
}

// GetByAuthID handles GET /users/auth/:authId.
func (h *UsersHandler) GetByAuthID(c *fiber.Ctx) error {
	view, err := h.users.ReadUser(c.UserContext(), c.Params("authId"))
	if err != nil {
		return err
	}
	resp := toUserResponse(view)
	return c.JSON(fiber.Map{"data": resp})
}

// GetByID handles GET /users/:id.
func (h *UsersHandler) GetByID(c *fiber.Ctx) error {
	view, err := h.users.ReadUserByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	resp := toUserResponse(view)
	return c.JSON(fiber.Map{"data": resp})
}

// UpdateStatus handles PUT /users/:id/status.
func (h *UsersHandler) UpdateStatus(c *fiber.Ctx) error {
	var req dto.UpdateUserStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}

	res, err := h.users.UpdateUserStatus(c.UserContext(), c.Params("id"), domain.UserStatus(req.Status))
	if err != nil {
		return err
	}
	return c.Status(statusForResult(res)).JSON(toResultResponse(res))
}

// Update handles PUT /users/:id.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}

	input := service.UpdateUserInput{
		Email:      req.Email,
		ContactNo:  req.ContactNo,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Address:    req.Address,
		City:       req.City,
		State:      req.State,
		Country:    req.Country,
		PostalCode: req.PostalCode,
	}
	if req.DateOfBirth != nil {
		dob, err := time.Parse(dateLayout, *req.DateOfBirth)
		if err != nil {
			return errorutil.NewValidationError("date_of_birth must be YYYY-MM-DD", nil)
		}
		input.DateOfBirth = &dob
	}

	res, err := h.users.UpdateUser(c.UserContext(), c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.Status(statusForResult(res)).JSON(toResultResponse(res))
}

// statusForResult maps envelope outcomes onto HTTP statuses.
func statusForResult(res service.Result) int {
	if res.Success {
		if res.Code == service.CodeCreated {
			return http.StatusCreated
		}
		return http.StatusOK
	}
	switch res.Code {
	case service.CodeDuplicateEmail, service.CodeDuplicateIdentification,
		service.CodeDuplicateContactNo, service.CodePersistenceFailed:
		return http.StatusConflict
	case service.CodeRegistrationFailed:
		return http.StatusBadGateway
	case service.CodeUserNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

func toResultResponse(res service.Result) dto.ResultResponse {
	out := dto.ResultResponse{
		Success: res.Success,
		Code:    string(res.Code),
		Message: res.Message,
	}
	if res.User != nil {
		resp := toUserResponse(res.User)
		out.Data = &resp
	}
	return out
}

func toUserResponse(view *service.UserView) dto.UserResponse {
	return dto.UserResponse{
		ID:                   view.ID,
		AuthID:               view.AuthID,
		Email:                view.Email,
		ContactNo:            view.ContactNo,
		IdentificationNumber: view.IdentificationNumber,
		Status:               string(view.Status),
		CreatedAt:            view.CreatedAt,
		FirstName:            view.FirstName,
		LastName:             view.LastName,
		DateOfBirth:          view.DateOfBirth.Format(dateLayout),
		Address:              view.Address,
		City:                 view.City,
		State:                view.State,
		Country:              view.Country,
		PostalCode:           view.PostalCode,
	}
}
