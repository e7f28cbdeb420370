package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/user-provisioning/internal/api/dto"
	"github.com/spec-kit/user-provisioning/internal/service"
	"github.com/spec-kit/user-provisioning/pkg/util/errorutil"
)

// AccountsHandler exposes account-number generation.
type AccountsHandler struct {
	accounts *service.AccountService
}

// NewAccountsHandler constructs handler.
func NewAccountsHandler(accountService *service.AccountService) *AccountsHandler {
	return &AccountsHandler{accounts: accountService}
}

// Generate handles POST /accounts/number.
func (h *AccountsHandler) Generate(c *fiber.Ctx) error {
	seq, err := h.accounts.Generate(c.UserContext())
	if err != nil {
		if errors.Is(err, service.ErrExhaustedRetries) {
			return errorutil.NewDomainError("GENERATION_EXHAUSTED",
				"unable to allocate a unique account number", http.StatusServiceUnavailable, nil)
		}
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.AccountNumberResponse{
			AccountNumber: seq.AccountNumber,
			CreatedAt:     seq.CreatedAt,
		},
	})
}

// Lookup handles GET /accounts/number/:accountNumber.
func (h *AccountsHandler) Lookup(c *fiber.Ctx) error {
	seq, err := h.accounts.Lookup(c.UserContext(), c.Params("accountNumber"))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": dto.AccountNumberResponse{
			AccountNumber: seq.AccountNumber,
			CreatedAt:     seq.CreatedAt,
		},
	})
}
