package account

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// Handler exposes account endpoints.
type Handler struct {
	ledger *Ledger
}

// NewHandler constructs an account handler.
func NewHandler(ledger *Ledger) *Handler {
	return &Handler{ledger: ledger}
}

type openRequest struct {
	OwnerName      string `json:"ownerName"`
	OwnerEmail     string `json:"ownerEmail"`
	AccountType    string `json:"accountType"`
	Currency       string `json:"currency"`
	InitialDeposit string `json:"initialDeposit"`
	Activate       bool   `json:"activate"`
}

// Open provisions a new account.
func (h *Handler) Open(c *fiber.Ctx) error {
	var req openRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	deposit := decimal.Zero
	if req.InitialDeposit != "" {
		var err error
		deposit, err = decimal.NewFromString(req.InitialDeposit)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid initialDeposit")
		}
	}

	acct, err := h.ledger.Open(c.UserContext(), OpenInput{
		OwnerName:      req.OwnerName,
		OwnerEmail:     req.OwnerEmail,
		AccountType:    Type(req.AccountType),
		Currency:       req.Currency,
		InitialDeposit: deposit,
		Activate:       req.Activate,
	})
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	return c.Status(http.StatusCreated).JSON(acct)
}

// Get returns an account by id.
func (h *Handler) Get(c *fiber.Ctx) error {
	acct, err := h.ledger.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapLedgerError(err)
	}
	return c.JSON(acct)
}

// GetByNumber returns an account by its account number.
func (h *Handler) GetByNumber(c *fiber.Ctx) error {
	acct, err := h.ledger.GetByNumber(c.UserContext(), c.Params("number"))
	if err != nil {
		return mapLedgerError(err)
	}
	return c.JSON(acct)
}

// Balance returns the current balance and version.
func (h *Handler) Balance(c *fiber.Ctx) error {
	acct, err := h.ledger.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapLedgerError(err)
	}
	return c.JSON(fiber.Map{
		"accountId": acct.ID,
		"balance":   acct.Balance,
		"currency":  acct.Currency,
		"version":   acct.Version,
	})
}

// Activate moves a pending account to ACTIVE.
func (h *Handler) Activate(c *fiber.Ctx) error {
	return h.statusChange(c, h.ledger.Activate)
}

// Freeze suspends an account.
func (h *Handler) Freeze(c *fiber.Ctx) error {
	return h.statusChange(c, h.ledger.Freeze)
}

// Unfreeze resumes a frozen account.
func (h *Handler) Unfreeze(c *fiber.Ctx) error {
	return h.statusChange(c, h.ledger.Unfreeze)
}

// Close terminally closes an account with zero balance.
func (h *Handler) Close(c *fiber.Ctx) error {
	return h.statusChange(c, h.ledger.Close)
}

func (h *Handler) statusChange(c *fiber.Ctx, op func(ctx context.Context, id string) error) error {
	if err := op(c.UserContext(), c.Params("id")); err != nil {
		return mapLedgerError(err)
	}
	acct, err := h.ledger.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapLedgerError(err)
	}
	return c.JSON(acct)
}

func mapLedgerError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "account not found")
	case errors.Is(err, ErrNonZeroBalance):
		return fiber.NewError(http.StatusConflict, "account balance must be zero to close")
	case errors.Is(err, ErrInvalidTransition):
		return fiber.NewError(http.StatusConflict, "invalid status transition")
	case errors.Is(err, ErrNotActive):
		return fiber.NewError(http.StatusConflict, "account not active")
	case errors.Is(err, ErrInsufficientFunds):
		return fiber.NewError(http.StatusBadRequest, "insufficient funds")
	case errors.Is(err, ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, "amount must be positive")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
