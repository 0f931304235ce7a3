package transfer

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// Handler exposes transfer endpoints.
type Handler struct {
	coordinator *Coordinator
}

// NewHandler constructs a transfer handler.
func NewHandler(coordinator *Coordinator) *Handler {
	return &Handler{coordinator: coordinator}
}

type initiateRequest struct {
	SourceAccountID   string   `json:"sourceAccountId"`
	TargetAccountID   string   `json:"targetAccountId"`
	TransactionType   string   `json:"transactionType"`
	Amount            string   `json:"amount"`
	Currency          string   `json:"currency"`
	Description       string   `json:"description"`
	ExternalReference string   `json:"externalReference"`
	DeviceID          string   `json:"deviceId"`
	Latitude          *float64 `json:"latitude"`
	Longitude         *float64 `json:"longitude"`
}

// Initiate starts a transfer and runs it through the fraud gate synchronously.
// The response carries the terminal or parked status the pipeline reached.
func (h *Handler) Initiate(c *fiber.Ctx) error {
	var req initiateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid amount")
	}

	txn, err := h.coordinator.Initiate(c.UserContext(), InitiateInput{
		SourceAccountID:   req.SourceAccountID,
		TargetAccountID:   req.TargetAccountID,
		TransactionType:   Type(req.TransactionType),
		Amount:            amount,
		Currency:          req.Currency,
		Description:       req.Description,
		ExternalReference: req.ExternalReference,
		Enrichment: Enrichment{
			SourceIP:  c.IP(),
			DeviceID:  req.DeviceID,
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
		},
	})
	if err != nil {
		return mapTransferError(err)
	}
	return c.Status(http.StatusCreated).JSON(txn)
}

// Get returns a transaction by id.
func (h *Handler) Get(c *fiber.Ctx) error {
	txn, err := h.coordinator.GetStatus(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapTransferError(err)
	}
	return c.JSON(txn)
}

// GetByReference returns a transaction by its reference number.
func (h *Handler) GetByReference(c *fiber.Ctx) error {
	txn, err := h.coordinator.GetByReference(c.UserContext(), c.Params("reference"))
	if err != nil {
		return mapTransferError(err)
	}
	return c.JSON(txn)
}

// ListByAccount returns recent transactions touching the account.
func (h *Handler) ListByAccount(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	txns, err := h.coordinator.ListByAccount(c.UserContext(), c.Params("id"), limit)
	if err != nil {
		return mapTransferError(err)
	}
	return c.JSON(fiber.Map{"transactions": txns})
}

// ListByDateRange returns transactions initiated inside an RFC3339 window.
func (h *Handler) ListByDateRange(c *fiber.Ctx) error {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid from, want RFC3339")
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid to, want RFC3339")
	}
	limit, _ := strconv.Atoi(c.Query("limit", "100"))
	txns, err := h.coordinator.ListByDateRange(c.UserContext(), from, to, limit)
	if err != nil {
		return mapTransferError(err)
	}
	return c.JSON(fiber.Map{"transactions": txns})
}

// ListPendingReview returns transactions awaiting manual resolution.
func (h *Handler) ListPendingReview(c *fiber.Ctx) error {
	txns, err := h.coordinator.ListPendingReview(c.UserContext())
	if err != nil {
		return mapTransferError(err)
	}
	return c.JSON(fiber.Map{"transactions": txns})
}

type resolveRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note"`
}

// Resolve settles or rejects a transaction parked for review.
func (h *Handler) Resolve(c *fiber.Ctx) error {
	var req resolveRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	txn, err := h.coordinator.Resolve(c.UserContext(), c.Params("id"), req.Approve, req.Note)
	if err != nil {
		return mapTransferError(err)
	}
	return c.JSON(txn)
}

// Cancel aborts a transfer that has not begun settling.
func (h *Handler) Cancel(c *fiber.Ctx) error {
	txn, err := h.coordinator.Cancel(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapTransferError(err)
	}
	return c.JSON(txn)
}

// Reverse moves a completed transfer's funds back and marks it REVERSED.
func (h *Handler) Reverse(c *fiber.Ctx) error {
	txn, err := h.coordinator.Reverse(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapTransferError(err)
	}
	return c.JSON(txn)
}

// Stats summarises transactions by outcome.
func (h *Handler) Stats(c *fiber.Ctx) error {
	stats, err := h.coordinator.GetStats(c.UserContext())
	if err != nil {
		return mapTransferError(err)
	}
	return c.JSON(stats)
}

func mapTransferError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "transaction not found")
	case errors.Is(err, ErrValidation):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotPendingReview):
		return fiber.NewError(http.StatusConflict, "transaction is not pending review")
	case errors.Is(err, ErrNotCancellable):
		return fiber.NewError(http.StatusConflict, "transaction can no longer be cancelled")
	case errors.Is(err, ErrNotReversible):
		return fiber.NewError(http.StatusConflict, "only completed transactions can be reversed")
	case errors.Is(err, ErrInvalidTransition):
		return fiber.NewError(http.StatusConflict, "invalid status transition")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
