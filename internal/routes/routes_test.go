package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/atlas-bank/atlas_core/internal/config"
	"github.com/atlas-bank/atlas_core/internal/logging"
)

func setupApp(t *testing.T) *fiber.App {
	t.Helper()
	app := fiber.New()
	cfg := config.Config{
		AppName:        "atlas-test",
		Env:            "test",
		Port:           "0",
		IdempotencyTTL: time.Minute,
		FraudTimeout:   time.Second,
		SettleAttempts: 3,
		SettleBackoff:  time.Millisecond,
	}
	if err := Setup(app, Deps{Cfg: cfg, Logger: logging.Discard()}); err != nil {
		t.Fatalf("setup routes: %v", err)
	}
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) (int, map[string]any) {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(fiber.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode %s response: %v", path, err)
	}
	return resp.StatusCode, decoded
}

func getJSON(t *testing.T, app *fiber.App, path string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, path, nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode %s response: %v", path, err)
	}
	return resp.StatusCode, decoded
}

func openAccount(t *testing.T, app *fiber.App, deposit string) string {
	t.Helper()
	status, body := postJSON(t, app, "/api/v1/accounts/", map[string]any{
		"ownerName":      "Ada Example",
		"ownerEmail":     "ada@example.com",
		"accountType":    "CHECKING",
		"currency":       "USD",
		"initialDeposit": deposit,
		"activate":       true,
	})
	if status != fiber.StatusCreated {
		t.Fatalf("open account: status = %d, body = %v", status, body)
	}
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatalf("open account: missing id in %v", body)
	}
	return id
}

func TestHealthz(t *testing.T) {
	app := setupApp(t)
	status, _ := getJSON(t, app, "/healthz")
	if status != fiber.StatusOK {
		t.Fatalf("healthz status = %d, want 200", status)
	}
}

func TestTransferLifecycleOverHTTP(t *testing.T) {
	app := setupApp(t)
	src := openAccount(t, app, "1000")
	dst := openAccount(t, app, "0")

	status, txn := postJSON(t, app, "/api/v1/transfers/", map[string]any{
		"sourceAccountId": src,
		"targetAccountId": dst,
		"transactionType": "INTERNAL_TRANSFER",
		"amount":          "250",
		"currency":        "USD",
		"description":     "rent share",
	})
	if status != fiber.StatusCreated {
		t.Fatalf("initiate status = %d, body = %v", status, txn)
	}
	if txn["status"] != "COMPLETED" {
		t.Fatalf("transfer status = %v, want COMPLETED", txn["status"])
	}

	_, balance := getJSON(t, app, fmt.Sprintf("/api/v1/accounts/%s/balance", dst))
	if balance["balance"] != "250" {
		t.Fatalf("target balance = %v, want 250", balance["balance"])
	}

	txnID, _ := txn["id"].(string)
	getStatus, fetched := getJSON(t, app, "/api/v1/transfers/"+txnID)
	if getStatus != fiber.StatusOK || fetched["id"] != txnID {
		t.Fatalf("lookup status = %d, body = %v", getStatus, fetched)
	}

	reference, _ := txn["referenceNumber"].(string)
	refStatus, byRef := getJSON(t, app, "/api/v1/transfers/reference/"+reference)
	if refStatus != fiber.StatusOK || byRef["id"] != txnID {
		t.Fatalf("reference lookup status = %d, body = %v", refStatus, byRef)
	}
}

func TestReviewFlowOverHTTP(t *testing.T) {
	app := setupApp(t)
	src := openAccount(t, app, "50000")
	dst := openAccount(t, app, "0")

	status, txn := postJSON(t, app, "/api/v1/transfers/", map[string]any{
		"sourceAccountId": src,
		"targetAccountId": dst,
		"transactionType": "INTERNAL_TRANSFER",
		"amount":          "20000",
		"currency":        "USD",
	})
	if status != fiber.StatusCreated {
		t.Fatalf("initiate status = %d, body = %v", status, txn)
	}
	if txn["status"] != "PENDING_REVIEW" {
		t.Fatalf("transfer status = %v, want PENDING_REVIEW", txn["status"])
	}

	listStatus, list := getJSON(t, app, "/api/v1/transfers/review")
	if listStatus != fiber.StatusOK {
		t.Fatalf("review list status = %d", listStatus)
	}
	parked, _ := list["transactions"].([]any)
	if len(parked) != 1 {
		t.Fatalf("review queue size = %d, want 1", len(parked))
	}

	txnID, _ := txn["id"].(string)
	resolveStatus, resolved := postJSON(t, app, "/api/v1/transfers/"+txnID+"/resolve", map[string]any{
		"approve": true,
		"note":    "confirmed by phone",
	})
	if resolveStatus != fiber.StatusOK {
		t.Fatalf("resolve status = %d, body = %v", resolveStatus, resolved)
	}
	if resolved["status"] != "COMPLETED" {
		t.Fatalf("resolved status = %v, want COMPLETED", resolved["status"])
	}
}

func TestValidationErrorsOverHTTP(t *testing.T) {
	app := setupApp(t)
	src := openAccount(t, app, "100")

	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/transfers/", bytes.NewReader([]byte(`{
        "sourceAccountId": "`+src+`",
        "targetAccountId": "`+src+`",
        "transactionType": "INTERNAL_TRANSFER",
        "amount": "10",
        "currency": "USD"
    }`)))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for same-account transfer", resp.StatusCode)
	}
}
