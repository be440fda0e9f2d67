package payment

import (
	"encoding/json"
	"testing"
)

func TestSignTokenEmptyInput(t *testing.T) {
	// With no params and an empty password the concatenation is empty,
	// so the token is the sha256 of the empty string.
	got := SignToken(map[string]string{}, "")
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got != want {
		t.Fatalf("expected sha256 of empty string, got %s", got)
	}
}

func TestSignTokenExcludesTokenField(t *testing.T) {
	params := map[string]string{
		"TerminalKey": "TK",
		"Amount":      "10000",
		"OrderId":     "abc",
	}
	withToken := map[string]string{
		"TerminalKey": "TK",
		"Amount":      "10000",
		"OrderId":     "abc",
		"Token":       "stale-token",
	}
	if SignToken(params, "pw") != SignToken(withToken, "pw") {
		t.Fatal("expected Token field to be excluded from signing")
	}
}

func TestSignTokenDependsOnPassword(t *testing.T) {
	params := map[string]string{"TerminalKey": "TK", "Amount": "100"}
	if SignToken(params, "pw1") == SignToken(params, "pw2") {
		t.Fatal("expected different passwords to produce different tokens")
	}
}

func TestWebhookTokenMatchesSignToken(t *testing.T) {
	p := WebhookPayload{
		TerminalKey: "TK",
		Amount:      10000,
		OrderID:     "order-1",
		Success:     true,
		Status:      StatusConfirmed,
		PaymentID:   json.Number("900001"),
		ErrorCode:   "0",
	}
	want := SignToken(map[string]string{
		"TerminalKey": "TK",
		"Amount":      "10000",
		"OrderId":     "order-1",
		"Success":     "true",
		"Status":      "CONFIRMED",
		"PaymentId":   "900001",
		"ErrorCode":   "0",
	}, "secret")
	if got := WebhookToken(p, "secret"); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestWebhookTokenIncludesCardFieldsWhenPresent(t *testing.T) {
	base := WebhookPayload{
		TerminalKey: "TK",
		Amount:      100,
		OrderID:     "o",
		Success:     true,
		Status:      StatusConfirmed,
		PaymentID:   json.Number("1"),
	}
	withCard := base
	withCard.CardID = "card-77"
	if WebhookToken(base, "pw") == WebhookToken(withCard, "pw") {
		t.Fatal("expected CardId to participate in the signature when set")
	}
}
