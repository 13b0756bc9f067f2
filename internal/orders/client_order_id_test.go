package orders

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestGenerateFormat(t *testing.T) {
	g := NewGenerator(time.UTC)

	fullID, baseID, err := g.Generate(OrderTypeEntry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(fullID, "CT-") {
		t.Errorf("full ID %q missing prefix", fullID)
	}
	if !strings.HasSuffix(fullID, "-E") {
		t.Errorf("full ID %q missing entry suffix", fullID)
	}
	if fullID != baseID+"-E" {
		t.Errorf("full ID %q does not extend base ID %q", fullID, baseID)
	}
	if len(fullID) > MaxClientOrderIDLength {
		t.Errorf("ID %q exceeds %d characters", fullID, MaxClientOrderIDLength)
	}

	parsed, err := Parse(fullID)
	if err != nil {
		t.Fatalf("generated ID failed to parse: %v", err)
	}
	if parsed.OrderType != OrderTypeEntry {
		t.Errorf("parsed type = %s, want E", parsed.OrderType)
	}
	if parsed.BaseID != baseID {
		t.Errorf("parsed base = %q, want %q", parsed.BaseID, baseID)
	}
	if len(parsed.Token) != 8 {
		t.Errorf("token %q should be 8 characters", parsed.Token)
	}
}

func TestGenerateIsUnique(t *testing.T) {
	g := NewGenerator(nil)
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id, _, err := g.Generate(OrderTypeEntry)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestGenerateRelatedSharesBase(t *testing.T) {
	g := NewGenerator(time.UTC)
	_, baseID, err := g.Generate(OrderTypeEntry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	exitID, err := g.GenerateRelated(baseID, OrderTypeExit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exitID != baseID+"-X" {
		t.Errorf("exit ID = %q, want %q", exitID, baseID+"-X")
	}
}

func TestGenerateRejectsUnknownType(t *testing.T) {
	g := NewGenerator(time.UTC)
	if _, _, err := g.Generate(OrderType("Z")); !errors.Is(err, ErrInvalidOrderType) {
		t.Errorf("expected ErrInvalidOrderType, got %v", err)
	}
}

func TestParseRejectsMalformedIDs(t *testing.T) {
	bad := []string{
		"",
		"CT-15JAN-a3f7c2e9",     // missing suffix
		"XX-15JAN-a3f7c2e9-E",   // wrong prefix
		"CT-15JAN-a3f7c2e9-Q",   // unknown type
		"CT-15JAN-E",            // missing token
		"manual-order-from-app", // not ours at all
	}
	for _, id := range bad {
		if _, err := Parse(id); !errors.Is(err, ErrInvalidClientOrderID) {
			t.Errorf("Parse(%q): expected ErrInvalidClientOrderID, got %v", id, err)
		}
	}
}

func TestIsBotOrder(t *testing.T) {
	if !IsBotOrder("CT-15JAN-a3f7c2e9-E") {
		t.Error("bot ID not recognised")
	}
	if IsBotOrder("x-CT-123") || IsBotOrder("web_abc123") {
		t.Error("foreign ID misattributed to bot")
	}
}
