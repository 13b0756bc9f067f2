// Package orders provides client order ID generation for mirrored futures
// orders. Every order the bot places carries a structured ID so it can be
// told apart from manual orders when auditing exchange history.
package orders

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxClientOrderIDLength is the maximum length allowed by Binance.
	MaxClientOrderIDLength = 36

	// IDPrefix marks orders placed by the copy-trade bot.
	IDPrefix = "CT"
)

// OrderType is the lifecycle suffix on a client order ID.
type OrderType string

const (
	OrderTypeEntry OrderType = "E"
	OrderTypeExit  OrderType = "X"
)

// Errors for client order ID operations.
var (
	ErrInvalidOrderType     = errors.New("invalid order type")
	ErrInvalidClientOrderID = errors.New("invalid client order ID format")
)

// Generator produces client order IDs of the form
// CT-15JAN-a3f7c2e9-E: prefix, date, random token, lifecycle suffix.
// The random token keeps IDs unique without any shared counter, so two
// bot instances can never collide.
type Generator struct {
	timezone *time.Location
}

// NewGenerator creates a generator. A nil timezone defaults to UTC.
func NewGenerator(timezone *time.Location) *Generator {
	if timezone == nil {
		timezone = time.UTC
	}
	return &Generator{timezone: timezone}
}

// Generate returns (fullID, baseID) for a new order. baseID is the ID
// without the lifecycle suffix and links an entry to its exit.
func (g *Generator) Generate(orderType OrderType) (string, string, error) {
	if err := validateOrderType(orderType); err != nil {
		return "", "", err
	}

	dateStr := strings.ToUpper(time.Now().In(g.timezone).Format("02Jan"))
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]

	baseID := fmt.Sprintf("%s-%s-%s", IDPrefix, dateStr, token)
	fullID := fmt.Sprintf("%s-%s", baseID, orderType)
	return fullID, baseID, nil
}

// GenerateRelated derives a new ID for the same trade from an existing
// base ID, e.g. the exit order matching an earlier entry.
func (g *Generator) GenerateRelated(baseID string, orderType OrderType) (string, error) {
	if err := validateOrderType(orderType); err != nil {
		return "", err
	}
	if _, err := ParseBaseID(baseID); err != nil {
		return "", err
	}
	fullID := fmt.Sprintf("%s-%s", baseID, orderType)
	if len(fullID) > MaxClientOrderIDLength {
		return "", fmt.Errorf("%w: %q is %d characters", ErrInvalidClientOrderID, fullID, len(fullID))
	}
	return fullID, nil
}

// IsBotOrder reports whether a client order ID was issued by this bot.
func IsBotOrder(clientOrderID string) bool {
	return strings.HasPrefix(clientOrderID, IDPrefix+"-")
}

// ParsedID is the decomposed form of a full client order ID.
type ParsedID struct {
	BaseID    string
	Date      string
	Token     string
	OrderType OrderType
}

// Parse decomposes a full client order ID.
func Parse(clientOrderID string) (ParsedID, error) {
	parts := strings.Split(clientOrderID, "-")
	if len(parts) != 4 || parts[0] != IDPrefix {
		return ParsedID{}, fmt.Errorf("%w: %q", ErrInvalidClientOrderID, clientOrderID)
	}
	ot := OrderType(parts[3])
	if err := validateOrderType(ot); err != nil {
		return ParsedID{}, fmt.Errorf("%w: %q", ErrInvalidClientOrderID, clientOrderID)
	}
	return ParsedID{
		BaseID:    strings.Join(parts[:3], "-"),
		Date:      parts[1],
		Token:     parts[2],
		OrderType: ot,
	}, nil
}

// ParseBaseID validates a base ID (an ID without the lifecycle suffix).
func ParseBaseID(baseID string) (ParsedID, error) {
	parts := strings.Split(baseID, "-")
	if len(parts) != 3 || parts[0] != IDPrefix {
		return ParsedID{}, fmt.Errorf("%w: %q", ErrInvalidClientOrderID, baseID)
	}
	return ParsedID{BaseID: baseID, Date: parts[1], Token: parts[2]}, nil
}

func validateOrderType(ot OrderType) error {
	switch ot {
	case OrderTypeEntry, OrderTypeExit:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidOrderType, ot)
}
