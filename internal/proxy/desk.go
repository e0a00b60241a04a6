package proxy

import (
	"context"
	"errors"
	"strings"

	"github.com/ilexum-group/supportkit/internal/models"
)

// ErrNoToken is returned by a TokenSource without credentials
var ErrNoToken = errors.New("missing help desk access token")

// Customer is the optional reporter identity sent with a ticket
type Customer struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// NewTicket is a ticket to be created in the help desk
type NewTicket struct {
	Subject     string
	Description string
	Customer    *Customer
}

// Desk creates tickets in a help desk system
type Desk interface {
	CreateTicket(ctx context.Context, ticket NewTicket) (string, error)
	AddAttachment(ctx context.Context, ticketID string, file models.Attachment) error
}

// TokenSource supplies access tokens for the help desk API
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource returning a fixed token
type StaticToken string

// Token implements TokenSource
func (t StaticToken) Token(context.Context) (string, error) {
	if strings.TrimSpace(string(t)) == "" {
		return "", ErrNoToken
	}
	return string(t), nil
}
