package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/venue-scan/internal/qrpayload"
	"github.com/iliyamo/venue-scan/internal/repository"
	"github.com/iliyamo/venue-scan/internal/utils"
)

// TokenStore persists the digest of a guest's current QR token.
type TokenStore interface {
	SetTokenHash(ctx context.Context, eventID, guestID, tokenHash string) error
}

// IssuedToken is returned once, right after rotation.  Only the digest of
// Token is stored.
type IssuedToken struct {
	GuestID string `json:"guestId"`
	EventID string `json:"eventId"`
	Token   string `json:"token"`
	QRData  string `json:"qrData"`
}

// TokenIssuer rotates QR tokens.  Rotation replaces the stored digest, so
// the previous token stops validating immediately.
type TokenIssuer struct {
	store   TokenStore
	baseURL string
}

// NewTokenIssuer returns an issuer that renders QR payloads under baseURL.
func NewTokenIssuer(store TokenStore, baseURL string) *TokenIssuer {
	return &TokenIssuer{store: store, baseURL: baseURL}
}

// Rotate issues a fresh token for one guest.
func (t *TokenIssuer) Rotate(ctx context.Context, eventID, guestID string) (IssuedToken, error) {
	raw, err := utils.NewQRToken()
	if err != nil {
		return IssuedToken{}, fmt.Errorf("generate qr token: %w", err)
	}
	qrData, err := qrpayload.Encode(t.baseURL, qrpayload.Payload{GuestID: guestID, EventID: eventID, QRToken: raw})
	if err != nil {
		return IssuedToken{}, err
	}
	if err := t.store.SetTokenHash(ctx, eventID, guestID, utils.HashToken(raw)); err != nil {
		if errors.Is(err, repository.ErrGuestNotFound) {
			return IssuedToken{}, ErrGuestNotFound
		}
		return IssuedToken{}, fmt.Errorf("store qr token: %w", err)
	}
	return IssuedToken{GuestID: guestID, EventID: eventID, Token: raw, QRData: qrData}, nil
}
