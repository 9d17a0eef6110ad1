package qrpayload

import (
	"fmt"
	"net/url"
)

// Encode renders the URL form printed into invitation QR codes:
// <baseURL>?guestId=..&eventId=..&token=..  Existing query parameters on
// baseURL are preserved.
func Encode(baseURL string, p Payload) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("qr base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("qr base url %q is not absolute", baseURL)
	}
	q := u.Query()
	q.Set("guestId", p.GuestID)
	q.Set("eventId", p.EventID)
	q.Set("token", p.QRToken)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
