// Package qrpayload converts between the string printed in an invitation
// QR code and the structured scan request the validator consumes.
//
// Two encodings are accepted: an absolute URL whose query string carries
// the fields, and a flat JSON object.  Field names are matched
// case-insensitively and the token may be named either "token" or
// "qrToken".
package qrpayload

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ErrMalformedPayload is returned when a scanned string cannot be parsed or
// lacks one of the required fields.
var ErrMalformedPayload = errors.New("malformed QR payload")

// Payload is the decoded content of a guest's QR code.
type Payload struct {
	GuestID string `json:"guestId"`
	EventID string `json:"eventId"`
	QRToken string `json:"qrToken"`
}

// lookup order per field; exact spellings win over the case-folded fallback.
var (
	guestKeys = []string{"guestId", "guestid"}
	eventKeys = []string{"eventId", "eventid"}
	tokenKeys = []string{"token", "qrToken"}
)

// Decode parses raw as a URL first and as a JSON object second.  It has no
// side effects.
func Decode(raw string) (Payload, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Payload{}, fmt.Errorf("%w: empty", ErrMalformedPayload)
	}

	var params map[string]string
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" && u.Host != "" {
		params = fromQuery(u.Query())
	} else {
		bag, err := fromJSON(raw)
		if err != nil {
			return Payload{}, fmt.Errorf("%w: not a URL or JSON object", ErrMalformedPayload)
		}
		params = bag
	}

	p := Payload{
		GuestID: pick(params, guestKeys),
		EventID: pick(params, eventKeys),
		QRToken: pick(params, tokenKeys),
	}
	var missing []string
	if p.GuestID == "" {
		missing = append(missing, "guestId")
	}
	if p.EventID == "" {
		missing = append(missing, "eventId")
	}
	if p.QRToken == "" {
		missing = append(missing, "token")
	}
	if len(missing) > 0 {
		return Payload{}, fmt.Errorf("%w: missing %s", ErrMalformedPayload, strings.Join(missing, ", "))
	}
	return p, nil
}

func fromQuery(q url.Values) map[string]string {
	out := make(map[string]string, len(q))
	for k, v := range q {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// fromJSON accepts a flat object; string, number and boolean values are
// stringified, nested values are ignored.
func fromJSON(raw string) (map[string]string, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("null")
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		switch t := v.(type) {
		case string:
			out[k] = t
		case json.Number:
			out[k] = t.String()
		case bool:
			out[k] = strconv.FormatBool(t)
		}
	}
	return out, nil
}

func pick(params map[string]string, keys []string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(params[k]); v != "" {
			return v
		}
	}
	for k, v := range params {
		for _, want := range keys {
			if strings.EqualFold(k, want) {
				if v = strings.TrimSpace(v); v != "" {
					return v
				}
			}
		}
	}
	return ""
}
