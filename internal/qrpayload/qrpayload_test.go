package qrpayload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Payload
	}{
		{
			name: "url with lower-case event key",
			raw:  "https://x/y?guestId=G3&eventid=E2&token=T3",
			want: Payload{GuestID: "G3", EventID: "E2", QRToken: "T3"},
		},
		{
			name: "url with qrToken key",
			raw:  "https://venuescan.app/checkin?guestid=g&eventId=e&qrToken=t",
			want: Payload{GuestID: "g", EventID: "e", QRToken: "t"},
		},
		{
			name: "url with unusual casing",
			raw:  "http://h/p?GUESTID=g&EventID=e&Token=t",
			want: Payload{GuestID: "g", EventID: "e", QRToken: "t"},
		},
		{
			name: "json object",
			raw:  `{"guestId":"G1","eventId":"E1","token":"T1"}`,
			want: Payload{GuestID: "G1", EventID: "E1", QRToken: "T1"},
		},
		{
			name: "json with numeric ids and surrounding whitespace",
			raw:  "  {\"guestid\":42,\"eventid\":7,\"qrToken\":\"abc\"}\n",
			want: Payload{GuestID: "42", EventID: "7", QRToken: "abc"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"plain text",
		"https://x/y?guestId=G&eventId=E",
		"https://x/y?guestId=&eventId=E&token=T",
		`{"guestId":"G","token":"T"}`,
		`["G","E","T"]`,
		"null",
		"/relative?guestId=G&eventId=E&token=T",
	} {
		_, err := Decode(raw)
		assert.ErrorIs(t, err, ErrMalformedPayload, "raw=%q", raw)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := Payload{GuestID: "g-1", EventID: "e 2", QRToken: "tok&=?"}
	s, err := Encode("https://venuescan.app/checkin?src=invite", in)
	require.NoError(t, err)
	assert.Contains(t, s, "src=invite")

	out, err := Decode(s)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = Encode("not a url", in)
	assert.Error(t, err)
}
