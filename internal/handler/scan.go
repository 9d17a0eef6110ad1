package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-scan/internal/qrpayload"
	"github.com/iliyamo/venue-scan/internal/service"
)

// Validator decides one scan.
type Validator interface {
	Validate(ctx context.Context, req service.ScanRequest) (service.ScanResult, error)
}

// ScanHandler serves POST /api/events/validate-scan.
type ScanHandler struct {
	Validator Validator
}

func NewScanHandler(v Validator) *ScanHandler { return &ScanHandler{Validator: v} }

type validateScanReq struct {
	GuestID        string `json:"guestId"`
	EventID        string `json:"eventId"`
	QRToken        string `json:"qrToken"`
	ScannedEventID string `json:"scannedEventId"`
	QRData         string `json:"qrData"` // raw scanned string, decoded server-side
}

type validateScanResp struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	GuestName         string `json:"guestName"`
	Status            string `json:"status"`
	Type              string `json:"type"`
	State             string `json:"state"`
	ConsumedScans     int    `json:"consumedScans"`
	RemainingScans    int    `json:"remainingScans"`
	TotalAllowedScans int    `json:"totalAllowedScans"`
	ScannedAt         string `json:"scannedAt"`
}

// ValidateScan accepts either the decoded fields or qrData.  Decoded fields
// present in the body take precedence over the ones inside qrData.
func (h *ScanHandler) ValidateScan(c echo.Context) error {
	// Decode the JSON body; an unreadable body is a malformed scan.
	var req validateScanReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, service.Code(service.ErrMalformedPayload), "invalid body")
	}
	// Devices that send the raw QR text get it decoded here and only fill
	// the fields they left empty.
	if raw := strings.TrimSpace(req.QRData); raw != "" {
		p, err := qrpayload.Decode(raw)
		if err != nil {
			return failErr(c, err, "decode failed")
		}
		req.GuestID = firstNonEmpty(req.GuestID, p.GuestID)
		req.EventID = firstNonEmpty(req.EventID, p.EventID)
		req.QRToken = firstNonEmpty(req.QRToken, p.QRToken)
	}

	// The operator comes from the verified access token, never the body.
	userID, role := operator(c)
	ctx, cancel := dbCtx(c)
	defer cancel()

	res, err := h.Validator.Validate(ctx, service.ScanRequest{
		GuestID:        strings.TrimSpace(req.GuestID),
		EventID:        strings.TrimSpace(req.EventID),
		QRToken:        strings.TrimSpace(req.QRToken),
		ScannedEventID: strings.TrimSpace(req.ScannedEventID),
		OperatorID:     userID,
		OperatorRole:   role,
	})
	// Rejections map to 4xx with their code; anything else is a 500.
	if err != nil {
		return failErr(c, err, "scan validation failed")
	}
	return c.JSON(http.StatusOK, validateScanResp{
		Success:           true,
		Message:           "Check-in successful",
		GuestName:         res.GuestName,
		Status:            res.Status,
		Type:              string(res.Type),
		State:             string(res.State),
		ConsumedScans:     res.ConsumedScans,
		RemainingScans:    res.RemainingScans,
		TotalAllowedScans: res.TotalAllowedScans,
		ScannedAt:         res.ScannedAt.UTC().Format(timeLayout),
	})
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}
