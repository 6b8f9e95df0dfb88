package services

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image/png"
	"time"

	"github.com/skip2/go-qrcode"
)

const ticketSize = 256

// Ticket is what an attendee's QR code encodes.
type Ticket struct {
	EventID      string    `json:"eventId"`
	UserID       string    `json:"userId"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// qrImage renders t as a base64 PNG QR code.
func (t Ticket) qrImage() (string, error) {
	payload, err := json.Marshal(t)
	if err != nil {
		return "", err
	}

	qr, err := qrcode.New(string(payload), qrcode.Medium)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(ticketSize)); err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
