// Package qr produces and parses the gate-pass QR credential. The scannable
// payload is a small JSON document; the token inside it is the only secret.
package qr

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
)

// Payload is the document embedded in the scannable image.
type Payload struct {
	Token         string `json:"token"`
	StudentNumber string `json:"studentId"`
	Timestamp     int64  `json:"timestamp"`
}

// NewToken returns a fresh opaque QR token.
func NewToken() string {
	return uuid.NewString()
}

// NewPayload binds a token to a student at the current instant.
func NewPayload(studentNumber, token string) Payload {
	return Payload{
		Token:         token,
		StudentNumber: studentNumber,
		Timestamp:     time.Now().UnixMilli(),
	}
}

// Encode renders the payload as the JSON string stored in the QR image.
func Encode(p Payload) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode qr payload: %w", err)
	}
	return string(raw), nil
}

// Decode parses a scanned string back into a Payload. Malformed input or a
// payload missing any field yields an error.
func Decode(qrString string) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(qrString), &p); err != nil {
		return nil, fmt.Errorf("decode qr payload: %w", err)
	}
	if p.Token == "" || p.StudentNumber == "" || p.Timestamp == 0 {
		return nil, fmt.Errorf("decode qr payload: missing fields")
	}
	return &p, nil
}

// ImagePNG renders the payload as a PNG of the given pixel size. High error
// correction so a worn phone screen still scans at the gate.
func ImagePNG(p Payload, size int) ([]byte, error) {
	if size <= 0 {
		size = 400
	}
	content, err := Encode(p)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(content, qrcode.High, size)
	if err != nil {
		return nil, fmt.Errorf("render qr image: %w", err)
	}
	return png, nil
}

// ExpiryFrom computes the credential expiry, clamping days to [min, max].
func ExpiryFrom(now time.Time, days, min, max int) time.Time {
	if days < min {
		days = min
	}
	if days > max {
		days = max
	}
	return now.AddDate(0, 0, days)
}

// IsExpired reports whether the credential is past its expiry.
func IsExpired(expiresAt, now time.Time) bool {
	return now.After(expiresAt)
}
