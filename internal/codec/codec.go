// Package codec converts rule payloads between their wire form (base64 of
// arbitrary bytes) and a printable display form.
package codec

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"grimm.is/rulegate/internal/rules"
)

const hexDigits = "0123456789abcdef"

var (
	ErrInvalidHex    = errors.New("invalid hex string")
	ErrInvalidBase64 = errors.New("invalid base64 string")
	ErrInvalidType   = errors.New("invalid rule type")
)

// Display renders raw bytes using only printable ASCII: bytes in [32,126]
// are kept, every other byte becomes \xHH with two lowercase hex digits.
func Display(raw []byte) string {
	var sb strings.Builder
	sb.Grow(len(raw))
	for _, c := range raw {
		if c >= 32 && c <= 126 {
			sb.WriteByte(c)
			continue
		}
		sb.WriteString(`\x`)
		sb.WriteByte(hexDigits[c>>4])
		sb.WriteByte(hexDigits[c&0x0f])
	}
	return sb.String()
}

// DecodeForDisplay decodes a base64 payload and returns its display form.
// The result is plain text and still needs HTML escaping.
func DecodeForDisplay(b64 string) (string, error) {
	raw, err := decodePayload(b64)
	if err != nil {
		return "", fmt.Errorf("decode rule payload: %w", err)
	}
	return Display(raw), nil
}

// decodePayload accepts payloads the way browsers' atob does: ASCII
// whitespace is skipped and trailing padding is optional.
func decodePayload(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\f', '\r':
			return -1
		}
		return r
	}, s)
	if len(s)%4 == 0 {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}

// Decode applies DecodeForDisplay to a backend rule.
func Decode(r rules.Rule) (rules.Decoded, error) {
	text, err := DecodeForDisplay(r.Payload)
	if err != nil {
		return rules.Decoded{}, fmt.Errorf("rule %d: %w", r.ID, err)
	}
	return rules.Decoded{ID: r.ID, ServiceName: r.ServiceName, Text: text}, nil
}

// ParseType accepts the rule type names case-insensitively.
func ParseType(s string) (rules.Type, error) {
	t := rules.Type(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range rules.Types {
		if t == known {
			return t, nil
		}
	}
	return "", ErrInvalidType
}

// EncodeText turns operator input into rule bytes according to its type.
func EncodeText(t rules.Type, text string) ([]byte, error) {
	switch t {
	case rules.TypeASCII:
		return []byte(text), nil
	case rules.TypeHex:
		b, err := hex.DecodeString(text)
		if err != nil {
			return nil, ErrInvalidHex
		}
		return b, nil
	case rules.TypeBase64:
		b, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return nil, ErrInvalidBase64
		}
		return b, nil
	}
	return nil, ErrInvalidType
}

// EncodePayload returns the wire form of raw rule bytes.
func EncodePayload(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}

// Preview shows how text of type t will be displayed once stored.
func Preview(t rules.Type, text string) (string, error) {
	raw, err := EncodeText(t, text)
	if err != nil {
		return "", err
	}
	return Display(raw), nil
}
