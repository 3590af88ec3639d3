// Package rules defines the rule records exchanged with the gateway backend.
package rules

import "strconv"

// DefaultService is the selector placeholder meaning "no service chosen".
const DefaultService = "default"

// Type tags how the operator typed the rule text. The backend decodes the
// text accordingly; the console never interprets it.
type Type string

const (
	TypeASCII  Type = "ascii"
	TypeHex    Type = "hex"
	TypeBase64 Type = "base64"
)

// Types lists the rule types in selector order.
var Types = []Type{TypeASCII, TypeHex, TypeBase64}

// Rule is a stored rule as returned by the backend. Payload is the raw
// rule bytes in standard base64.
type Rule struct {
	ID          int64  `json:"id"`
	Payload     string `json:"b64_rule"`
	ServiceName string `json:"service_name,omitempty"`
}

// Decoded is a rule whose payload has been through the display codec.
type Decoded struct {
	ID          int64
	ServiceName string
	Text        string
}

// NodeID is the stable identifier of the rendered rule node.
func (d Decoded) NodeID() string {
	return NodeID(d.ID)
}

// NodeID returns "rule-<id>".
func NodeID(id int64) string {
	return "rule-" + strconv.FormatInt(id, 10)
}

// ListID returns the identifier of the per-service rule list.
func ListID(service string) string {
	return service + "-rules-list"
}

// NewRule is the creation request body of POST /rules.
type NewRule struct {
	ServiceName string `json:"service_name"`
	Text        string `json:"rule_text"`
	Type        Type   `json:"rule_type"`
}
