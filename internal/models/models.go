package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// MaxExponent bounds the decimal exponent of a numeric cell. Cells beyond
// it are kept as text.
const MaxExponent = 64

// ValueKind tells which variant a Value holds
type ValueKind int

const (
	// KindText is a trimmed, non numeric cell
	KindText ValueKind = iota
	// KindNumeric is a cell that parsed as a decimal number
	KindNumeric
)

// String returns the string representation of ValueKind
func (k ValueKind) String() string {
	if k == KindNumeric {
		return "numeric"
	}
	return "text"
}

// Value is a cell coerced once at ingestion: either a number or trimmed text
type Value struct {
	kind   ValueKind
	number decimal.Decimal
	text   string
}

// ParseValue coerces a raw cell. Trimmed input that parses as a decimal
// number with an exponent within MaxExponent becomes numeric; anything else
// is kept as trimmed text.
func ParseValue(raw string) Value {
	s := strings.TrimSpace(raw)
	if s != "" {
		if d, err := decimal.NewFromString(s); err == nil && exponentInRange(d) {
			return NumericValue(d)
		}
	}
	return TextValue(s)
}

func exponentInRange(d decimal.Decimal) bool {
	exp := d.Exponent()
	return exp >= -MaxExponent && exp <= MaxExponent
}

// NumericValue creates a numeric Value
func NumericValue(d decimal.Decimal) Value {
	return Value{kind: KindNumeric, number: d}
}

// TextValue creates a text Value from s, trimmed
func TextValue(s string) Value {
	return Value{kind: KindText, text: strings.TrimSpace(s)}
}

// Kind returns the variant held by v
func (v Value) Kind() ValueKind {
	return v.kind
}

// IsNumeric returns true if the value parsed as a number
func (v Value) IsNumeric() bool {
	return v.kind == KindNumeric
}

// Number returns the numeric part, zero for text values
func (v Value) Number() decimal.Decimal {
	return v.number
}

// Text returns the text part, empty for numeric values
func (v Value) Text() string {
	return v.text
}

// IsZero reports whether v is numerically zero. Text is never zero.
func (v Value) IsZero() bool {
	return v.kind == KindNumeric && v.number.IsZero()
}

// Equal is exact: numbers compare by value, text by string, and the two
// variants never equal each other.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	if v.kind == KindNumeric {
		return v.number.Equal(other.number)
	}
	return v.text == other.text
}

// String returns the canonical form of the value
func (v Value) String() string {
	if v.kind == KindNumeric {
		return v.number.String()
	}
	return v.text
}

// Quoted renders numbers bare and text in quotes, for diagnostics
func (v Value) Quoted() string {
	if v.kind == KindNumeric {
		return v.number.String()
	}
	return fmt.Sprintf("%q", v.text)
}

// MarshalJSON renders numbers as JSON numbers and text as JSON strings
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindNumeric {
		return []byte(v.number.String()), nil
	}
	return json.Marshal(v.text)
}

// MarshalYAML renders numbers as plain YAML scalars in their exact decimal
// form and text as strings
func (v Value) MarshalYAML() (interface{}, error) {
	if v.kind == KindNumeric {
		value := v.number.String()
		tag := "!!int"
		if strings.Contains(value, ".") {
			tag = "!!float"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}, nil
	}
	return v.text, nil
}

// FormatValues renders a list of values like [250, "n/a"]
func FormatValues(values []Value) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.Quoted()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// IsBlank reports whether a raw cell carries no data
func IsBlank(raw string) bool {
	return strings.TrimSpace(raw) == ""
}

// EMField names which EM line item column a bill field compares against
type EMField string

const (
	EMFieldUsage EMField = "usage"
	EMFieldCost  EMField = "cost"
)

// IsValid checks if the EM field is known
func (f EMField) IsValid() bool {
	return f == EMFieldUsage || f == EMFieldCost
}

// Label returns the EM export column the field is read from by default
func (f EMField) Label() string {
	switch f {
	case EMFieldUsage:
		return "Line Item Usage"
	case EMFieldCost:
		return "Line Item Cost"
	default:
		return string(f)
	}
}

// ParseEMField parses an EM field from its short name or column label
func ParseEMField(s string) (EMField, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "usage", "line item usage":
		return EMFieldUsage, nil
	case "cost", "line item cost":
		return EMFieldCost, nil
	default:
		return "", fmt.Errorf("invalid EM field '%s': must be usage or cost", s)
	}
}

// BillRecord is one account row of the bill table
type BillRecord struct {
	AccountID string           `json:"account_id"`
	Address   string           `json:"address,omitempty"`
	Values    map[string]Value `json:"values"`
	Line      int              `json:"line"`
}

// NewBillRecord creates a bill record with trimmed identifiers
func NewBillRecord(accountID, address string, line int) *BillRecord {
	return &BillRecord{
		AccountID: strings.TrimSpace(accountID),
		Address:   strings.TrimSpace(address),
		Values:    make(map[string]Value),
		Line:      line,
	}
}

// SetRaw stores a raw bill cell. Blank cells are not stored.
func (b *BillRecord) SetRaw(field, raw string) {
	if IsBlank(raw) {
		return
	}
	b.Values[field] = ParseValue(raw)
}

// Value returns the coerced value of a bill field, false when absent or blank
func (b *BillRecord) Value(field string) (Value, bool) {
	v, ok := b.Values[field]
	return v, ok
}

// IsSkippable reports whether the row carries no account: empty id or the
// sentinel placeholder used on header and footer rows.
func (b *BillRecord) IsSkippable(sentinel string) bool {
	return b.AccountID == "" || b.AccountID == strings.TrimSpace(sentinel)
}

// String returns a string representation of the BillRecord
func (b *BillRecord) String() string {
	return fmt.Sprintf("BillRecord{Account: %s, Address: %s, Fields: %d}", b.AccountID, b.Address, len(b.Values))
}

// EMLineItem is one line item row of the Energy Manager export
type EMLineItem struct {
	AccountID   string `json:"account_id"`
	UtilityType string `json:"utility_type"`
	Usage       Value  `json:"usage"`
	Cost        Value  `json:"cost"`
	Line        int    `json:"line"`
}

// NewEMLineItem creates a line item from raw cells
func NewEMLineItem(accountID, utilityType, usage, cost string, line int) *EMLineItem {
	return &EMLineItem{
		AccountID:   strings.TrimSpace(accountID),
		UtilityType: strings.TrimSpace(utilityType),
		Usage:       ParseValue(usage),
		Cost:        ParseValue(cost),
		Line:        line,
	}
}

// Value returns the line item value for the given field
func (e *EMLineItem) Value(field EMField) Value {
	if field == EMFieldUsage {
		return e.Usage
	}
	return e.Cost
}

// String returns a string representation of the EMLineItem
func (e *EMLineItem) String() string {
	return fmt.Sprintf("EMLineItem{Account: %s, Type: %s, Usage: %s, Cost: %s}",
		e.AccountID, e.UtilityType, e.Usage, e.Cost)
}
