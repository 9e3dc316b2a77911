package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ============================================================
// Receipt submission — loosely-typed inbound payload
// ============================================================

// ReceiptSubmission is the typed form of a receipt payload after key
// aliases have been resolved. Fee and Total are deliberately absent: they
// are always derived from Amount.
type ReceiptSubmission struct {
	Date          string
	Bank          Bank
	Movement      MovementType
	OperatorLogin string
	Account       string
	Description   string
	Cancelled     bool
	Requester     Party
	Beneficiary   Party
	Amount        decimal.Decimal
	Currency      string

	// HasRequesterID is false when neither accepted key for the requester's
	// ID was present in the payload.
	HasRequesterID bool
	// ClientFee is the fee the client computed, kept only for logging drift.
	ClientFee decimal.Decimal
}

// Accepted aliases for each payload attribute.
var (
	requesterKeys   = []string{"requester", "solicitante"}
	beneficiaryKeys = []string{"beneficiary", "beneficiario"}
	partyIDKeys     = []string{"id", "dni"}
	partyNameKeys   = []string{"fullName", "nombre"}
	movementKeys    = []string{"movement", "movementType"}
)

// ParseReceiptSubmission maps a decoded JSON object onto a ReceiptSubmission.
// Missing amount/fee coerce to zero; missing party objects become empty
// parties. It only fails when a present value has an unusable type.
func ParseReceiptSubmission(raw map[string]any) (*ReceiptSubmission, error) {
	if raw == nil {
		raw = map[string]any{}
	}

	sub := &ReceiptSubmission{
		Date:          asString(raw["date"]),
		Bank:          Bank(strings.ToLower(asString(raw["bank"]))),
		Movement:      MovementType(strings.ToLower(firstString(raw, movementKeys))),
		OperatorLogin: asString(raw["operator"]),
		Account:       asString(raw["account"]),
		Description:   asString(raw["description"]),
		Currency:      strings.ToUpper(asString(raw["currency"])),
	}

	if v, ok := raw["cancelled"].(bool); ok {
		sub.Cancelled = v
	}

	var err error
	if sub.Amount, err = decimalField(raw, "amount"); err != nil {
		return nil, err
	}
	if sub.ClientFee, err = decimalField(raw, "fee"); err != nil {
		return nil, err
	}

	reqObj := firstObject(raw, requesterKeys)
	sub.Requester = parseParty(reqObj)
	sub.HasRequesterID = hasAnyKey(reqObj, partyIDKeys)

	sub.Beneficiary = parseParty(firstObject(raw, beneficiaryKeys))

	return sub, nil
}

func parseParty(obj map[string]any) Party {
	if obj == nil {
		return Party{}
	}
	return Party{
		ID:       firstString(obj, partyIDKeys),
		FullName: firstString(obj, partyNameKeys),
	}
}

func firstObject(raw map[string]any, keys []string) map[string]any {
	for _, k := range keys {
		if obj, ok := raw[k].(map[string]any); ok {
			return obj
		}
	}
	return nil
}

func hasAnyKey(obj map[string]any, keys []string) bool {
	for _, k := range keys {
		if asString(obj[k]) != "" {
			return true
		}
	}
	return false
}

// decimalField reads a numeric field that may arrive as a JSON number,
// json.Number or numeric string. Absent, null and "" are zero.
func decimalField(raw map[string]any, key string) (decimal.Decimal, error) {
	switch v := raw[key].(type) {
	case nil:
		return decimal.Zero, nil
	case json.Number:
		return parseDecimal(key, v.String())
	case float64:
		d := decimal.NewFromFloat(v)
		if err := CheckAmount(key, d); err != nil {
			return decimal.Zero, err
		}
		return d, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return decimal.Zero, nil
		}
		return parseDecimal(key, v)
	case bool:
		if !v {
			return decimal.Zero, nil
		}
	}
	return decimal.Zero, &ErrValidation{Field: key, Message: fmt.Sprintf("not a number: %v", raw[key])}
}

func parseDecimal(key, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, &ErrValidation{Field: key, Message: "not a number: " + s}
	}
	if err := CheckAmount(key, d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// LookupRequest is the body of the DNI / RUC lookup endpoints, which accept
// the identifier under "numero" or a kind-specific alias ("dni", "ruc").
type LookupRequest map[string]any

// Number returns the trimmed identifier under "numero" or alias.
func (r LookupRequest) Number(alias string) string {
	return firstString(r, []string{"numero", alias})
}

// editableFields are the receipt attributes a PATCH may change.
var editableFields = map[string]bool{"amount": true, "account": true, "description": true}

// ParseReceiptUpdate maps a PATCH body onto a ReceiptUpdate. Derived
// fields (fee, total) and immutable ones are rejected, not ignored.
func ParseReceiptUpdate(raw map[string]any) (*ReceiptUpdate, error) {
	for _, k := range []string{"fee", "total"} {
		if _, ok := raw[k]; ok {
			return nil, &ErrValidation{Field: k, Message: "derived from amount, cannot be set"}
		}
	}
	for k := range raw {
		if !editableFields[k] {
			return nil, &ErrValidation{Field: k, Message: "not editable"}
		}
	}

	u := &ReceiptUpdate{}
	if _, ok := raw["amount"]; ok {
		amount, err := decimalField(raw, "amount")
		if err != nil {
			return nil, err
		}
		if amount.IsNegative() {
			return nil, &ErrValidation{Field: "amount", Message: "must not be negative"}
		}
		u.Amount = &amount
	}
	if v, ok := raw["account"]; ok {
		s := asString(v)
		u.Account = &s
	}
	if v, ok := raw["description"]; ok {
		s := asString(v)
		u.Description = &s
	}
	return u, nil
}

// Apply writes the update onto r, re-deriving fee and total when the
// amount changes.
func (u *ReceiptUpdate) Apply(r *Receipt) {
	if u.Amount != nil {
		r.SetAmount(*u.Amount)
	}
	if u.Account != nil {
		r.Account = *u.Account
	}
	if u.Description != nil {
		r.Description = *u.Description
	}
}
