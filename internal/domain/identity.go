package domain

import (
	"fmt"
	"strings"
)

// ============================================================
// Identity lookups (DNI / RUC)
// ============================================================

// Identity is the canonical shape of a resolved national ID (DNI).
type Identity struct {
	ID              string `json:"numero" yaml:"numero"`
	FirstNames      string `json:"nombres" yaml:"nombres"`
	PaternalSurname string `json:"apellidoPaterno" yaml:"apellidoPaterno"`
	MaternalSurname string `json:"apellidoMaterno" yaml:"apellidoMaterno"`
	FullName        string `json:"nombreCompleto" yaml:"nombreCompleto,omitempty"`
}

// Empty reports whether no name field carries data.
func (i *Identity) Empty() bool {
	return i.FirstNames == "" && i.PaternalSurname == "" && i.MaternalSurname == "" && i.FullName == ""
}

// BusinessIdentity is the canonical shape of a resolved business ID (RUC).
type BusinessIdentity struct {
	ID        string `json:"numero" yaml:"numero"`
	LegalName string `json:"razonSocial" yaml:"razonSocial"`
	Status    string `json:"estado" yaml:"estado"`
	Condition string `json:"condicion" yaml:"condicion"`
	Address   string `json:"direccion" yaml:"direccion"`
}

// Upstream field-name candidates, highest priority first. The provider
// schema is not stable, so each attribute tries several spellings.
var (
	firstNamesKeys      = []string{"nombres", "first_name"}
	paternalSurnameKeys = []string{"apellidoPaterno", "apellido_paterno", "first_last_name"}
	maternalSurnameKeys = []string{"apellidoMaterno", "apellido_materno", "second_last_name"}
	fullNameKeys        = []string{"full_name", "nombreCompleto", "nombre_completo"}
	documentKeys        = []string{"document_number", "numero", "numero_documento"}

	legalNameKeys = []string{"razon_social", "razonSocial", "nombre_o_razon_social"}
	statusKeys    = []string{"estado", "status"}
	conditionKeys = []string{"condicion", "condition"}
	addressKeys   = []string{"direccion", "address"}
)

// UnwrapPayload returns the object nested under "data" when present,
// otherwise the payload itself.
func UnwrapPayload(payload map[string]any) map[string]any {
	if payload == nil {
		return map[string]any{}
	}
	if inner, ok := payload["data"].(map[string]any); ok {
		return inner
	}
	return payload
}

// NormalizeIdentity extracts an Identity from a provider payload.
// requestedID is used when the payload does not echo the document number.
// The second return value is false when every name field is empty, which
// callers must treat as "not found" even if the provider answered 200.
func NormalizeIdentity(payload map[string]any, requestedID string) (*Identity, bool) {
	raw := UnwrapPayload(payload)

	id := &Identity{
		FirstNames:      firstString(raw, firstNamesKeys),
		PaternalSurname: firstString(raw, paternalSurnameKeys),
		MaternalSurname: firstString(raw, maternalSurnameKeys),
	}
	id.FullName = firstString(raw, fullNameKeys)
	if id.FullName == "" {
		id.FullName = JoinName(id.PaternalSurname, id.MaternalSurname, id.FirstNames)
	}

	id.ID = firstString(raw, documentKeys)
	if id.ID == "" {
		id.ID = requestedID
	}

	if id.Empty() {
		return nil, false
	}
	return id, true
}

// NormalizeBusiness extracts a BusinessIdentity from a provider payload.
func NormalizeBusiness(payload map[string]any, requestedID string) (*BusinessIdentity, bool) {
	raw := UnwrapPayload(payload)

	b := &BusinessIdentity{
		ID:        firstString(raw, documentKeys),
		LegalName: firstString(raw, legalNameKeys),
		Status:    firstString(raw, statusKeys),
		Condition: firstString(raw, conditionKeys),
		Address:   firstString(raw, addressKeys),
	}
	if b.ID == "" {
		b.ID = requestedID
	}
	if b.LegalName == "" {
		return nil, false
	}
	return b, true
}

// UpstreamMessage returns the provider's "message" field, if any.
func UpstreamMessage(payload map[string]any) string {
	if payload == nil {
		return ""
	}
	return asString(payload["message"])
}

// JoinName joins name parts with single spaces, skipping empty parts.
func JoinName(parts ...string) string {
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// IsDNI reports whether s is an 8-digit national ID.
func IsDNI(s string) bool {
	return isDigits(s, 8)
}

// IsRUC reports whether s is an 11-digit business ID.
func IsRUC(s string) bool {
	return isDigits(s, 11)
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func firstString(raw map[string]any, keys []string) string {
	for _, k := range keys {
		if v := asString(raw[k]); v != "" {
			return v
		}
	}
	return ""
}

// asString renders scalar JSON values as trimmed strings. Objects, arrays
// and null yield "".
func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case fmt.Stringer:
		return strings.TrimSpace(t.String())
	case float64:
		return strings.TrimSpace(fmt.Sprintf("%.0f", t))
	case int, int64:
		return fmt.Sprintf("%d", t)
	default:
		return ""
	}
}
