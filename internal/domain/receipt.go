package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date layout used for receipt dates.
const DateLayout = "2006-01-02"

// ============================================================
// Banks / networks
// ============================================================

// Bank is the network or bank a movement was made through.
type Bank string

const (
	BankBCP          Bank = "bcp"
	BankInterbank    Bank = "interbank"
	BankBBVA         Bank = "bbva"
	BankScotiabank   Bank = "scotiabank"
	BankCajaArequipa Bank = "caja_arequipa"
	BankCajaCusco    Bank = "caja_cusco"
	BankNacion       Bank = "banco_nacion"
	BankYape         Bank = "yape"
	BankPlin         Bank = "plin"
	BankBim          Bank = "bim"
	BankKasnet       Bank = "kasnet"
	BankPagaya       Bank = "pagaya"
	BankBitel        Bank = "bitel"
	BankEntel        Bank = "entel"
	BankMovistar     Bank = "movistar"
	BankClaro        Bank = "claro"
	BankAzulito      Bank = "azulito"
	BankOther        Bank = "otros"
)

var bankLabels = map[Bank]string{
	BankBCP:          "BCP",
	BankInterbank:    "INTERBANK",
	BankBBVA:         "BBVA",
	BankScotiabank:   "SCOTIABANK",
	BankCajaArequipa: "CAJA AREQUIPA",
	BankCajaCusco:    "CAJA CUSCO",
	BankNacion:       "BANCO DE LA NACION",
	BankYape:         "YAPE",
	BankPlin:         "PLIN",
	BankBim:          "BIM",
	BankKasnet:       "KASNET",
	BankPagaya:       "PAGAYA",
	BankBitel:        "BITEL",
	BankEntel:        "ENTEL",
	BankMovistar:     "MOVISTAR",
	BankClaro:        "CLARO",
	BankAzulito:      "AZULITO",
	BankOther:        "Otros",
}

// Valid reports whether b belongs to the closed set of bank codes.
func (b Bank) Valid() bool {
	_, ok := bankLabels[b]
	return ok
}

// Label returns the display label for b, or the raw code if unknown.
func (b Bank) Label() string {
	if l, ok := bankLabels[b]; ok {
		return l
	}
	return string(b)
}

// ============================================================
// Movement types
// ============================================================

// MovementType is the kind of cash movement a receipt records.
type MovementType string

const (
	MovementDeposit    MovementType = "deposit"
	MovementWithdrawal MovementType = "withdrawal"
	MovementGiro       MovementType = "giro" // money order
	MovementPayment    MovementType = "payment"
	MovementRecharge   MovementType = "recharge" // top-up
	MovementOther      MovementType = "other"
)

var movementLabels = map[MovementType]string{
	MovementDeposit:    "Depósito",
	MovementWithdrawal: "Retiro",
	MovementGiro:       "Giro",
	MovementPayment:    "Pago",
	MovementRecharge:   "Recarga",
	MovementOther:      "Otros",
}

func (m MovementType) Valid() bool {
	_, ok := movementLabels[m]
	return ok
}

func (m MovementType) Label() string {
	if l, ok := movementLabels[m]; ok {
		return l
	}
	return string(m)
}

// CatalogEntry is a code/label pair served to the kiosk UI.
type CatalogEntry struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// Catalog lists the accepted bank and movement codes.
type Catalog struct {
	Banks     []CatalogEntry `json:"banks"`
	Movements []CatalogEntry `json:"movements"`
}

// ReceiptCatalog returns the bank and movement catalogs sorted by code.
func ReceiptCatalog() Catalog {
	c := Catalog{}
	for b, l := range bankLabels {
		c.Banks = append(c.Banks, CatalogEntry{Code: string(b), Label: l})
	}
	for m, l := range movementLabels {
		c.Movements = append(c.Movements, CatalogEntry{Code: string(m), Label: l})
	}
	sort.Slice(c.Banks, func(i, j int) bool { return c.Banks[i].Code < c.Banks[j].Code })
	sort.Slice(c.Movements, func(i, j int) bool { return c.Movements[i].Code < c.Movements[j].Code })
	return c
}

// ============================================================
// Receipt
// ============================================================

// Party is a requester or beneficiary: an 8-digit ID and a display name.
type Party struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
}

// Operator is the kiosk agent a receipt is attributed to.
type Operator struct {
	Login  string `json:"login"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Receipt is one recorded cash-movement transaction.
//
// Fee and Total are derived from Amount. Mutate Amount only through
// SetAmount so both stay consistent; stores call Validate before writing.
type Receipt struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Date        string          `json:"date"`
	Bank        Bank            `json:"bank"`
	Movement    MovementType    `json:"movement"`
	Operator    Operator        `json:"operator"`
	Account     string          `json:"account,omitempty"`
	Description string          `json:"description,omitempty"`
	Cancelled   bool            `json:"cancelled"`
	Requester   Party           `json:"requester"`
	Beneficiary Party           `json:"beneficiary"`
	Amount      decimal.Decimal `json:"amount"`
	Fee         decimal.Decimal `json:"fee"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// SetAmount stores amount at currency precision and re-derives Fee and Total.
func (r *Receipt) SetAmount(amount decimal.Decimal) {
	r.Amount = RoundMoney(amount)
	r.Fee = Fee(r.Amount)
	r.Total = Total(r.Amount, r.Fee)
}

// Validate checks required fields and the fee/total invariants.
func (r *Receipt) Validate() error {
	if r.Date == "" {
		return &ErrValidation{Field: "date", Message: "required"}
	}
	if _, err := time.Parse(DateLayout, r.Date); err != nil {
		return &ErrValidation{Field: "date", Message: "must be YYYY-MM-DD"}
	}
	if r.Bank == "" {
		return &ErrValidation{Field: "bank", Message: "required"}
	}
	if !r.Bank.Valid() {
		return &ErrValidation{Field: "bank", Message: "unknown bank code " + string(r.Bank)}
	}
	if r.Movement == "" {
		return &ErrValidation{Field: "movement", Message: "required"}
	}
	if !r.Movement.Valid() {
		return &ErrValidation{Field: "movement", Message: "unknown movement code " + string(r.Movement)}
	}
	if r.Amount.IsNegative() {
		return &ErrValidation{Field: "amount", Message: "must not be negative"}
	}
	if !r.Fee.Equal(Fee(r.Amount)) {
		return &ErrValidation{Field: "fee", Message: "does not match fee schedule"}
	}
	if !r.Total.Equal(Total(r.Amount, r.Fee)) {
		return &ErrValidation{Field: "total", Message: "must equal amount + fee"}
	}
	return nil
}

// ReceiptConfirmation is the minimal response to a receipt submission.
type ReceiptConfirmation struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Date string `json:"date"`
}

// ReceiptFilter narrows receipt listings. Empty fields match everything.
type ReceiptFilter struct {
	Date             string
	Bank             Bank
	Movement         MovementType
	IncludeCancelled bool
	Limit            int
}

// Matches reports whether r passes the filter (Limit is ignored).
func (f ReceiptFilter) Matches(r *Receipt) bool {
	if f.Date != "" && r.Date != f.Date {
		return false
	}
	if f.Bank != "" && r.Bank != f.Bank {
		return false
	}
	if f.Movement != "" && r.Movement != f.Movement {
		return false
	}
	if !f.IncludeCancelled && r.Cancelled {
		return false
	}
	return true
}

// NewerFirst orders receipts newest first. Receipts created at the same
// instant are ordered by sequence number, highest first; names share one
// prefix, so a longer name carries the higher number.
func NewerFirst(a, b *Receipt) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	if len(a.Name) != len(b.Name) {
		return len(a.Name) > len(b.Name)
	}
	if a.Name != b.Name {
		return a.Name > b.Name
	}
	return a.ID > b.ID
}

// ReceiptSummary aggregates a set of receipts. Amount and fee totals only
// count receipts that are not cancelled.
type ReceiptSummary struct {
	Count          int             `json:"count"`
	CancelledCount int             `json:"cancelledCount"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	TotalFees      decimal.Decimal `json:"totalFees"`
	TotalCollected decimal.Decimal `json:"totalCollected"`
}

// Summarize builds a ReceiptSummary over receipts.
func Summarize(receipts []Receipt) ReceiptSummary {
	s := ReceiptSummary{
		TotalAmount:    decimal.Zero,
		TotalFees:      decimal.Zero,
		TotalCollected: decimal.Zero,
	}
	for i := range receipts {
		r := &receipts[i]
		s.Count++
		if r.Cancelled {
			s.CancelledCount++
			continue
		}
		s.TotalAmount = s.TotalAmount.Add(r.Amount)
		s.TotalFees = s.TotalFees.Add(r.Fee)
		s.TotalCollected = s.TotalCollected.Add(r.Total)
	}
	return s
}

// ReceiptUpdate carries the editable fields of an existing receipt.
// Nil fields are left untouched.
type ReceiptUpdate struct {
	Amount      *decimal.Decimal
	Account     *string
	Description *string
}
