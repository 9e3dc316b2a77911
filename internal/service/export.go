package service

import (
	"context"
	"fmt"
	"io"

	"github.com/agentebl/multibanco-agent-go/internal/domain"

	"github.com/gocarina/gocsv"
)

// receiptCSVRow is one line of the receipts export.
type receiptCSVRow struct {
	Name            string `csv:"recibo"`
	Date            string `csv:"fecha"`
	Bank            string `csv:"banco"`
	Movement        string `csv:"movimiento"`
	Operator        string `csv:"operador"`
	RequesterID     string `csv:"solicitante_dni"`
	RequesterName   string `csv:"solicitante_nombre"`
	BeneficiaryID   string `csv:"beneficiario_dni"`
	BeneficiaryName string `csv:"beneficiario_nombre"`
	Account         string `csv:"cuenta"`
	Description     string `csv:"descripcion"`
	Amount          string `csv:"monto"`
	Fee             string `csv:"comision"`
	Total           string `csv:"total"`
	Currency        string `csv:"moneda"`
	Cancelled       bool   `csv:"anulado"`
}

func toCSVRow(r *domain.Receipt) *receiptCSVRow {
	operator := r.Operator.Name
	if operator == "" {
		operator = r.Operator.Login
	}
	return &receiptCSVRow{
		Name:            r.Name,
		Date:            r.Date,
		Bank:            r.Bank.Label(),
		Movement:        r.Movement.Label(),
		Operator:        operator,
		RequesterID:     r.Requester.ID,
		RequesterName:   r.Requester.FullName,
		BeneficiaryID:   r.Beneficiary.ID,
		BeneficiaryName: r.Beneficiary.FullName,
		Account:         r.Account,
		Description:     r.Description,
		Amount:          r.Amount.StringFixed(domain.CurrencyPlaces),
		Fee:             r.Fee.StringFixed(domain.CurrencyPlaces),
		Total:           r.Total.StringFixed(domain.CurrencyPlaces),
		Currency:        r.Currency,
		Cancelled:       r.Cancelled,
	}
}

// ExportCSV writes the receipts matching f to w as CSV with a header row.
func (s *ReceiptService) ExportCSV(ctx context.Context, f domain.ReceiptFilter, w io.Writer) error {
	ctx, span := tracer.Start(ctx, "ReceiptService.ExportCSV")
	defer span.End()

	receipts, err := s.store.ListReceipts(ctx, f)
	if err != nil {
		return err
	}

	rows := make([]*receiptCSVRow, 0, len(receipts))
	for i := range receipts {
		rows = append(rows, toCSVRow(&receipts[i]))
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("encode receipts csv: %w", err)
	}
	return nil
}
