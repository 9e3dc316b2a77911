package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/agentebl/multibanco-agent-go/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Receipt store — agent_receipts, agent_operators, sequence RPC
// ============================================================

// supabaseReceipt maps agent_receipts columns.
type supabaseReceipt struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Date            string          `json:"date"`
	Bank            string          `json:"bank"`
	Movement        string          `json:"movement"`
	OperatorLogin   string          `json:"operator_login"`
	OperatorName    string          `json:"operator_name"`
	Account         string          `json:"account"`
	Description     string          `json:"description"`
	Cancelled       bool            `json:"cancelled"`
	RequesterID     string          `json:"requester_id"`
	RequesterName   string          `json:"requester_name"`
	BeneficiaryID   string          `json:"beneficiary_id"`
	BeneficiaryName string          `json:"beneficiary_name"`
	Amount          decimal.Decimal `json:"amount"`
	Fee             decimal.Decimal `json:"fee"`
	Total           decimal.Decimal `json:"total"`
	Currency        string          `json:"currency"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func toRow(r *domain.Receipt) supabaseReceipt {
	return supabaseReceipt{
		ID:              r.ID,
		Name:            r.Name,
		Date:            r.Date,
		Bank:            string(r.Bank),
		Movement:        string(r.Movement),
		OperatorLogin:   r.Operator.Login,
		OperatorName:    r.Operator.Name,
		Account:         r.Account,
		Description:     r.Description,
		Cancelled:       r.Cancelled,
		RequesterID:     r.Requester.ID,
		RequesterName:   r.Requester.FullName,
		BeneficiaryID:   r.Beneficiary.ID,
		BeneficiaryName: r.Beneficiary.FullName,
		Amount:          r.Amount,
		Fee:             r.Fee,
		Total:           r.Total,
		Currency:        r.Currency,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func (row supabaseReceipt) toDomain() domain.Receipt {
	return domain.Receipt{
		ID:          row.ID,
		Name:        row.Name,
		Date:        row.Date,
		Bank:        domain.Bank(row.Bank),
		Movement:    domain.MovementType(row.Movement),
		Operator:    domain.Operator{Login: row.OperatorLogin, Name: row.OperatorName, Active: row.OperatorLogin != ""},
		Account:     row.Account,
		Description: row.Description,
		Cancelled:   row.Cancelled,
		Requester:   domain.Party{ID: row.RequesterID, FullName: row.RequesterName},
		Beneficiary: domain.Party{ID: row.BeneficiaryID, FullName: row.BeneficiaryName},
		Amount:      row.Amount,
		Fee:         row.Fee,
		Total:       row.Total,
		Currency:    row.Currency,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

// decodeOne decodes a PostgREST representation array and returns its first row.
func decodeOne(body []byte, id string) (*domain.Receipt, error) {
	if len(body) == 0 {
		return nil, &domain.ErrNotFound{Resource: "receipt", ID: id}
	}
	var rows []supabaseReceipt
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode agent_receipts: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "receipt", ID: id}
	}
	r := rows[0].toDomain()
	return &r, nil
}

// Store adapts Client to port.Store.
type Store struct {
	client *Client
	prefix string
}

// NewStore creates a Supabase-backed receipt store.
func NewStore(client *Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) CreateReceipt(ctx context.Context, r *domain.Receipt) (*domain.Receipt, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateReceipt")
	defer span.End()
	span.SetAttributes(attribute.String("receipt.name", r.Name))

	if err := r.Validate(); err != nil {
		return nil, err
	}

	var out *domain.Receipt
	err := s.client.call(ctx, "receipts", func() error {
		body, err := s.client.doPost(ctx, "agent_receipts", toRow(r))
		if err != nil {
			return err
		}
		out, err = decodeOne(body, r.ID)
		return err
	})
	if errors.Is(err, errConflict) {
		// A retried POST whose first attempt was stored answers 409.
		return s.recoverCreated(ctx, r)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// recoverCreated returns the stored row with r's id when it is the same
// receipt, and the conflict otherwise.
func (s *Store) recoverCreated(ctx context.Context, r *domain.Receipt) (*domain.Receipt, error) {
	stored, err := s.GetReceipt(ctx, r.ID)
	if err != nil {
		var nf *domain.ErrNotFound
		if errors.As(err, &nf) {
			return nil, errConflict
		}
		return nil, err
	}
	if stored.Name != r.Name || stored.Date != r.Date || stored.Bank != r.Bank ||
		stored.Movement != r.Movement || !stored.Amount.Equal(r.Amount) {
		return nil, errConflict
	}
	return stored, nil
}

func (s *Store) GetReceipt(ctx context.Context, id string) (*domain.Receipt, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetReceipt")
	defer span.End()

	var out *domain.Receipt
	err := s.client.call(ctx, "receipts", func() error {
		path := fmt.Sprintf("agent_receipts?id=eq.%s&limit=1", url.QueryEscape(id))
		body, err := s.client.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		out, err = decodeOne(body, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// listPath builds the PostgREST query for ListReceipts.
func listPath(f domain.ReceiptFilter) string {
	q := url.Values{}
	q.Set("select", "*")
	if f.Date != "" {
		q.Set("date", "eq."+f.Date)
	}
	if f.Bank != "" {
		q.Set("bank", "eq."+string(f.Bank))
	}
	if f.Movement != "" {
		q.Set("movement", "eq."+string(f.Movement))
	}
	if !f.IncludeCancelled {
		q.Set("cancelled", "is.false")
	}
	q.Set("order", "created_at.desc,name.desc,id.desc")
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return "agent_receipts?" + q.Encode()
}

func (s *Store) ListReceipts(ctx context.Context, f domain.ReceiptFilter) ([]domain.Receipt, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListReceipts")
	defer span.End()

	var out []domain.Receipt
	err := s.client.call(ctx, "receipts", func() error {
		body, err := s.client.doRequest(ctx, http.MethodGet, listPath(f))
		if err != nil {
			return err
		}
		out = []domain.Receipt{}
		if len(body) == 0 {
			return nil
		}
		var rows []supabaseReceipt
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("decode agent_receipts: %w", err)
		}
		for _, row := range rows {
			out = append(out, row.toDomain())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// PostgREST orders by columns only; settle same-instant ties by
	// sequence number here.
	sort.SliceStable(out, func(i, j int) bool { return domain.NewerFirst(&out[i], &out[j]) })
	return out, nil
}

func (s *Store) UpdateReceipt(ctx context.Context, r *domain.Receipt) (*domain.Receipt, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateReceipt")
	defer span.End()

	if err := r.Validate(); err != nil {
		return nil, err
	}

	patch := map[string]any{
		"account":     r.Account,
		"description": r.Description,
		"amount":      r.Amount,
		"fee":         r.Fee,
		"total":       r.Total,
		"updated_at":  r.UpdatedAt,
	}
	return s.patch(ctx, r.ID, patch)
}

func (s *Store) SetCancelled(ctx context.Context, id string, cancelled bool, at time.Time) (*domain.Receipt, error) {
	ctx, span := tracer.Start(ctx, "Supabase.SetCancelled")
	defer span.End()
	span.SetAttributes(attribute.Bool("receipt.cancelled", cancelled))

	return s.patch(ctx, id, map[string]any{"cancelled": cancelled, "updated_at": at})
}

func (s *Store) patch(ctx context.Context, id string, data map[string]any) (*domain.Receipt, error) {
	var out *domain.Receipt
	err := s.client.call(ctx, "receipts", func() error {
		body, err := s.client.doPatch(ctx, "agent_receipts?id=eq."+url.QueryEscape(id), data)
		if err != nil {
			return err
		}
		out, err = decodeOne(body, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// NextSequence calls the next_receipt_number RPC, which wraps a Postgres
// sequence.
func (s *Store) NextSequence(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "Supabase.NextSequence")
	defer span.End()

	var n int64
	err := s.client.call(ctx, "sequence", func() error {
		body, err := s.client.doPost(ctx, "rpc/next_receipt_number", map[string]any{})
		if err != nil {
			return err
		}
		n, err = strconv.ParseInt(strings.TrimSpace(string(body)), 10, 64)
		if err != nil {
			return fmt.Errorf("decode next_receipt_number: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%06d", s.prefix, n), nil
}

func (s *Store) FindOperator(ctx context.Context, login string) (*domain.Operator, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FindOperator")
	defer span.End()

	var op *domain.Operator
	err := s.client.call(ctx, "operators", func() error {
		path := fmt.Sprintf("agent_operators?login=eq.%s&active=is.true&select=login,name,active&limit=1", url.QueryEscape(login))
		body, err := s.client.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		var rows []domain.Operator
		if len(body) > 0 {
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode agent_operators: %w", err)
			}
		}
		if len(rows) == 0 {
			return &domain.ErrNotFound{Resource: "operator", ID: login}
		}
		op = &rows[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return op, nil
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.doRequest(ctx, http.MethodGet, "agent_receipts?select=id&limit=1")
	return err
}
