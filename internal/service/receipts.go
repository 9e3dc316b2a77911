package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/agentebl/multibanco-agent-go/internal/domain"
	"github.com/agentebl/multibanco-agent-go/internal/infra/observability"
	"github.com/agentebl/multibanco-agent-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ReceiptService records and manages kiosk receipts.
type ReceiptService struct {
	store      port.Store
	identities port.IdentityResolver
	metrics    *observability.Metrics
	logger     *zap.Logger
	currency   string
	now        func() time.Time
}

// NewReceiptService creates the receipt service with all dependencies injected.
func NewReceiptService(
	store port.Store,
	identities port.IdentityResolver,
	metrics *observability.Metrics,
	logger *zap.Logger,
	baseCurrency string,
) *ReceiptService {
	return &ReceiptService{
		store:      store,
		identities: identities,
		metrics:    metrics,
		logger:     logger,
		currency:   baseCurrency,
		now:        time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (s *ReceiptService) SetClock(now func() time.Time) {
	s.now = now
}

// Submit records a receipt from a loosely-typed kiosk payload. actor is
// the authenticated operator, used when the payload names no known one.
func (s *ReceiptService) Submit(ctx context.Context, actor domain.Operator, raw map[string]any) (*domain.ReceiptConfirmation, error) {
	ctx, span := tracer.Start(ctx, "ReceiptService.Submit")
	defer span.End()

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("receipt_submit", time.Since(start))
	}()

	sub, err := domain.ParseReceiptSubmission(raw)
	if err != nil {
		return nil, err
	}
	if !sub.HasRequesterID {
		return nil, &domain.ErrMissingField{Field: "requester.id"}
	}

	now := s.now()
	r := &domain.Receipt{
		ID:          uuid.NewString(),
		Date:        sub.Date,
		Bank:        sub.Bank,
		Movement:    sub.Movement,
		Operator:    s.operatorFor(ctx, sub.OperatorLogin, actor),
		Account:     sub.Account,
		Description: sub.Description,
		Cancelled:   sub.Cancelled,
		Requester:   sub.Requester,
		Beneficiary: sub.Beneficiary,
		Currency:    sub.Currency,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if r.Date == "" {
		r.Date = now.Format(domain.DateLayout)
	}
	if r.Currency == "" {
		r.Currency = s.currency
	}
	r.SetAmount(sub.Amount)

	if !sub.ClientFee.IsZero() && !sub.ClientFee.Equal(r.Fee) {
		s.logger.Debug("client fee ignored",
			zap.String("client_fee", sub.ClientFee.String()),
			zap.String("fee", r.Fee.String()),
		)
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}

	s.fillNames(ctx, r)

	r.Name, err = s.store.NextSequence(ctx)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("receipt.name", r.Name))

	created, err := s.store.CreateReceipt(ctx, r)
	if err != nil {
		s.logger.Error("receipt not persisted",
			zap.String("name", r.Name),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.RecordReceipt(created.Bank, created.Movement, created.Fee)
	s.logger.Info("receipt created",
		zap.String("id", created.ID),
		zap.String("name", created.Name),
		zap.String("operator", created.Operator.Login),
		zap.String("amount", created.Amount.StringFixed(domain.CurrencyPlaces)),
		zap.String("fee", created.Fee.String()),
	)

	return &domain.ReceiptConfirmation{ID: created.ID, Name: created.Name, Date: created.Date}, nil
}

// operatorFor matches login in the operator directory, degrading to actor
// when the login is empty, unknown or the directory fails.
func (s *ReceiptService) operatorFor(ctx context.Context, login string, actor domain.Operator) domain.Operator {
	if login == "" {
		return actor
	}
	op, err := s.store.FindOperator(ctx, login)
	if err != nil {
		var nf *domain.ErrNotFound
		if !errors.As(err, &nf) {
			s.logger.Warn("operator directory unavailable",
				zap.String("login", login),
				zap.Error(err),
			)
		}
		return actor
	}
	return *op
}

// fillNames resolves missing requester and beneficiary names concurrently.
// Lookup failures are logged and leave the name empty.
func (s *ReceiptService) fillNames(ctx context.Context, r *domain.Receipt) {
	g, gCtx := errgroup.WithContext(ctx)

	for _, p := range []struct {
		role  string
		party *domain.Party
	}{
		{"requester", &r.Requester},
		{"beneficiary", &r.Beneficiary},
	} {
		p := p
		if p.party.ID == "" || p.party.FullName != "" {
			continue
		}
		g.Go(func() error {
			id, err := s.identities.Resolve(gCtx, p.party.ID)
			if err != nil {
				s.logger.Warn("name auto-fill failed",
					zap.String("role", p.role),
					zap.String("numero", p.party.ID),
					zap.Error(err),
				)
				return nil
			}
			p.party.FullName = id.FullName
			return nil
		})
	}

	_ = g.Wait()
}

// Get returns one receipt.
func (s *ReceiptService) Get(ctx context.Context, id string) (*domain.Receipt, error) {
	ctx, span := tracer.Start(ctx, "ReceiptService.Get")
	defer span.End()

	return s.store.GetReceipt(ctx, id)
}

// List returns receipts matching f, newest first.
func (s *ReceiptService) List(ctx context.Context, f domain.ReceiptFilter) ([]domain.Receipt, error) {
	ctx, span := tracer.Start(ctx, "ReceiptService.List")
	defer span.End()

	return s.store.ListReceipts(ctx, f)
}

// Summary aggregates the receipts matching f. Cancelled receipts are always
// counted so CancelledCount is meaningful; they never add to the totals.
func (s *ReceiptService) Summary(ctx context.Context, f domain.ReceiptFilter) (*domain.ReceiptSummary, error) {
	ctx, span := tracer.Start(ctx, "ReceiptService.Summary")
	defer span.End()

	f.IncludeCancelled = true
	f.Limit = 0
	receipts, err := s.store.ListReceipts(ctx, f)
	if err != nil {
		return nil, err
	}
	summary := domain.Summarize(receipts)
	return &summary, nil
}

const (
	defaultDescriptionLimit = 50
	maxDescriptionLimit     = 100
	// descriptionScan is how many recent receipts are searched for suggestions.
	descriptionScan = 500
)

// Descriptions returns the distinct descriptions recently recorded for bank,
// newest first. The kiosk offers them as suggestions while typing. A limit
// <= 0 means the default.
func (s *ReceiptService) Descriptions(ctx context.Context, bank domain.Bank, limit int) ([]string, error) {
	ctx, span := tracer.Start(ctx, "ReceiptService.Descriptions")
	defer span.End()
	span.SetAttributes(attribute.String("receipt.bank", string(bank)))

	if bank == "" {
		return nil, &domain.ErrMissingField{Field: "bank"}
	}
	if !bank.Valid() {
		return nil, &domain.ErrValidation{Field: "bank", Message: "unknown bank code " + string(bank)}
	}
	switch {
	case limit <= 0:
		limit = defaultDescriptionLimit
	case limit > maxDescriptionLimit:
		limit = maxDescriptionLimit
	}

	receipts, err := s.store.ListReceipts(ctx, domain.ReceiptFilter{Bank: bank, IncludeCancelled: true, Limit: descriptionScan})
	if err != nil {
		return nil, err
	}

	out := []string{}
	seen := make(map[string]bool)
	for _, r := range receipts {
		d := strings.TrimSpace(r.Description)
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Update applies an edit to an existing receipt. Amount edits re-derive fee
// and total; attempts to set either directly are rejected.
func (s *ReceiptService) Update(ctx context.Context, id string, raw map[string]any) (*domain.Receipt, error) {
	ctx, span := tracer.Start(ctx, "ReceiptService.Update")
	defer span.End()

	upd, err := domain.ParseReceiptUpdate(raw)
	if err != nil {
		return nil, err
	}

	r, err := s.store.GetReceipt(ctx, id)
	if err != nil {
		return nil, err
	}
	upd.Apply(r)
	r.UpdatedAt = s.now()

	return s.store.UpdateReceipt(ctx, r)
}

// Cancel marks a receipt as cancelled.
func (s *ReceiptService) Cancel(ctx context.Context, id string) (*domain.Receipt, error) {
	return s.setCancelled(ctx, id, true)
}

// Restore clears the cancelled flag.
func (s *ReceiptService) Restore(ctx context.Context, id string) (*domain.Receipt, error) {
	return s.setCancelled(ctx, id, false)
}

func (s *ReceiptService) setCancelled(ctx context.Context, id string, cancelled bool) (*domain.Receipt, error) {
	ctx, span := tracer.Start(ctx, "ReceiptService.SetCancelled")
	defer span.End()
	span.SetAttributes(attribute.Bool("receipt.cancelled", cancelled))

	r, err := s.store.SetCancelled(ctx, id, cancelled, s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info("receipt cancellation toggled",
		zap.String("id", r.ID),
		zap.String("name", r.Name),
		zap.Bool("cancelled", r.Cancelled),
	)
	return r, nil
}
