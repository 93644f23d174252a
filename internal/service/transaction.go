package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"campustrade-api/internal/config"
	"campustrade-api/internal/model"
	"campustrade-api/internal/repository"
	"campustrade-api/pkg/uid"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Audit note labels.
const (
	noteRejection    = "Rejection reason"
	noteCancellation = "Cancellation reason"
	noteDispute      = "Dispute reason"
	noteResolution   = "Admin resolution"

	reasonAcceptedOther = "seller accepted another offer"
	reasonWithdrawn     = "listing withdrawn by seller"
)

// Dispute resolution actions.
const (
	ResolveCancel   = "cancel"
	ResolveComplete = "complete"
)

// CreateTransactionInput is a buyer's offer on a listing.
type CreateTransactionInput struct {
	ListingID string
	Type      string
	Amount    decimal.Decimal
	Notes     string
}

// TransactionService runs the transaction state machine. Every operation is
// one unit of work: the listing row is locked first, then the transaction
// rows, and nothing is persisted when a guard fails.
type TransactionService struct {
	store    repository.Store
	notifier Notifier
	policy   config.MarketConfig
	log      *zap.Logger
}

// NewTransactionService creates a transaction service.
func NewTransactionService(store repository.Store, notifier Notifier, policy config.MarketConfig, log *zap.Logger) *TransactionService {
	return &TransactionService{
		store:    store,
		notifier: notifier,
		policy:   policy,
		log:      log.Named("transactions"),
	}
}

// Create records a pending offer by buyerID.
func (s *TransactionService) Create(ctx context.Context, buyerID string, in CreateTransactionInput) (*model.Transaction, error) {
	if in.Type == "" {
		in.Type = model.TypeSale
	}
	if !model.IsValidType(in.Type) {
		return nil, invalid("type", "type must be sale, exchange or free")
	}
	if in.Amount.IsNegative() {
		return nil, invalid("amount", "amount cannot be negative")
	}
	if in.Type == model.TypeFree && !in.Amount.IsZero() {
		return nil, invalid("amount", "free transactions cannot carry an amount")
	}

	var (
		t       *model.Transaction
		notices []notice
	)
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		l, err := r.Listings().GetForUpdate(ctx, in.ListingID)
		if err != nil {
			return err
		}
		if l == nil || l.Status == model.ListingDeleted {
			return ErrListingNotFound
		}
		if l.Status != model.ListingActive {
			return ErrListingNotTransactable
		}
		if l.OwnerID == buyerID {
			return ErrSelfTransaction
		}

		dup, err := r.Transactions().HasPendingOffer(ctx, l.ID, buyerID)
		if err != nil {
			return err
		}
		if dup {
			return ErrDuplicatePendingOffer
		}

		buyer, err := r.Users().GetByID(ctx, buyerID)
		if err != nil {
			return err
		}
		if buyer == nil {
			return ErrUserNotFound
		}

		t = &model.Transaction{
			ID:        uid.New(),
			ListingID: l.ID,
			BuyerID:   buyerID,
			SellerID:  l.OwnerID,
			Status:    model.TxPending,
			Type:      in.Type,
			Amount:    in.Amount,
			Notes:     strings.TrimSpace(in.Notes),
		}
		if err := r.Transactions().Create(ctx, t); err != nil {
			if isDuplicate(err) {
				return ErrDuplicatePendingOffer
			}
			return err
		}

		if s.policy.ReserveOnOffer {
			if err := r.Listings().SetStatus(ctx, l.ID, model.ListingPending); err != nil {
				return err
			}
		}

		notices = append(notices, notice{
			userID:  l.OwnerID,
			kind:    model.NotifyTransactionRequest,
			content: fmt.Sprintf("%s made an offer on %q", buyer.Username, l.Title),
			link:    transactionLink(t.ID),
		})
		return nil
	})
	if err != nil {
		return nil, storeErr("failed to create transaction", err)
	}

	deliver(ctx, s.notifier, s.log, notices)
	s.log.Info("transaction created",
		zap.String("transaction_id", t.ID),
		zap.String("listing_id", t.ListingID),
		zap.Bool("reserved", s.policy.ReserveOnOffer))
	return t, nil
}

// Accept accepts a pending offer. Every other pending offer on the listing is
// rejected in the same unit of work.
func (s *TransactionService) Accept(ctx context.Context, sellerID, id string) (*model.Transaction, error) {
	return s.mutate(ctx, id, func(r repository.Repos, t *model.Transaction, l *model.Listing) ([]notice, error) {
		if t.SellerID != sellerID {
			return nil, ErrNotSeller
		}
		if !t.CanAccept() {
			return nil, ErrInvalidTransition
		}
		if l.Status != model.ListingActive && l.Status != model.ListingPending {
			return nil, ErrListingNotTransactable
		}

		holders, err := r.Transactions().ListByListing(ctx, l.ID, model.HoldingStatuses)
		if err != nil {
			return nil, err
		}
		if len(others(holders, t.ID)) > 0 {
			return nil, ErrListingHeld
		}

		pending, err := r.Transactions().ListByListing(ctx, l.ID, []string{model.TxPending})
		if err != nil {
			return nil, err
		}
		notices, err := rejectAll(ctx, r, others(pending, t.ID), l, reasonAcceptedOther)
		if err != nil {
			return nil, err
		}

		t.Status = model.TxAccepted
		if err := r.Transactions().Update(ctx, t); err != nil {
			return nil, err
		}
		if err := r.Listings().SetStatus(ctx, l.ID, model.ListingPending); err != nil {
			return nil, err
		}

		return append(notices, notice{
			userID:  t.BuyerID,
			kind:    model.NotifyTransactionAccepted,
			content: fmt.Sprintf("Your offer on %q was accepted", l.Title),
			link:    transactionLink(t.ID),
		}), nil
	})
}

// Reject declines a pending offer and releases the listing.
func (s *TransactionService) Reject(ctx context.Context, sellerID, id, reason string) (*model.Transaction, error) {
	reason = strings.TrimSpace(reason)
	return s.mutate(ctx, id, func(r repository.Repos, t *model.Transaction, l *model.Listing) ([]notice, error) {
		if t.SellerID != sellerID {
			return nil, ErrNotSeller
		}
		if !t.CanReject() {
			return nil, ErrInvalidTransition
		}

		t.Status = model.TxRejected
		t.AppendNote(noteRejection, reason)
		if err := r.Transactions().Update(ctx, t); err != nil {
			return nil, err
		}
		if err := release(ctx, r, l, t.ID); err != nil {
			return nil, err
		}

		content := fmt.Sprintf("Your offer on %q was rejected", l.Title)
		if reason != "" {
			content += ": " + reason
		}
		return []notice{{
			userID:  t.BuyerID,
			kind:    model.NotifyTransactionRejected,
			content: content,
			link:    transactionLink(t.ID),
		}}, nil
	})
}

// StartProgress moves an accepted transaction to in_progress.
func (s *TransactionService) StartProgress(ctx context.Context, actorID, id string) (*model.Transaction, error) {
	return s.mutate(ctx, id, func(r repository.Repos, t *model.Transaction, l *model.Listing) ([]notice, error) {
		if !t.IsParticipant(actorID) {
			return nil, ErrNotParticipant
		}
		if !t.CanStartProgress() {
			return nil, ErrInvalidTransition
		}

		t.Status = model.TxInProgress
		if err := r.Transactions().Update(ctx, t); err != nil {
			return nil, err
		}
		return []notice{{
			userID:  t.Counterpart(actorID),
			kind:    model.NotifyTransactionInProgress,
			content: fmt.Sprintf("The transaction for %q is now in progress", l.Title),
			link:    transactionLink(t.ID),
		}}, nil
	})
}

// Complete finishes an in-progress transaction and marks the listing sold.
func (s *TransactionService) Complete(ctx context.Context, actorID, id string) (*model.Transaction, error) {
	return s.mutate(ctx, id, func(r repository.Repos, t *model.Transaction, l *model.Listing) ([]notice, error) {
		if !t.IsParticipant(actorID) {
			return nil, ErrNotParticipant
		}
		if s.policy.BuyerOnlyCompletion() && actorID != t.BuyerID {
			return nil, ErrNotBuyer
		}
		if !t.CanComplete() {
			return nil, ErrInvalidTransition
		}

		if err := complete(ctx, r, t, l); err != nil {
			return nil, err
		}
		return []notice{{
			userID:  t.Counterpart(actorID),
			kind:    model.NotifyTransactionCompleted,
			content: fmt.Sprintf("The transaction for %q was completed", l.Title),
			link:    transactionLink(t.ID),
		}}, nil
	})
}

// Cancel ends a live transaction and releases the listing.
func (s *TransactionService) Cancel(ctx context.Context, actorID, id, reason string) (*model.Transaction, error) {
	reason = strings.TrimSpace(reason)
	return s.mutate(ctx, id, func(r repository.Repos, t *model.Transaction, l *model.Listing) ([]notice, error) {
		if !t.IsParticipant(actorID) {
			return nil, ErrNotParticipant
		}
		if !t.CanCancel() {
			return nil, ErrInvalidTransition
		}

		t.Status = model.TxCancelled
		t.AppendNote(noteCancellation, reason)
		if err := r.Transactions().Update(ctx, t); err != nil {
			return nil, err
		}
		if err := release(ctx, r, l, t.ID); err != nil {
			return nil, err
		}

		content := fmt.Sprintf("The transaction for %q was cancelled", l.Title)
		if reason != "" {
			content += ": " + reason
		}
		return []notice{{
			userID:  t.Counterpart(actorID),
			kind:    model.NotifyTransactionCancelled,
			content: content,
			link:    transactionLink(t.ID),
		}}, nil
	})
}

// Dispute flags a transaction for administrator review. The listing is left as is.
func (s *TransactionService) Dispute(ctx context.Context, actorID, id, reason string) (*model.Transaction, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	return s.mutate(ctx, id, func(r repository.Repos, t *model.Transaction, l *model.Listing) ([]notice, error) {
		if !t.IsParticipant(actorID) {
			return nil, ErrNotParticipant
		}
		if !t.CanDispute() {
			return nil, ErrInvalidTransition
		}

		t.Status = model.TxDisputed
		t.AppendNote(noteDispute, reason)
		if err := r.Transactions().Update(ctx, t); err != nil {
			return nil, err
		}
		return []notice{{
			userID:  t.Counterpart(actorID),
			kind:    model.NotifyTransactionDisputed,
			content: fmt.Sprintf("The transaction for %q was disputed: %s", l.Title, reason),
			link:    transactionLink(t.ID),
		}}, nil
	})
}

// ResolveDispute closes a disputed transaction as cancelled or completed.
func (s *TransactionService) ResolveDispute(ctx context.Context, adminID, id, resolution, action string) (*model.Transaction, error) {
	resolution = strings.TrimSpace(resolution)
	if action != ResolveCancel && action != ResolveComplete {
		return nil, invalid("action", "action must be cancel or complete")
	}
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}

	return s.mutate(ctx, id, func(r repository.Repos, t *model.Transaction, l *model.Listing) ([]notice, error) {
		if t.Status != model.TxDisputed {
			return nil, ErrInvalidTransition
		}

		t.AppendNote(noteResolution, resolution)
		outcome := "cancelled"
		if action == ResolveComplete {
			outcome = "completed"
			if err := complete(ctx, r, t, l); err != nil {
				return nil, err
			}
		} else {
			t.Status = model.TxCancelled
			if err := r.Transactions().Update(ctx, t); err != nil {
				return nil, err
			}
			if err := release(ctx, r, l, t.ID); err != nil {
				return nil, err
			}
		}

		content := fmt.Sprintf("The dispute on %q (#%s) was resolved: transaction %s", l.Title, uid.Short(t.ID), outcome)
		if resolution != "" {
			content += " (" + resolution + ")"
		}
		return []notice{
			{userID: t.BuyerID, kind: model.NotifyDisputeResolved, content: content, link: transactionLink(t.ID)},
			{userID: t.SellerID, kind: model.NotifyDisputeResolved, content: content, link: transactionLink(t.ID)},
		}, nil
	})
}

// Get returns a transaction visible to its participants and administrators.
func (s *TransactionService) Get(ctx context.Context, viewerID, id string) (*model.Transaction, error) {
	t, err := s.store.Transactions().GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("failed to get transaction", err)
	}
	if t == nil {
		return nil, ErrTransactionNotFound
	}
	if t.IsParticipant(viewerID) {
		return t, nil
	}
	if err := s.requireAdmin(ctx, viewerID); err != nil {
		return nil, ErrNotParticipant
	}
	return t, nil
}

// ListForUser returns the user's transactions, newest first.
func (s *TransactionService) ListForUser(ctx context.Context, userID, role, status string, page model.Page) ([]*model.Transaction, int64, error) {
	switch role {
	case "":
		role = model.RoleAll
	case model.RoleAll, model.RoleBuyer, model.RoleSeller:
	default:
		return nil, 0, invalid("role", "role must be all, buyer or seller")
	}

	items, total, err := s.store.Transactions().List(ctx, model.TransactionQuery{
		UserID: userID,
		Role:   role,
		Status: status,
		Page:   page,
	})
	if err != nil {
		return nil, 0, storeErr("failed to list transactions", err)
	}
	return items, total, nil
}

// ListDisputed returns every disputed transaction for the admin console.
func (s *TransactionService) ListDisputed(ctx context.Context, adminID string, page model.Page) ([]*model.Transaction, int64, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, 0, err
	}
	items, total, err := s.store.Transactions().List(ctx, model.TransactionQuery{
		Status: model.TxDisputed,
		Page:   page,
	})
	if err != nil {
		return nil, 0, storeErr("failed to list transactions", err)
	}
	return items, total, nil
}

// mutate loads a transaction with its listing locked and applies fn inside
// one unit of work. Notices returned by fn are delivered after commit.
func (s *TransactionService) mutate(ctx context.Context, id string, fn func(r repository.Repos, t *model.Transaction, l *model.Listing) ([]notice, error)) (*model.Transaction, error) {
	var (
		out     *model.Transaction
		notices []notice
	)
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		peek, err := r.Transactions().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if peek == nil {
			return ErrTransactionNotFound
		}

		l, err := r.Listings().GetForUpdate(ctx, peek.ListingID)
		if err != nil {
			return err
		}
		if l == nil {
			return ErrListingNotFound
		}
		t, err := r.Transactions().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if t == nil {
			return ErrTransactionNotFound
		}

		notices, err = fn(r, t, l)
		if err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, storeErr("failed to update transaction", err)
	}

	deliver(ctx, s.notifier, s.log, notices)
	s.log.Info("transaction updated",
		zap.String("transaction_id", out.ID),
		zap.String("status", out.Status))
	return out, nil
}

func (s *TransactionService) requireAdmin(ctx context.Context, userID string) error {
	u, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return storeErr("failed to get user", err)
	}
	if u == nil || !u.IsAdmin {
		return ErrNotAdmin
	}
	return nil
}

// complete marks t completed and the listing sold.
func complete(ctx context.Context, r repository.Repos, t *model.Transaction, l *model.Listing) error {
	ts := time.Now().UTC().Truncate(time.Microsecond)
	t.Status = model.TxCompleted
	t.CompletedAt = &ts
	if err := r.Transactions().Update(ctx, t); err != nil {
		return err
	}
	if l.Status == model.ListingSold {
		return nil
	}
	l.Status = model.ListingSold
	return r.Listings().SetStatus(ctx, l.ID, model.ListingSold)
}

// release returns a pending listing to active once no other live transaction
// holds it. Sold, inactive and deleted listings are left alone.
func release(ctx context.Context, r repository.Repos, l *model.Listing, exceptID string) error {
	if l.Status != model.ListingPending {
		return nil
	}
	live, err := r.Transactions().ListByListing(ctx, l.ID, model.LiveStatuses)
	if err != nil {
		return err
	}
	if len(others(live, exceptID)) > 0 {
		return nil
	}
	l.Status = model.ListingActive
	return r.Listings().SetStatus(ctx, l.ID, model.ListingActive)
}

// rejectAll rejects the given pending offers with reason and returns the
// notices for their buyers.
func rejectAll(ctx context.Context, r repository.Repos, offers []*model.Transaction, l *model.Listing, reason string) ([]notice, error) {
	notices := make([]notice, 0, len(offers))
	for _, o := range offers {
		o.Status = model.TxRejected
		o.AppendNote(noteRejection, reason)
		if err := r.Transactions().Update(ctx, o); err != nil {
			return nil, err
		}
		notices = append(notices, notice{
			userID:  o.BuyerID,
			kind:    model.NotifyTransactionRejected,
			content: fmt.Sprintf("Your offer on %q was rejected: %s", l.Title, reason),
			link:    transactionLink(o.ID),
		})
	}
	return notices, nil
}

func others(txs []*model.Transaction, id string) []*model.Transaction {
	var out []*model.Transaction
	for _, t := range txs {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}

func transactionLink(id string) string {
	return "/transactions/" + id
}
