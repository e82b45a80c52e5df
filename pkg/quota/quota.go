// Package quota enforces per-plan storage limits and plan changes.
//
// Usage is never stored as a counter. The ledger recomputes it from the
// metadata store on every admission check, which keeps it trivially
// consistent with the file rows at the cost of a sum per check. Trashed
// files still count: moving a file to the trash does not free quota,
// only purging it does.
package quota

import (
	"context"
	"fmt"

	"github.com/skyvault/skyvault/internal/logger"
	"github.com/skyvault/skyvault/pkg/store"
)

const gib = int64(1) << 30

// PlanLimits describes what a subscription plan allows.
type PlanLimits struct {
	// StorageLimitBytes is the total storage allowance. Nil means
	// unlimited.
	StorageLimitBytes *int64

	// SupportsVersioning gates the file version history feature.
	SupportsVersioning bool
}

// Unlimited reports whether the plan has no storage cap.
func (l PlanLimits) Unlimited() bool {
	return l.StorageLimitBytes == nil
}

// Catalog maps each plan to its limits.
type Catalog map[store.Plan]PlanLimits

// DefaultCatalog returns the built-in plan tiers: Free 5 GiB, Premium
// 50 GiB, Business unlimited with versioning.
func DefaultCatalog() Catalog {
	free := 5 * gib
	premium := 50 * gib
	return Catalog{
		store.PlanFree:     {StorageLimitBytes: &free},
		store.PlanPremium:  {StorageLimitBytes: &premium},
		store.PlanBusiness: {SupportsVersioning: true},
	}
}

// Limits returns the limits for a plan. Unknown plans fall back to the
// Free tier, the most restrictive one.
func (c Catalog) Limits(plan store.Plan) PlanLimits {
	if limits, ok := c[plan]; ok {
		return limits
	}
	logger.Warn("quota: unknown plan %q, applying free tier limits", plan)
	free := 5 * gib
	return PlanLimits{StorageLimitBytes: &free}
}

// Usage is a snapshot of a user's storage consumption.
type Usage struct {
	UserID string
	Plan   store.Plan

	// UsedBytes is the total size of all file rows, trash included.
	UsedBytes int64

	// LimitBytes is nil for unlimited plans.
	LimitBytes *int64
}

// AvailableBytes returns the remaining allowance. The second return value
// is false for unlimited plans.
func (u *Usage) AvailableBytes() (int64, bool) {
	if u.LimitBytes == nil {
		return 0, false
	}
	remaining := *u.LimitBytes - u.UsedBytes
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// Ledger answers storage admission questions and applies plan changes.
type Ledger struct {
	store   store.MetadataStore
	catalog Catalog
}

// NewLedger creates a ledger over the given metadata store and plan
// catalog.
func NewLedger(metadata store.MetadataStore, catalog Catalog) *Ledger {
	return &Ledger{store: metadata, catalog: catalog}
}

// Usage computes the user's current storage snapshot.
func (l *Ledger) Usage(ctx context.Context, userID string) (*Usage, error) {
	user, err := l.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	used, err := l.store.SumFileSizes(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum storage usage: %w", err)
	}

	return &Usage{
		UserID:     userID,
		Plan:       user.Plan,
		UsedBytes:  used,
		LimitBytes: l.catalog.Limits(user.Plan).StorageLimitBytes,
	}, nil
}

// CheckUpload verifies that adding size bytes keeps the user within the
// plan limit. Returns a QuotaExceeded error otherwise.
func (l *Ledger) CheckUpload(ctx context.Context, userID string, size int64) error {
	return l.CheckUploadAll(ctx, userID, size)
}

// CheckUploadAll verifies that adding the combined sizes keeps the user
// within the plan limit. Batch uploads are admitted or rejected as a
// whole: if the total does not fit, nothing is admitted.
func (l *Ledger) CheckUploadAll(ctx context.Context, userID string, sizes ...int64) error {
	usage, err := l.Usage(ctx, userID)
	if err != nil {
		return err
	}

	if usage.LimitBytes == nil {
		return nil
	}

	var total int64
	for _, size := range sizes {
		total += size
	}

	if usage.UsedBytes+total > *usage.LimitBytes {
		logger.Debug("quota: rejecting upload of %d bytes for user %s (used %d of %d)",
			total, userID, usage.UsedBytes, *usage.LimitBytes)
		return store.NewError(store.ErrQuotaExceeded, "you have exceeded your total storage")
	}
	return nil
}

// SupportsVersioning reports whether the user's plan includes version
// history.
func (l *Ledger) SupportsVersioning(ctx context.Context, userID string) (bool, error) {
	user, err := l.store.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return l.catalog.Limits(user.Plan).SupportsVersioning, nil
}

// ChangePlan moves the user to a new plan. Changing to the current plan
// is a Conflict, and a downgrade is refused while current usage exceeds
// the target plan's limit.
func (l *Ledger) ChangePlan(ctx context.Context, userID string, newPlan store.Plan) error {
	usage, err := l.Usage(ctx, userID)
	if err != nil {
		return err
	}

	if usage.Plan == newPlan {
		return store.NewError(store.ErrConflict, "you are already subscribed to this plan")
	}

	if limit := l.catalog.Limits(newPlan).StorageLimitBytes; limit != nil && usage.UsedBytes > *limit {
		return store.NewError(store.ErrConflict,
			"cannot downgrade: your current storage usage exceeds the new plan's limit")
	}

	if err := l.store.UpdateUserPlan(ctx, userID, newPlan); err != nil {
		return err
	}

	logger.Info("quota: user %s changed plan %s -> %s", userID, usage.Plan, newPlan)
	return nil
}
