package service

import (
	"context"
	"time"

	"github.com/Payphone-Digital/adminauth/internal/dto"
	apperrors "github.com/Payphone-Digital/adminauth/internal/errors"
	"github.com/Payphone-Digital/adminauth/pkg/clock"
	ctxutil "github.com/Payphone-Digital/adminauth/pkg/context"
	"github.com/Payphone-Digital/adminauth/pkg/logger"
)

// SweepOptions selects which sweeps Run performs.
type SweepOptions struct {
	PruneExpired  bool
	PruneOld      bool
	OlderThanDays int
	EnforceLimits bool
	DryRun        bool
}

// Sweeper deletes tokens that are expired, too old, or over the per-user
// cap. Every sweep can count without deleting.
type Sweeper struct {
	tokens SweepRepository
	clock  clock.Clock
	max    int
}

func NewSweeper(tokens SweepRepository, clk clock.Clock, maxPerUser int) *Sweeper {
	return &Sweeper{tokens: tokens, clock: clk, max: maxPerUser}
}

// PruneExpired removes tokens whose expiry has passed.
func (s *Sweeper) PruneExpired(ctx context.Context, dryRun bool) (int64, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "PruneExpired")

	now := s.clock.Now()
	var (
		n   int64
		err error
	)
	if dryRun {
		n, err = s.tokens.CountExpired(ctx, now)
	} else {
		n, err = s.tokens.DeleteExpired(ctx, now)
	}
	if err != nil {
		return 0, apperrors.Internal(err)
	}

	logger.InfoWithContext(ctx, "Expired tokens pruned").
		Int64("count", n).
		Bool("dry_run", dryRun).
		Log()
	return n, nil
}

// PruneOlderThan removes tokens created more than days ago, whether or not
// they are still valid.
func (s *Sweeper) PruneOlderThan(ctx context.Context, days int, dryRun bool) (int64, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "PruneOlderThan")

	if days <= 0 {
		return 0, apperrors.ErrInvalidInput
	}

	cutoff := s.clock.Now().Add(-time.Duration(days) * 24 * time.Hour)
	var (
		n   int64
		err error
	)
	if dryRun {
		n, err = s.tokens.CountCreatedBefore(ctx, cutoff)
	} else {
		n, err = s.tokens.DeleteCreatedBefore(ctx, cutoff)
	}
	if err != nil {
		return 0, apperrors.Internal(err)
	}

	logger.InfoWithContext(ctx, "Old tokens pruned").
		Int("days", days).
		Time("cutoff", cutoff).
		Int64("count", n).
		Bool("dry_run", dryRun).
		Log()
	return n, nil
}

// EnforceTokenLimits trims every user down to the per-user cap, evicting
// the least recently used tokens first.
func (s *Sweeper) EnforceTokenLimits(ctx context.Context, dryRun bool) (int64, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "EnforceTokenLimits")

	owners, err := s.tokens.OwnersOverLimit(ctx, s.max)
	if err != nil {
		return 0, apperrors.Internal(err)
	}

	var total int64
	for _, owner := range owners {
		excess := owner.Total - int64(s.max)
		if dryRun {
			total += excess
			continue
		}
		n, err := s.tokens.TrimOwner(ctx, owner.UserID, s.max)
		if err != nil {
			return total, apperrors.Internal(err)
		}
		total += n
	}

	logger.InfoWithContext(ctx, "Token limits enforced").
		Int("max_per_user", s.max).
		Int("users", len(owners)).
		Int64("count", total).
		Bool("dry_run", dryRun).
		Log()
	return total, nil
}

// Statistics reports token counts and the five users holding the most.
// "Today" starts at midnight UTC.
func (s *Sweeper) Statistics(ctx context.Context) (*dto.TokenStatistics, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "TokenStatistics")

	now := s.clock.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	stats, err := s.tokens.Stats(ctx, now, midnight)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	top, err := s.tokens.TopOwners(ctx, 5)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	out := &dto.TokenStatistics{
		Total:      stats.Total,
		Active:     stats.Total - stats.Expired,
		Expired:    stats.Expired,
		UsedToday:  stats.UsedSince,
		Owners:     stats.Owners,
		TopOwners:  make([]dto.TokenOwner, 0, len(top)),
		MaxPerUser: s.max,
	}
	for _, o := range top {
		out.TopOwners = append(out.TopOwners, dto.TokenOwner{
			UserID: o.UserID,
			Email:  o.Email,
			Role:   o.Role,
			Tokens: o.Total,
		})
	}
	return out, nil
}

// Run performs the selected sweeps in order: expired, old, over limit.
func (s *Sweeper) Run(ctx context.Context, opts SweepOptions) (*dto.MaintenanceReport, error) {
	start := time.Now()
	report := &dto.MaintenanceReport{DryRun: opts.DryRun}

	if opts.PruneExpired {
		n, err := s.PruneExpired(ctx, opts.DryRun)
		if err != nil {
			return nil, err
		}
		report.Expired = &n
	}
	if opts.PruneOld {
		n, err := s.PruneOlderThan(ctx, opts.OlderThanDays, opts.DryRun)
		if err != nil {
			return nil, err
		}
		report.Old = &n
		report.OlderThanDays = opts.OlderThanDays
	}
	if opts.EnforceLimits {
		n, err := s.EnforceTokenLimits(ctx, opts.DryRun)
		if err != nil {
			return nil, err
		}
		report.OverLimit = &n
		report.MaxPerUser = s.max
	}

	report.DurationMillis = time.Since(start).Milliseconds()
	return report, nil
}

// Start runs opts every interval until ctx is cancelled. Failures are logged
// and the next tick tries again.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration, opts SweepOptions) {
	ctx = ctxutil.WithFunction(ctx, "service", "SweeperLoop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.InfoWithContext(ctx, "Token maintenance scheduled").
		Duration(interval).
		Bool("prune_expired", opts.PruneExpired).
		Bool("prune_old", opts.PruneOld).
		Bool("enforce_limits", opts.EnforceLimits).
		Log()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Run(ctx, opts); err != nil {
				logger.ErrorWithContext(ctx, "Scheduled token maintenance failed").
					Err(err).
					Log()
			}
		}
	}
}
