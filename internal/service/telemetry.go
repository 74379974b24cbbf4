package service

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/Payphone-Digital/adminauth/config"
	"github.com/Payphone-Digital/adminauth/internal/constants"
	"github.com/Payphone-Digital/adminauth/internal/model"
	"github.com/Payphone-Digital/adminauth/pkg/cache"
	"github.com/Payphone-Digital/adminauth/pkg/clock"
	ctxutil "github.com/Payphone-Digital/adminauth/pkg/context"
	"github.com/Payphone-Digital/adminauth/pkg/logger"
)

const (
	usageTTL       = time.Hour
	fingerprintTTL = 24 * time.Hour
)

// Suspicious activity flags.
const (
	FlagIPChanged        = "ip_changed"
	FlagUserAgentChanged = "user_agent_changed"
	FlagRapidRequests    = "rapid_requests"
)

// RequestPattern is one entry of a token's rolling request log.
type RequestPattern struct {
	Endpoint  string    `json:"endpoint"`
	Method    string    `json:"method"`
	Timestamp time.Time `json:"timestamp"`
	IP        string    `json:"ip"`
}

// Telemetry records token usage and flags unusual client behaviour. Nothing
// here ever blocks a request.
type Telemetry struct {
	store         cache.Store
	clock         clock.Clock
	patternWindow int
	rapidMax      int64
	rapidDecay    time.Duration
}

func NewTelemetry(store cache.Store, clk clock.Clock, cfg config.RateLimitConfig) *Telemetry {
	return &Telemetry{
		store:         store,
		clock:         clk,
		patternWindow: cfg.RequestPatternWindow,
		rapidMax:      int64(cfg.RapidRequestMax),
		rapidDecay:    config.Seconds(cfg.RapidRequestDecay),
	}
}

func usageKey(tokenID uint, at time.Time) string {
	return constants.CacheKeyTokenUsage + strconv.FormatUint(uint64(tokenID), 10) + ":" + at.Format(constants.TokenUsageHourLayout)
}

func patternsKey(tokenID uint) string {
	return constants.CacheKeyRequestPatterns + strconv.FormatUint(uint64(tokenID), 10)
}

// RecordUsage bumps the per-hour counter and appends to the rolling request
// log of token.
func (t *Telemetry) RecordUsage(ctx context.Context, token *model.PersonalAccessToken, req RequestInfo) error {
	now := t.clock.Now()
	if _, err := t.store.Incr(ctx, usageKey(token.ID, now), usageTTL); err != nil {
		return err
	}

	entry, err := json.Marshal(RequestPattern{
		Endpoint:  req.Endpoint,
		Method:    req.Method,
		Timestamp: now,
		IP:        req.IP,
	})
	if err != nil {
		return err
	}
	return t.store.PushCapped(ctx, patternsKey(token.ID), string(entry), t.patternWindow, usageTTL)
}

// HourlyUsage returns the request count of token in the hour containing at.
func (t *Telemetry) HourlyUsage(ctx context.Context, tokenID uint, at time.Time) (int64, error) {
	raw, found, err := t.store.Get(ctx, usageKey(tokenID, at))
	if err != nil || !found {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

// RecentRequests returns the rolling request log of token, oldest first.
func (t *Telemetry) RecentRequests(ctx context.Context, tokenID uint) ([]RequestPattern, error) {
	raw, err := t.store.Range(ctx, patternsKey(tokenID))
	if err != nil {
		return nil, err
	}
	patterns := make([]RequestPattern, 0, len(raw))
	for _, r := range raw {
		var p RequestPattern
		if err := json.Unmarshal([]byte(r), &p); err != nil {
			continue
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

// DetectSuspicious compares the request against the user's last known
// address and agent and counts requests per minute. The first request only
// records the fingerprint.
func (t *Telemetry) DetectSuspicious(ctx context.Context, user *model.User, req RequestInfo) ([]string, error) {
	id := strconv.FormatUint(uint64(user.ID), 10)
	var flags []string

	changed, err := t.compareAndStore(ctx, constants.CacheKeyUserLastIP+id, req.IP)
	if err != nil {
		return nil, err
	}
	if changed {
		flags = append(flags, FlagIPChanged)
	}

	changed, err = t.compareAndStore(ctx, constants.CacheKeyUserLastAgent+id, req.UserAgent)
	if err != nil {
		return nil, err
	}
	if changed {
		flags = append(flags, FlagUserAgentChanged)
	}

	n, err := t.store.Incr(ctx, constants.CacheKeyRapidRequests+id, t.rapidDecay)
	if err != nil {
		return nil, err
	}
	if n > t.rapidMax {
		flags = append(flags, FlagRapidRequests)
	}
	return flags, nil
}

func (t *Telemetry) compareAndStore(ctx context.Context, key, current string) (bool, error) {
	last, found, err := t.store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if found && last == current {
		return false, nil
	}
	if err := t.store.Set(ctx, key, current, fingerprintTTL); err != nil {
		return false, err
	}
	return found, nil
}

// Observe runs usage tracking and anomaly detection for a request that has
// passed the guard. Failures are logged and swallowed.
func (t *Telemetry) Observe(ctx context.Context, cred Credential, user *model.User, req RequestInfo) {
	ctx = ctxutil.WithFunction(ctx, "service", "Telemetry")

	if bearer, ok := cred.(BearerToken); ok {
		if err := t.RecordUsage(ctx, bearer.Token, req); err != nil {
			logger.WarnWithContext(ctx, "Failed to record token usage").
				Uint("token_id", bearer.Token.ID).
				Err(err).
				Log()
		}
	}

	flags, err := t.DetectSuspicious(ctx, user, req)
	if err != nil {
		logger.WarnWithContext(ctx, "Failed to evaluate request fingerprint").
			Uint("user_id", user.ID).
			Err(err).
			Log()
		return
	}
	if len(flags) > 0 {
		logger.InfoWithContext(ctx, "Suspicious activity detected").
			Uint("user_id", user.ID).
			String("email", user.Email).
			String("ip", req.IP).
			String("user_agent", req.UserAgent).
			String("endpoint", req.Endpoint).
			Strings("flags", flags).
			Time("timestamp", t.clock.Now()).
			Log()
	}
}
