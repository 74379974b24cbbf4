package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Payphone-Digital/adminauth/config"
	"github.com/Payphone-Digital/adminauth/internal/constants"
	apperrors "github.com/Payphone-Digital/adminauth/internal/errors"
	"github.com/Payphone-Digital/adminauth/internal/model"
	"github.com/Payphone-Digital/adminauth/pkg/clock"
	ctxutil "github.com/Payphone-Digital/adminauth/pkg/context"
	"github.com/Payphone-Digital/adminauth/pkg/logger"
)

const (
	secretLength  = 40
	secretCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NewAccessToken is a freshly issued token. PlainText is shown to the client
// once and never stored.
type NewAccessToken struct {
	Token     *model.PersonalAccessToken
	PlainText string
}

// TokenStore issues, validates and revokes personal access tokens. Only the
// SHA-256 of the secret is persisted.
type TokenStore struct {
	tokens TokenRepository
	clock  clock.Clock
	prefix string
	max    int
}

func NewTokenStore(tokens TokenRepository, clk clock.Clock, cfg config.TokenConfig) *TokenStore {
	return &TokenStore{
		tokens: tokens,
		clock:  clk,
		prefix: cfg.Prefix,
		max:    cfg.MaxPerUser,
	}
}

// Issue creates a token for user. A ttl of zero issues a token that never
// expires. When the user already holds the maximum number of tokens the
// least recently used ones are evicted first. Abilities outside
// constants.KnownAbilities are rejected.
func (s *TokenStore) Issue(ctx context.Context, user *model.User, name string, abilities []string, ttl time.Duration) (*NewAccessToken, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "IssueToken")

	for _, ability := range abilities {
		if !slices.Contains(constants.KnownAbilities, ability) {
			return nil, apperrors.WrapError(apperrors.ErrInvalidInput, fmt.Errorf("unknown ability %q", ability))
		}
	}

	secret, err := s.generateSecret()
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	now := s.clock.Now()
	token := &model.PersonalAccessToken{
		UserID:    user.ID,
		Name:      name,
		TokenHash: hashSecret(secret),
		Abilities: append([]string(nil), abilities...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if ttl > 0 {
		expires := now.Add(ttl)
		token.ExpiresAt = &expires
	}

	evicted, err := s.tokens.CreateWithinLimit(ctx, token, s.max)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	logger.InfoWithContext(ctx, "Token issued").
		Uint("user_id", user.ID).
		Uint("token_id", token.ID).
		String("name", name).
		Strings("abilities", abilities).
		Int64("evicted", evicted).
		Log()

	return &NewAccessToken{
		Token:     token,
		PlainText: strconv.FormatUint(uint64(token.ID), 10) + "|" + secret,
	}, nil
}

// Authenticate resolves a plaintext "<id>|<secret>" token. It does not check
// expiry; see Validate.
func (s *TokenStore) Authenticate(ctx context.Context, plain string) (*model.PersonalAccessToken, error) {
	rawID, secret, ok := strings.Cut(plain, "|")
	if !ok || secret == "" {
		return nil, apperrors.ErrUnauthenticated
	}
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil || id == 0 {
		return nil, apperrors.ErrUnauthenticated
	}

	token, err := s.tokens.FindByID(ctx, uint(id))
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if token == nil {
		return nil, apperrors.ErrUnauthenticated
	}
	if subtle.ConstantTimeCompare([]byte(token.TokenHash), []byte(hashSecret(secret))) != 1 {
		return nil, apperrors.ErrUnauthenticated
	}
	return token, nil
}

// Validate rejects an expired token and deletes it. A valid token has its
// last_used_at bumped.
func (s *TokenStore) Validate(ctx context.Context, token *model.PersonalAccessToken) error {
	ctx = ctxutil.WithFunction(ctx, "service", "ValidateToken")

	now := s.clock.Now()
	if token.ExpiredAt(now) {
		if _, err := s.tokens.Delete(ctx, token.ID); err != nil {
			return apperrors.Internal(err)
		}
		logger.InfoWithContext(ctx, "Expired token evicted").
			Uint("token_id", token.ID).
			Uint("user_id", token.UserID).
			Log()
		return apperrors.WrapError(apperrors.ErrInvalidToken, apperrors.ErrTokenExpired)
	}

	if err := s.tokens.TouchLastUsed(ctx, token.ID, now); err != nil {
		return apperrors.Internal(err)
	}
	token.LastUsedAt = &now
	return nil
}

func (s *TokenStore) Revoke(ctx context.Context, id uint) error {
	if _, err := s.tokens.Delete(ctx, id); err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

// RevokeForUser deletes one of userID's tokens. Tokens owned by someone else
// are reported as not found.
func (s *TokenStore) RevokeForUser(ctx context.Context, userID, id uint) error {
	n, err := s.tokens.DeleteForUser(ctx, userID, id)
	if err != nil {
		return apperrors.Internal(err)
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (s *TokenStore) RevokeAllForUser(ctx context.Context, userID uint) (int64, error) {
	n, err := s.tokens.DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, apperrors.Internal(err)
	}
	return n, nil
}

func (s *TokenStore) RevokeAllExceptCurrent(ctx context.Context, userID, currentID uint) (int64, error) {
	n, err := s.tokens.DeleteAllForUserExcept(ctx, userID, currentID)
	if err != nil {
		return 0, apperrors.Internal(err)
	}
	return n, nil
}

// ListActive returns unexpired tokens, most recently used first.
func (s *TokenStore) ListActive(ctx context.Context, userID uint) ([]model.PersonalAccessToken, error) {
	tokens, err := s.tokens.ListActive(ctx, userID, s.clock.Now())
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return tokens, nil
}

func (s *TokenStore) Extend(ctx context.Context, token *model.PersonalAccessToken, until time.Time) error {
	if err := s.tokens.UpdateExpiry(ctx, token.ID, until); err != nil {
		return apperrors.Internal(err)
	}
	token.ExpiresAt = &until
	return nil
}

func (s *TokenStore) generateSecret() (string, error) {
	var b strings.Builder
	b.Grow(len(s.prefix) + secretLength)
	b.WriteString(s.prefix)

	limit := big.NewInt(int64(len(secretCharset)))
	for i := 0; i < secretLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate token secret: %w", err)
		}
		b.WriteByte(secretCharset[n.Int64()])
	}
	return b.String(), nil
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
