package service

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"medigraph/internal/profile/models"
	"medigraph/pkg/domain"
	dErrors "medigraph/pkg/domain-errors"
	"medigraph/pkg/platform/sentinel"
)

// Store is the persistence surface for profile rows. Counter columns are
// mutated by the graph verticals, never here.
type Store interface {
	// Create inserts a profile; sentinel.ErrConflict when the handle is
	// taken (store-level unique constraint, not a prior read).
	Create(ctx context.Context, profile *models.Profile) error
	FindByID(ctx context.Context, id domain.ProfileID) (*models.Profile, error)
	FindByHandle(ctx context.Context, handle string) (*models.Profile, error)
	SetFrozen(ctx context.Context, id domain.ProfileID, frozen bool) error
}

// TokenIssuer signs access tokens for authenticated profiles.
type TokenIssuer interface {
	Generate(profileID domain.ProfileID, handle string, admin bool) (string, error)
}

// CardCache is the read-through cache for public cards.
type CardCache interface {
	GetCard(ctx context.Context, id domain.ProfileID) (models.Card, error)
	SetCard(ctx context.Context, card models.Card) error
	Invalidate(ctx context.Context, id domain.ProfileID) error
}

var handlePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{2,31}$`)

const minPasswordLen = 8

// Service owns onboarding and profile reads. Handles are immutable once
// registered.
type Service struct {
	store  Store
	tokens TokenIssuer
	cache  CardCache
	logger *slog.Logger
	admins map[string]bool
}

// New builds the profile service. adminHandles bootstrap the admin role:
// tokens minted for these handles carry the admin claim.
func New(store Store, tokens TokenIssuer, cache CardCache, logger *slog.Logger, adminHandles []string) *Service {
	admins := make(map[string]bool, len(adminHandles))
	for _, h := range adminHandles {
		admins[strings.ToLower(strings.TrimSpace(h))] = true
	}
	return &Service{store: store, tokens: tokens, cache: cache, logger: logger, admins: admins}
}

// Register creates a new profile. Handle uniqueness is enforced by the store
// constraint so two concurrent registrations have exactly one winner.
func (s *Service) Register(ctx context.Context, handle, email, password string) (*models.Profile, error) {
	handle = strings.ToLower(strings.TrimSpace(handle))
	if !handlePattern.MatchString(handle) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "handle must be 3-32 characters of a-z, 0-9, '.', '_' or '-'")
	}
	if !strings.Contains(email, "@") {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "email address is invalid")
	}
	if len(password) < minPasswordLen {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "hash password")
	}

	profile := &models.Profile{
		ID:                 domain.ProfileID(uuid.New()),
		Handle:             handle,
		Email:              email,
		PasswordHash:       hash,
		VerificationStatus: models.VerificationUnverified,
		CreatedAt:          time.Now(),
	}
	if err := s.store.Create(ctx, profile); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeHandleTaken, "handle is already taken")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist profile")
	}
	return profile, nil
}

// Authenticate verifies credentials and returns a signed access token.
func (s *Service) Authenticate(ctx context.Context, handle, password string) (string, error) {
	handle = strings.ToLower(strings.TrimSpace(handle))
	profile, err := s.store.FindByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Same error as a bad password so handles cannot be enumerated.
			return "", dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "load profile")
	}
	if err := bcrypt.CompareHashAndPassword(profile.PasswordHash, []byte(password)); err != nil {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	token, err := s.tokens.Generate(profile.ID, profile.Handle, s.admins[profile.Handle])
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "sign token")
	}
	return token, nil
}

// Card serves the public profile card through the counter cache. Frozen
// profiles are excluded from all public-facing surfaces.
func (s *Service) Card(ctx context.Context, id domain.ProfileID) (models.Card, error) {
	if s.cache != nil {
		if card, err := s.cache.GetCard(ctx, id); err == nil {
			return card, nil
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "card cache read failed", "profile_id", id.String(), "error", err)
		}
	}

	profile, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Card{}, dErrors.New(dErrors.CodeNotFound, "profile not found")
		}
		return models.Card{}, dErrors.Wrap(err, dErrors.CodeInternal, "load profile")
	}
	if profile.IsFrozen {
		return models.Card{}, dErrors.New(dErrors.CodeNotFound, "profile not found")
	}

	card := models.CardOf(profile)
	if s.cache != nil {
		if err := s.cache.SetCard(ctx, card); err != nil {
			s.logger.WarnContext(ctx, "card cache write failed", "profile_id", id.String(), "error", err)
		}
	}
	return card, nil
}

// SetFrozen toggles the admin freeze flag and drops the cached card.
func (s *Service) SetFrozen(ctx context.Context, id domain.ProfileID, frozen bool) error {
	if err := s.store.SetFrozen(ctx, id, frozen); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "profile not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "set frozen flag")
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, id); err != nil {
			s.logger.WarnContext(ctx, "card cache invalidation failed", "profile_id", id.String(), "error", err)
		}
	}
	return nil
}
