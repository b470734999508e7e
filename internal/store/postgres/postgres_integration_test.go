//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	connmodels "medigraph/internal/connection/models"
	invitemodels "medigraph/internal/invite/models"
	inviteservice "medigraph/internal/invite/service"
	profilemodels "medigraph/internal/profile/models"
	recmodels "medigraph/internal/recommendation/models"
	recservice "medigraph/internal/recommendation/service"
	"medigraph/internal/store/postgres"
	verifmodels "medigraph/internal/verification/models"
	"medigraph/pkg/domain"
	"medigraph/pkg/platform/sentinel"
	"medigraph/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg  *containers.PostgresContainer
	ctx context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.GetPostgres(s.T())
	s.ctx = context.Background()
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(s.ctx,
		"verification_requests", "recommendations", "connections", "invites", "profiles"))
}

func (s *PostgresStoreSuite) newProfile(handle string) *profilemodels.Profile {
	p := &profilemodels.Profile{
		ID:                 domain.ProfileID(uuid.New()),
		Handle:             handle,
		Email:              handle + "@clinic.example",
		PasswordHash:       []byte("hash"),
		VerificationStatus: profilemodels.VerificationUnverified,
		CreatedAt:          time.Now().UTC(),
	}
	s.Require().NoError(postgres.NewProfiles(s.pg.DB).Create(s.ctx, p))
	return p
}

func (s *PostgresStoreSuite) TestProfileHandleUniqueness() {
	s.newProfile("dr.unique")

	dup := &profilemodels.Profile{
		ID:                 domain.ProfileID(uuid.New()),
		Handle:             "dr.unique",
		Email:              "other@clinic.example",
		PasswordHash:       []byte("hash"),
		VerificationStatus: profilemodels.VerificationUnverified,
		CreatedAt:          time.Now().UTC(),
	}
	err := postgres.NewProfiles(s.pg.DB).Create(s.ctx, dup)
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestInviteRedeemIfActive() {
	store := postgres.NewInvites(s.pg.DB)
	inviter := s.newProfile("dr.inviter")
	redeemer := s.newProfile("dr.redeemer")

	code, err := invitemodels.NewCode()
	s.Require().NoError(err)
	s.Require().NoError(store.CreateInvite(s.ctx, &invitemodels.Invite{
		ID:               domain.InviteID(uuid.New()),
		InviterProfileID: inviter.ID,
		Code:             code,
		Status:           invitemodels.InviteActive,
		CreatedAt:        time.Now().UTC(),
	}))

	s.Run("first redemption wins", func() {
		inv, err := store.RedeemIfActive(s.ctx, code, redeemer.ID)
		s.Require().NoError(err)
		s.Equal(invitemodels.InviteRedeemed, inv.Status)
		s.Require().NotNil(inv.RedeemedByProfileID)
		s.Equal(redeemer.ID, *inv.RedeemedByProfileID)
	})

	s.Run("second redemption gets ErrAlreadyUsed", func() {
		_, err := store.RedeemIfActive(s.ctx, code, inviter.ID)
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("unknown code gets ErrNotFound", func() {
		_, err := store.RedeemIfActive(s.ctx, "no-such-code", redeemer.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PostgresStoreSuite) TestConnectionLivePairIndex() {
	store := postgres.NewConnections(s.pg.DB)
	a := s.newProfile("dr.a")
	b := s.newProfile("dr.b")

	first := &connmodels.Connection{
		ID:          domain.ConnectionID(uuid.New()),
		RequesterID: a.ID,
		RecipientID: b.ID,
		Status:      connmodels.ConnectionPending,
		CreatedAt:   time.Now().UTC(),
	}
	s.Require().NoError(store.Create(s.ctx, first))

	s.Run("a second live edge conflicts in either direction", func() {
		err := store.Create(s.ctx, &connmodels.Connection{
			ID:          domain.ConnectionID(uuid.New()),
			RequesterID: b.ID,
			RecipientID: a.ID,
			Status:      connmodels.ConnectionPending,
			CreatedAt:   time.Now().UTC(),
		})
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("resolving to rejected frees the pair at the index level", func() {
		_, err := store.ResolveIfPending(s.ctx, first.ID, connmodels.ConnectionRejected, time.Now().UTC())
		s.Require().NoError(err)

		// The rejected tombstone no longer occupies the partial index; the
		// permanent block is the service's read of edge history.
		err = store.Create(s.ctx, &connmodels.Connection{
			ID:          domain.ConnectionID(uuid.New()),
			RequesterID: a.ID,
			RecipientID: b.ID,
			Status:      connmodels.ConnectionPending,
			CreatedAt:   time.Now().UTC(),
		})
		s.Require().NoError(err)
	})

	s.Run("resolving twice loses with ErrInvalidState", func() {
		_, err := store.ResolveIfPending(s.ctx, first.ID, connmodels.ConnectionAccepted, time.Now().UTC())
		s.Require().ErrorIs(err, sentinel.ErrInvalidState)
	})
}

func (s *PostgresStoreSuite) TestRecommendationUniqueness() {
	store := postgres.NewRecommendations(s.pg.DB)
	profile := s.newProfile("dr.rec")

	rec := &recmodels.Recommendation{
		ID:             domain.RecommendationID(uuid.New()),
		ProfileID:      profile.ID,
		RecommenderKey: "profile:someone",
		CreatedAt:      time.Now().UTC(),
	}
	s.Require().NoError(store.Insert(s.ctx, rec))

	dup := *rec
	dup.ID = domain.RecommendationID(uuid.New())
	s.Require().ErrorIs(store.Insert(s.ctx, &dup), sentinel.ErrConflict)

	s.Require().NoError(store.IncrementRecommendationCount(s.ctx, profile.ID))
	p, err := store.FindProfile(s.ctx, profile.ID)
	s.Require().NoError(err)
	s.Equal(1, p.RecommendationCount)
}

func (s *PostgresStoreSuite) TestRecommendationDuplicateInsideTx() {
	profile := s.newProfile("dr.dup")

	rec := &recmodels.Recommendation{
		ID:             domain.RecommendationID(uuid.New()),
		ProfileID:      profile.ID,
		RecommenderKey: "anon-dup",
		CreatedAt:      time.Now().UTC(),
	}
	s.Require().NoError(postgres.NewRecommendations(s.pg.DB).Insert(s.ctx, rec))

	// A duplicate inside a transaction must surface as ErrConflict without
	// aborting it: swallowing the conflict and committing has to succeed.
	err := postgres.NewRecommendationTx(s.pg.DB, 5*time.Second).RunInTx(s.ctx, func(store recservice.Store) error {
		dup := *rec
		dup.ID = domain.RecommendationID(uuid.New())
		if err := store.Insert(s.ctx, &dup); !errors.Is(err, sentinel.ErrConflict) {
			return err
		}
		return nil
	})
	s.Require().NoError(err)

	p, err := postgres.NewRecommendations(s.pg.DB).FindProfile(s.ctx, profile.ID)
	s.Require().NoError(err)
	s.Equal(0, p.RecommendationCount)
}

func (s *PostgresStoreSuite) TestVerificationOnePendingPerProfile() {
	store := postgres.NewVerifications(s.pg.DB)
	profile := s.newProfile("dr.verify")

	req := &verifmodels.VerificationRequest{
		ID:           domain.VerificationRequestID(uuid.New()),
		ProfileID:    profile.ID,
		DocumentRefs: []string{"doc://license"},
		Status:       verifmodels.RequestPending,
		SubmittedAt:  time.Now().UTC(),
	}
	s.Require().NoError(store.CreateRequest(s.ctx, req))

	s.Run("a second pending request conflicts", func() {
		err := store.CreateRequest(s.ctx, &verifmodels.VerificationRequest{
			ID:           domain.VerificationRequestID(uuid.New()),
			ProfileID:    profile.ID,
			DocumentRefs: []string{"doc://other"},
			Status:       verifmodels.RequestPending,
			SubmittedAt:  time.Now().UTC(),
		})
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("resolution frees the profile for a new request", func() {
		resolved, err := store.ResolveIfPending(s.ctx, req.ID, verifmodels.RequestRejected, time.Now().UTC())
		s.Require().NoError(err)
		s.Equal(verifmodels.RequestRejected, resolved.Status)
		s.Equal([]string{"doc://license"}, resolved.DocumentRefs)

		err = store.CreateRequest(s.ctx, &verifmodels.VerificationRequest{
			ID:           domain.VerificationRequestID(uuid.New()),
			ProfileID:    profile.ID,
			DocumentRefs: []string{"doc://retry"},
			Status:       verifmodels.RequestPending,
			SubmittedAt:  time.Now().UTC(),
		})
		s.Require().NoError(err)
	})
}

func (s *PostgresStoreSuite) TestInviteTxRollsBack() {
	inviter := s.newProfile("dr.tx")
	redeemer := s.newProfile("dr.tx2")

	code, err := invitemodels.NewCode()
	s.Require().NoError(err)
	s.Require().NoError(postgres.NewInvites(s.pg.DB).CreateInvite(s.ctx, &invitemodels.Invite{
		ID:               domain.InviteID(uuid.New()),
		InviterProfileID: inviter.ID,
		Code:             code,
		Status:           invitemodels.InviteActive,
		CreatedAt:        time.Now().UTC(),
	}))

	boom := errors.New("boom")
	err = postgres.NewInviteTx(s.pg.DB, 5*time.Second).RunInTx(s.ctx, func(store inviteservice.Store) error {
		if _, err := store.RedeemIfActive(s.ctx, code, redeemer.ID); err != nil {
			return err
		}
		if err := store.IncrementConnectionCounts(s.ctx, inviter.ID, redeemer.ID); err != nil {
			return err
		}
		return boom
	})
	s.Require().ErrorIs(err, boom)

	// Nothing from the failed transaction is visible.
	inv, err := postgres.NewInvites(s.pg.DB).FindByCode(s.ctx, code)
	s.Require().NoError(err)
	s.Equal(invitemodels.InviteActive, inv.Status)

	p, err := postgres.NewProfiles(s.pg.DB).FindByID(s.ctx, inviter.ID)
	s.Require().NoError(err)
	s.Equal(0, p.ConnectionCount)
}
