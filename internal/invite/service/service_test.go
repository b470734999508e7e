package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	connmodels "medigraph/internal/connection/models"
	"medigraph/internal/invite/models"
	"medigraph/internal/invite/service"
	"medigraph/internal/notification"
	profilemodels "medigraph/internal/profile/models"
	"medigraph/internal/store/memorydb"
	"medigraph/pkg/domain"
	dErrors "medigraph/pkg/domain-errors"
)

type captureNotifier struct {
	mu     sync.Mutex
	events []notification.Event
}

func (n *captureNotifier) Notify(_ context.Context, event notification.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *captureNotifier) kinds() []notification.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notification.Kind, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Kind)
	}
	return out
}

type InviteServiceSuite struct {
	suite.Suite
	graph    *memorydb.Graph
	svc      *service.Service
	notifier *captureNotifier
	ctx      context.Context

	inviter  *profilemodels.Profile
	redeemer *profilemodels.Profile
}

func TestInviteServiceSuite(t *testing.T) {
	suite.Run(t, new(InviteServiceSuite))
}

func (s *InviteServiceSuite) SetupTest() {
	s.graph = memorydb.New()
	s.notifier = &captureNotifier{}
	s.ctx = context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.svc = service.New(s.graph.Invites(), s.graph.InviteTx(), s.notifier, nil, nil, logger, 30*24*time.Hour, "https://medigraph.example")

	s.inviter = s.newProfile("dr.ada")
	s.redeemer = s.newProfile("dr.grace")
}

func (s *InviteServiceSuite) newProfile(handle string) *profilemodels.Profile {
	p := &profilemodels.Profile{
		ID:                 domain.ProfileID(uuid.New()),
		Handle:             handle,
		Email:              handle + "@clinic.example",
		PasswordHash:       []byte("x"),
		VerificationStatus: profilemodels.VerificationUnverified,
		CreatedAt:          time.Now(),
	}
	s.Require().NoError(s.graph.Profiles().Create(s.ctx, p))
	return p
}

func (s *InviteServiceSuite) freeze(id domain.ProfileID) {
	s.Require().NoError(s.graph.Profiles().SetFrozen(s.ctx, id, true))
}

func (s *InviteServiceSuite) TestIssue() {
	s.Run("issues an active invite with a share URL", func() {
		invite, err := s.svc.Issue(s.ctx, s.inviter.ID, nil)
		s.Require().NoError(err)
		s.Equal(models.InviteActive, invite.Status)
		s.NotEmpty(invite.Code)
		s.Equal("https://medigraph.example/join/"+invite.Code, s.svc.URL(invite.Code))
		s.NotNil(invite.ExpiresAt)
	})

	s.Run("sends an email notification for bound invites", func() {
		email := "colleague@clinic.example"
		_, err := s.svc.Issue(s.ctx, s.inviter.ID, &email)
		s.Require().NoError(err)
		s.Contains(s.notifier.kinds(), notification.KindInviteIssued)
	})

	s.Run("rejects unknown inviter", func() {
		_, err := s.svc.Issue(s.ctx, domain.ProfileID(uuid.New()), nil)
		s.True(dErrors.Is(err, dErrors.CodeNotFound))
	})

	s.Run("rejects frozen inviter", func() {
		frozen := s.newProfile("dr.frozen")
		s.freeze(frozen.ID)
		_, err := s.svc.Issue(s.ctx, frozen.ID, nil)
		s.True(dErrors.Is(err, dErrors.CodeProfileFrozen))
	})
}

func (s *InviteServiceSuite) TestRedeem() {
	s.Run("creates an accepted connection and bumps both counters", func() {
		invite, err := s.svc.Issue(s.ctx, s.inviter.ID, nil)
		s.Require().NoError(err)

		conn, err := s.svc.Redeem(s.ctx, invite.Code, s.redeemer.ID)
		s.Require().NoError(err)
		s.Equal(connmodels.ConnectionAccepted, conn.Status)
		s.NotNil(conn.ResolvedAt)

		inviter, err := s.graph.Profiles().FindByID(s.ctx, s.inviter.ID)
		s.Require().NoError(err)
		redeemer, err := s.graph.Profiles().FindByID(s.ctx, s.redeemer.ID)
		s.Require().NoError(err)
		s.Equal(1, inviter.ConnectionCount)
		s.Equal(1, redeemer.ConnectionCount)

		s.Contains(s.notifier.kinds(), notification.KindInviteRedeemed)
	})

	s.Run("rejects unknown code", func() {
		_, err := s.svc.Redeem(s.ctx, "no-such-code", s.redeemer.ID)
		s.True(dErrors.Is(err, dErrors.CodeNotFound))
	})

	s.Run("rejects empty code", func() {
		_, err := s.svc.Redeem(s.ctx, "", s.redeemer.ID)
		s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects self-redemption", func() {
		invite, err := s.svc.Issue(s.ctx, s.inviter.ID, nil)
		s.Require().NoError(err)

		_, err = s.svc.Redeem(s.ctx, invite.Code, s.inviter.ID)
		s.True(dErrors.Is(err, dErrors.CodeSelfRedemption))
	})

	s.Run("second redeemer gets AlreadyRedeemed", func() {
		first := s.newProfile("dr.hamilton")
		other := s.newProfile("dr.turing")
		invite, err := s.svc.Issue(s.ctx, s.inviter.ID, nil)
		s.Require().NoError(err)

		_, err = s.svc.Redeem(s.ctx, invite.Code, first.ID)
		s.Require().NoError(err)

		_, err = s.svc.Redeem(s.ctx, invite.Code, other.ID)
		s.True(dErrors.Is(err, dErrors.CodeAlreadyRedeemed))
	})

	s.Run("retry by the same redeemer is an idempotent success", func() {
		inviter := s.newProfile("dr.knuth")
		redeemer := s.newProfile("dr.ritchie")
		invite, err := s.svc.Issue(s.ctx, inviter.ID, nil)
		s.Require().NoError(err)

		first, err := s.svc.Redeem(s.ctx, invite.Code, redeemer.ID)
		s.Require().NoError(err)

		second, err := s.svc.Redeem(s.ctx, invite.Code, redeemer.ID)
		s.Require().NoError(err)
		s.Equal(first.ID, second.ID)

		// The retry must not bump counters again.
		stored, err := s.graph.Profiles().FindByID(s.ctx, inviter.ID)
		s.Require().NoError(err)
		s.Equal(1, stored.ConnectionCount)
	})

	s.Run("rejects frozen redeemer", func() {
		invite, err := s.svc.Issue(s.ctx, s.inviter.ID, nil)
		s.Require().NoError(err)

		frozen := s.newProfile("dr.onice")
		s.freeze(frozen.ID)
		_, err = s.svc.Redeem(s.ctx, invite.Code, frozen.ID)
		s.True(dErrors.Is(err, dErrors.CodeProfileFrozen))
	})
}

func (s *InviteServiceSuite) TestRedeemExpiry() {
	s.Run("lazily expires a code past its window", func() {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		shortTTL := service.New(s.graph.Invites(), s.graph.InviteTx(), s.notifier, nil, nil, logger, time.Nanosecond, "https://medigraph.example")

		invite, err := shortTTL.Issue(s.ctx, s.inviter.ID, nil)
		s.Require().NoError(err)
		time.Sleep(time.Millisecond)

		_, err = shortTTL.Redeem(s.ctx, invite.Code, s.redeemer.ID)
		s.True(dErrors.Is(err, dErrors.CodeInviteExpired))

		// The lazy transition is persisted.
		stored, err := s.graph.Invites().FindByCode(s.ctx, invite.Code)
		s.Require().NoError(err)
		s.Equal(models.InviteExpired, stored.Status)
	})
}

func (s *InviteServiceSuite) TestConcurrentRedeem() {
	s.Run("exactly one of many concurrent redeemers wins", func() {
		invite, err := s.svc.Issue(s.ctx, s.inviter.ID, nil)
		s.Require().NoError(err)

		const racers = 8
		profiles := make([]*profilemodels.Profile, racers)
		for i := range profiles {
			profiles[i] = s.newProfile("dr.racer" + string(rune('a'+i)))
		}

		var wg sync.WaitGroup
		errs := make([]error, racers)
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = s.svc.Redeem(s.ctx, invite.Code, profiles[i].ID)
			}(i)
		}
		wg.Wait()

		winners := 0
		for _, err := range errs {
			if err == nil {
				winners++
			} else {
				s.True(dErrors.Is(err, dErrors.CodeAlreadyRedeemed))
			}
		}
		s.Equal(1, winners)

		// Only the winning pair's counters moved.
		inviter, err := s.graph.Profiles().FindByID(s.ctx, s.inviter.ID)
		s.Require().NoError(err)
		s.Equal(1, inviter.ConnectionCount)
	})
}
