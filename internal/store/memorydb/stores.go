package memorydb

import (
	"context"
	"sort"
	"time"

	connmodels "medigraph/internal/connection/models"
	invitemodels "medigraph/internal/invite/models"
	profilemodels "medigraph/internal/profile/models"
	recmodels "medigraph/internal/recommendation/models"
	verifmodels "medigraph/internal/verification/models"
	"medigraph/pkg/domain"
	"medigraph/pkg/platform/sentinel"
)

// findProfileLocked returns a copy; callers must hold mu.
func (g *Graph) findProfileLocked(id domain.ProfileID) (profilemodels.Profile, bool) {
	p, ok := g.profiles[id]
	return p, ok
}

func (g *Graph) findProfile(_ context.Context, id domain.ProfileID) (*profilemodels.Profile, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.findProfileLocked(id)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &p, nil
}

func (g *Graph) incrementConnectionCounts(_ context.Context, inTx bool, a, b domain.ProfileID) error {
	defer g.writeLock(inTx)()
	for _, id := range []domain.ProfileID{a, b} {
		p, ok := g.profiles[id]
		if !ok {
			return sentinel.ErrNotFound
		}
		p.ConnectionCount++
		g.profiles[id] = p
	}
	return nil
}

// liveEdgeLocked returns the pending-or-accepted edge for the unordered pair.
func (g *Graph) liveEdgeLocked(a, b domain.ProfileID) (connmodels.Connection, bool) {
	for _, c := range g.connections {
		if c.SamePair(a, b) && (c.Status == connmodels.ConnectionPending || c.Status == connmodels.ConnectionAccepted) {
			return c, true
		}
	}
	return connmodels.Connection{}, false
}

func (g *Graph) createConnection(_ context.Context, inTx bool, conn *connmodels.Connection) error {
	defer g.writeLock(inTx)()
	if conn.Status == connmodels.ConnectionPending || conn.Status == connmodels.ConnectionAccepted {
		if _, exists := g.liveEdgeLocked(conn.RequesterID, conn.RecipientID); exists {
			return sentinel.ErrConflict
		}
	}
	g.connections[conn.ID] = *conn
	return nil
}

// Profiles returns the profile-vertical view of the graph.
func (g *Graph) Profiles() *ProfileStore { return &ProfileStore{g: g} }

type ProfileStore struct {
	g    *Graph
	inTx bool
}

func (s *ProfileStore) Create(_ context.Context, profile *profilemodels.Profile) error {
	defer s.g.writeLock(s.inTx)()
	if _, taken := s.g.handles[profile.Handle]; taken {
		return sentinel.ErrConflict
	}
	s.g.profiles[profile.ID] = *profile
	s.g.handles[profile.Handle] = profile.ID
	return nil
}

func (s *ProfileStore) FindByID(ctx context.Context, id domain.ProfileID) (*profilemodels.Profile, error) {
	return s.g.findProfile(ctx, id)
}

func (s *ProfileStore) FindByHandle(_ context.Context, handle string) (*profilemodels.Profile, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	id, ok := s.g.handles[handle]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	p := s.g.profiles[id]
	return &p, nil
}

func (s *ProfileStore) SetFrozen(_ context.Context, id domain.ProfileID, frozen bool) error {
	defer s.g.writeLock(s.inTx)()
	p, ok := s.g.profiles[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	p.IsFrozen = frozen
	s.g.profiles[id] = p
	return nil
}

// Invites returns the invite-vertical view of the graph.
func (g *Graph) Invites() *InviteStore { return &InviteStore{g: g} }

type InviteStore struct {
	g    *Graph
	inTx bool
}

func (s *InviteStore) CreateInvite(_ context.Context, invite *invitemodels.Invite) error {
	defer s.g.writeLock(s.inTx)()
	if _, exists := s.g.inviteByCode[invite.Code]; exists {
		return sentinel.ErrConflict
	}
	s.g.invites[invite.ID] = *invite
	s.g.inviteByCode[invite.Code] = invite.ID
	return nil
}

func (s *InviteStore) FindByCode(_ context.Context, code string) (*invitemodels.Invite, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	id, ok := s.g.inviteByCode[code]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	inv := s.g.invites[id]
	return &inv, nil
}

func (s *InviteStore) RedeemIfActive(_ context.Context, code string, redeemer domain.ProfileID) (*invitemodels.Invite, error) {
	defer s.g.writeLock(s.inTx)()
	id, ok := s.g.inviteByCode[code]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	inv := s.g.invites[id]
	if inv.Status != invitemodels.InviteActive {
		return nil, sentinel.ErrAlreadyUsed
	}
	redeemedBy := redeemer
	inv.Status = invitemodels.InviteRedeemed
	inv.RedeemedByProfileID = &redeemedBy
	s.g.invites[id] = inv
	return &inv, nil
}

func (s *InviteStore) MarkExpired(_ context.Context, id domain.InviteID) error {
	defer s.g.writeLock(s.inTx)()
	inv, ok := s.g.invites[id]
	if !ok || inv.Status != invitemodels.InviteActive {
		return sentinel.ErrNotFound
	}
	inv.Status = invitemodels.InviteExpired
	s.g.invites[id] = inv
	return nil
}

func (s *InviteStore) CreateConnection(ctx context.Context, conn *connmodels.Connection) error {
	return s.g.createConnection(ctx, s.inTx, conn)
}

func (s *InviteStore) FindConnectionBetween(_ context.Context, a, b domain.ProfileID) (*connmodels.Connection, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	c, ok := s.g.liveEdgeLocked(a, b)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &c, nil
}

func (s *InviteStore) IncrementConnectionCounts(ctx context.Context, a, b domain.ProfileID) error {
	return s.g.incrementConnectionCounts(ctx, s.inTx, a, b)
}

func (s *InviteStore) FindProfile(ctx context.Context, id domain.ProfileID) (*profilemodels.Profile, error) {
	return s.g.findProfile(ctx, id)
}

// Connections returns the connection-vertical view of the graph.
func (g *Graph) Connections() *ConnectionStore { return &ConnectionStore{g: g} }

type ConnectionStore struct {
	g    *Graph
	inTx bool
}

func (s *ConnectionStore) Create(ctx context.Context, conn *connmodels.Connection) error {
	return s.g.createConnection(ctx, s.inTx, conn)
}

func (s *ConnectionStore) FindByID(_ context.Context, id domain.ConnectionID) (*connmodels.Connection, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	c, ok := s.g.connections[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &c, nil
}

func (s *ConnectionStore) FindBetween(_ context.Context, a, b domain.ProfileID) ([]*connmodels.Connection, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	var out []*connmodels.Connection
	for _, c := range s.g.connections {
		if c.SamePair(a, b) {
			edge := c
			out = append(out, &edge)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *ConnectionStore) ResolveIfPending(_ context.Context, id domain.ConnectionID, status connmodels.ConnectionStatus, resolvedAt time.Time) (*connmodels.Connection, error) {
	defer s.g.writeLock(s.inTx)()
	c, ok := s.g.connections[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if c.Status != connmodels.ConnectionPending {
		return nil, sentinel.ErrInvalidState
	}
	at := resolvedAt
	c.Status = status
	c.ResolvedAt = &at
	s.g.connections[id] = c
	return &c, nil
}

func (s *ConnectionStore) ListAccepted(_ context.Context, profileID domain.ProfileID) ([]*connmodels.Connection, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	var out []*connmodels.Connection
	for _, c := range s.g.connections {
		if c.Status == connmodels.ConnectionAccepted && c.Involves(profileID) {
			edge := c
			out = append(out, &edge)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ResolvedAt.After(*out[j].ResolvedAt)
	})
	return out, nil
}

func (s *ConnectionStore) ListPendingFor(_ context.Context, recipientID domain.ProfileID) ([]*connmodels.Connection, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	var out []*connmodels.Connection
	for _, c := range s.g.connections {
		if c.Status == connmodels.ConnectionPending && c.RecipientID == recipientID {
			edge := c
			out = append(out, &edge)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *ConnectionStore) IncrementConnectionCounts(ctx context.Context, a, b domain.ProfileID) error {
	return s.g.incrementConnectionCounts(ctx, s.inTx, a, b)
}

func (s *ConnectionStore) FindProfile(ctx context.Context, id domain.ProfileID) (*profilemodels.Profile, error) {
	return s.g.findProfile(ctx, id)
}

// Recommendations returns the recommendation-vertical view of the graph.
func (g *Graph) Recommendations() *RecommendationStore { return &RecommendationStore{g: g} }

type RecommendationStore struct {
	g    *Graph
	inTx bool
}

func (s *RecommendationStore) Insert(_ context.Context, rec *recmodels.Recommendation) error {
	defer s.g.writeLock(s.inTx)()
	key := recommendationKey(rec.ProfileID, rec.RecommenderKey)
	if _, exists := s.g.recommendations[key]; exists {
		return sentinel.ErrConflict
	}
	s.g.recommendations[key] = *rec
	return nil
}

func (s *RecommendationStore) IncrementRecommendationCount(_ context.Context, profileID domain.ProfileID) error {
	defer s.g.writeLock(s.inTx)()
	p, ok := s.g.profiles[profileID]
	if !ok {
		return sentinel.ErrNotFound
	}
	p.RecommendationCount++
	s.g.profiles[profileID] = p
	return nil
}

func (s *RecommendationStore) FindProfile(ctx context.Context, id domain.ProfileID) (*profilemodels.Profile, error) {
	return s.g.findProfile(ctx, id)
}

// Verifications returns the verification-vertical view of the graph.
func (g *Graph) Verifications() *VerificationStore { return &VerificationStore{g: g} }

type VerificationStore struct {
	g    *Graph
	inTx bool
}

func (s *VerificationStore) CreateRequest(_ context.Context, req *verifmodels.VerificationRequest) error {
	defer s.g.writeLock(s.inTx)()
	for _, r := range s.g.requests {
		if r.ProfileID == req.ProfileID && r.Status == verifmodels.RequestPending {
			return sentinel.ErrConflict
		}
	}
	s.g.requests[req.ID] = *req
	return nil
}

func (s *VerificationStore) FindRequest(_ context.Context, id domain.VerificationRequestID) (*verifmodels.VerificationRequest, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	r, ok := s.g.requests[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &r, nil
}

func (s *VerificationStore) ResolveIfPending(_ context.Context, id domain.VerificationRequestID, status verifmodels.RequestStatus, resolvedAt time.Time) (*verifmodels.VerificationRequest, error) {
	defer s.g.writeLock(s.inTx)()
	r, ok := s.g.requests[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if r.Status != verifmodels.RequestPending {
		return nil, sentinel.ErrInvalidState
	}
	at := resolvedAt
	r.Status = status
	r.ResolvedAt = &at
	s.g.requests[id] = r
	return &r, nil
}

func (s *VerificationStore) SetProfileVerification(_ context.Context, profileID domain.ProfileID, status profilemodels.VerificationStatus, isVerified bool) error {
	defer s.g.writeLock(s.inTx)()
	p, ok := s.g.profiles[profileID]
	if !ok {
		return sentinel.ErrNotFound
	}
	p.VerificationStatus = status
	p.IsVerified = isVerified
	s.g.profiles[profileID] = p
	return nil
}

func (s *VerificationStore) FindProfile(ctx context.Context, id domain.ProfileID) (*profilemodels.Profile, error) {
	return s.g.findProfile(ctx, id)
}
