// Package memorydb is the in-memory twin of the postgres stores. It keeps
// development and unit tests free of external dependencies while preserving
// the same conditional-update semantics: every mutation checks the expected
// prior state and the transaction runners serialize multi-step mutations.
package memorydb

import (
	"sync"

	connmodels "medigraph/internal/connection/models"
	invitemodels "medigraph/internal/invite/models"
	profilemodels "medigraph/internal/profile/models"
	recmodels "medigraph/internal/recommendation/models"
	verifmodels "medigraph/internal/verification/models"
	"medigraph/pkg/domain"
)

// Graph holds the whole trust graph behind one mutex. Individual store calls
// lock mu; transactions additionally hold txMu exclusively for their full
// extent and snapshot the maps so a failed transaction rolls back, matching
// the all-or-nothing guarantee of the SQL twin. Mutations outside a
// transaction take txMu shared, so they can never land between a
// transaction's snapshot and a rollback restore and be erased by it.
type Graph struct {
	mu   sync.Mutex
	txMu sync.RWMutex

	profiles        map[domain.ProfileID]profilemodels.Profile
	handles         map[string]domain.ProfileID
	invites         map[domain.InviteID]invitemodels.Invite
	inviteByCode    map[string]domain.InviteID
	connections     map[domain.ConnectionID]connmodels.Connection
	recommendations map[string]recmodels.Recommendation
	requests        map[domain.VerificationRequestID]verifmodels.VerificationRequest
}

func New() *Graph {
	return &Graph{
		profiles:        make(map[domain.ProfileID]profilemodels.Profile),
		handles:         make(map[string]domain.ProfileID),
		invites:         make(map[domain.InviteID]invitemodels.Invite),
		inviteByCode:    make(map[string]domain.InviteID),
		connections:     make(map[domain.ConnectionID]connmodels.Connection),
		recommendations: make(map[string]recmodels.Recommendation),
		requests:        make(map[domain.VerificationRequestID]verifmodels.VerificationRequest),
	}
}

type snapshot struct {
	profiles        map[domain.ProfileID]profilemodels.Profile
	handles         map[string]domain.ProfileID
	invites         map[domain.InviteID]invitemodels.Invite
	inviteByCode    map[string]domain.InviteID
	connections     map[domain.ConnectionID]connmodels.Connection
	recommendations map[string]recmodels.Recommendation
	requests        map[domain.VerificationRequestID]verifmodels.VerificationRequest
}

func (g *Graph) snapshot() snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return snapshot{
		profiles:        copyMap(g.profiles),
		handles:         copyMap(g.handles),
		invites:         copyMap(g.invites),
		inviteByCode:    copyMap(g.inviteByCode),
		connections:     copyMap(g.connections),
		recommendations: copyMap(g.recommendations),
		requests:        copyMap(g.requests),
	}
}

func (g *Graph) restore(s snapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.profiles = s.profiles
	g.handles = s.handles
	g.invites = s.invites
	g.inviteByCode = s.inviteByCode
	g.connections = s.connections
	g.recommendations = s.recommendations
	g.requests = s.requests
}

// writeLock acquires the locks a mutation needs. Store views handed to a
// transaction callback set inTx: the transaction already holds txMu
// exclusively, so they only take mu. Everything else takes txMu shared first
// and therefore waits out any in-flight transaction.
func (g *Graph) writeLock(inTx bool) func() {
	if !inTx {
		g.txMu.RLock()
	}
	g.mu.Lock()
	return func() {
		g.mu.Unlock()
		if !inTx {
			g.txMu.RUnlock()
		}
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func recommendationKey(profileID domain.ProfileID, recommenderKey string) string {
	return profileID.String() + "|" + recommenderKey
}
