package test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"medigraph/internal/auth"
	connhandler "medigraph/internal/connection/handler"
	connservice "medigraph/internal/connection/service"
	invitehandler "medigraph/internal/invite/handler"
	inviteservice "medigraph/internal/invite/service"
	"medigraph/internal/notification"
	profilehandler "medigraph/internal/profile/handler"
	profileservice "medigraph/internal/profile/service"
	rechandler "medigraph/internal/recommendation/handler"
	recservice "medigraph/internal/recommendation/service"
	"medigraph/internal/store/memorydb"
	httptransport "medigraph/internal/transport/http"
	verifhandler "medigraph/internal/verification/handler"
	verifservice "medigraph/internal/verification/service"
	"medigraph/pkg/testutil"
)

// newTrustGraphRouter wires the full HTTP stack against the in-memory graph,
// the same shape cmd/server uses when no DATABASE_URL is configured.
func newTrustGraphRouter(t *testing.T) http.Handler {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	g := memorydb.New()
	tokens := auth.NewTokenService("e2e-signing-key", "medigraph", time.Hour)
	notifier := notification.Nop{}

	profiles := profileservice.New(g.Profiles(), tokens, nil, log, []string{"registry.admin"})
	invites := inviteservice.New(g.Invites(), g.InviteTx(), notifier, nil, nil, log, 30*24*time.Hour, "https://medigraph.example")
	connections := connservice.New(g.Connections(), g.ConnectionTx(), notifier, nil, nil, log)
	recommendations := recservice.New(g.Recommendations(), g.RecommendationTx(), nil, nil, log)
	verifications := verifservice.New(g.Verifications(), g.VerificationTx(), notifier, nil, log)

	router := httptransport.NewRouter(log, nil,
		profilehandler.New(profiles, tokens, log),
		invitehandler.New(invites, tokens, log),
		connhandler.New(connections, tokens, log),
		rechandler.New(recommendations, tokens, "e2e-salt", log),
		verifhandler.New(verifications, tokens, log),
	)
	return router
}

func do(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64; rv:133.0) Gecko/20100101 Firefox/133.0")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response body %q: %v", rec.Body.String(), err)
	}
	return out
}

func register(t *testing.T, router http.Handler, handle string) (id, token string) {
	t.Helper()

	rec := do(t, router, http.MethodPost, "/profiles", "", map[string]string{
		"handle":   handle,
		"email":    handle + "@clinic.example",
		"password": "correct-horse",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d: %s", handle, rec.Code, rec.Body.String())
	}
	created := decode[struct {
		ID string `json:"id"`
	}](t, rec)

	rec = do(t, router, http.MethodPost, "/auth/login", "", map[string]string{
		"handle":   handle,
		"password": "correct-horse",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", handle, rec.Code, rec.Body.String())
	}
	login := decode[struct {
		Token string `json:"token"`
	}](t, rec)
	return created.ID, login.Token
}

type cardBody struct {
	Handle              string `json:"handle"`
	ConnectionCount     int    `json:"connection_count"`
	RecommendationCount int    `json:"recommendation_count"`
	VerificationStatus  string `json:"verification_status"`
	IsVerified          bool   `json:"is_verified"`
}

func card(t *testing.T, router http.Handler, id string) cardBody {
	t.Helper()
	rec := do(t, router, http.MethodGet, "/profiles/"+id, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("card %s: expected 200, got %d: %s", id, rec.Code, rec.Body.String())
	}
	return decode[cardBody](t, rec)
}

func TestInviteRedemptionFlow(t *testing.T) {
	router := newTrustGraphRouter(t)

	testutil.Given(t, "an invite issued by a registered doctor", func(t *testing.T) {
		aliceID, aliceToken := register(t, router, "dr.alice")
		bobID, bobToken := register(t, router, "dr.bob")

		rec := do(t, router, http.MethodPost, "/invites", aliceToken, nil)
		if rec.Code != http.StatusCreated {
			t.Fatalf("issue invite: expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		invite := decode[struct {
			Code string `json:"code"`
			URL  string `json:"url"`
		}](t, rec)
		if invite.URL != "https://medigraph.example/join/"+invite.Code {
			t.Fatalf("unexpected invite url %q", invite.URL)
		}

		testutil.When(t, "another doctor redeems the code", func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/invites/redeem", bobToken, map[string]string{"code": invite.Code})

			testutil.Then(t, "an accepted connection links inviter and redeemer", func(t *testing.T) {
				if rec.Code != http.StatusOK {
					t.Fatalf("redeem: expected 200, got %d: %s", rec.Code, rec.Body.String())
				}
				conn := decode[struct {
					RequesterID string `json:"requester_id"`
					RecipientID string `json:"recipient_id"`
					Status      string `json:"status"`
				}](t, rec)
				if conn.Status != "accepted" {
					t.Fatalf("expected accepted connection, got %q", conn.Status)
				}
				if conn.RequesterID != aliceID || conn.RecipientID != bobID {
					t.Fatalf("connection links wrong profiles: %+v", conn)
				}
			})

			testutil.Then(t, "both public cards count the connection", func(t *testing.T) {
				if got := card(t, router, aliceID).ConnectionCount; got != 1 {
					t.Fatalf("inviter connection_count = %d, want 1", got)
				}
				if got := card(t, router, bobID).ConnectionCount; got != 1 {
					t.Fatalf("redeemer connection_count = %d, want 1", got)
				}
			})

			testutil.Then(t, "a second redemption of the same code loses", func(t *testing.T) {
				_, carolToken := register(t, router, "dr.carol")
				rec := do(t, router, http.MethodPost, "/invites/redeem", carolToken, map[string]string{"code": invite.Code})
				if rec.Code != http.StatusConflict {
					t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
				}
				body := decode[struct {
					Error string `json:"error"`
				}](t, rec)
				if body.Error != "already_redeemed" {
					t.Fatalf("expected already_redeemed, got %q", body.Error)
				}
			})
		})
	})
}

func TestConnectionRequestFlow(t *testing.T) {
	router := newTrustGraphRouter(t)

	testutil.Given(t, "two unconnected doctors", func(t *testing.T) {
		daveID, daveToken := register(t, router, "dr.dave")
		_, erinToken := register(t, router, "dr.erin")

		rec := do(t, router, http.MethodPost, "/connections", erinToken, map[string]string{"recipient_id": daveID})
		if rec.Code != http.StatusCreated {
			t.Fatalf("request connection: expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		requested := decode[struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}](t, rec)
		if requested.Status != "pending" {
			t.Fatalf("expected pending, got %q", requested.Status)
		}

		testutil.When(t, "the recipient lists pending requests", func(t *testing.T) {
			rec := do(t, router, http.MethodGet, "/connections/pending", daveToken, nil)

			testutil.Then(t, "the new request is visible to the recipient only", func(t *testing.T) {
				if rec.Code != http.StatusOK {
					t.Fatalf("list pending: expected 200, got %d", rec.Code)
				}
				pending := decode[[]struct {
					ID string `json:"id"`
				}](t, rec)
				if len(pending) != 1 || pending[0].ID != requested.ID {
					t.Fatalf("unexpected pending list: %+v", pending)
				}

				requesterView := do(t, router, http.MethodGet, "/connections/pending", erinToken, nil)
				if got := decode[[]any](t, requesterView); len(got) != 0 {
					t.Fatalf("requester should see no inbound requests, got %d", len(got))
				}
			})
		})

		testutil.When(t, "the recipient accepts", func(t *testing.T) {
			rec := do(t, router, http.MethodPatch, "/connections/"+requested.ID, daveToken, map[string]string{"action": "accept"})

			testutil.Then(t, "the edge is accepted and listed by both sides", func(t *testing.T) {
				if rec.Code != http.StatusOK {
					t.Fatalf("respond: expected 200, got %d: %s", rec.Code, rec.Body.String())
				}
				for _, token := range []string{daveToken, erinToken} {
					list := do(t, router, http.MethodGet, "/connections", token, nil)
					accepted := decode[[]struct {
						Status string `json:"status"`
					}](t, list)
					if len(accepted) != 1 || accepted[0].Status != "accepted" {
						t.Fatalf("unexpected accepted list: %+v", accepted)
					}
				}
			})

			testutil.Then(t, "a duplicate request is rejected as already connected", func(t *testing.T) {
				rec := do(t, router, http.MethodPost, "/connections", erinToken, map[string]string{"recipient_id": daveID})
				if rec.Code != http.StatusConflict {
					t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
				}
			})
		})
	})
}

func TestRecommendationFlow(t *testing.T) {
	router := newTrustGraphRouter(t)

	testutil.Given(t, "a registered doctor", func(t *testing.T) {
		frankID, _ := register(t, router, "dr.frank")
		path := fmt.Sprintf("/profiles/%s/recommendations", frankID)

		testutil.When(t, "an anonymous visitor recommends twice", func(t *testing.T) {
			first := do(t, router, http.MethodPost, path, "", nil)
			second := do(t, router, http.MethodPost, path, "", nil)

			testutil.Then(t, "only the first attempt creates a recommendation", func(t *testing.T) {
				if first.Code != http.StatusCreated {
					t.Fatalf("first give: expected 201, got %d: %s", first.Code, first.Body.String())
				}
				if second.Code != http.StatusOK {
					t.Fatalf("second give: expected 200, got %d: %s", second.Code, second.Body.String())
				}
				if decode[struct {
					Created bool `json:"created"`
				}](t, second).Created {
					t.Fatal("duplicate recommendation reported created=true")
				}
				if got := card(t, router, frankID).RecommendationCount; got != 1 {
					t.Fatalf("recommendation_count = %d, want 1", got)
				}
			})
		})

		testutil.When(t, "an authenticated colleague recommends as well", func(t *testing.T) {
			_, graceToken := register(t, router, "dr.grace")
			rec := do(t, router, http.MethodPost, path, graceToken, nil)

			testutil.Then(t, "the count grows because the keys differ", func(t *testing.T) {
				if rec.Code != http.StatusCreated {
					t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
				}
				if got := card(t, router, frankID).RecommendationCount; got != 2 {
					t.Fatalf("recommendation_count = %d, want 2", got)
				}
			})
		})
	})
}

func TestVerificationFlow(t *testing.T) {
	router := newTrustGraphRouter(t)

	// registry.admin is a bootstrapped admin handle, so its login token
	// carries the admin claim.
	_, adminToken := register(t, router, "registry.admin")

	testutil.Given(t, "a doctor with a submitted credential review", func(t *testing.T) {
		heidiID, heidiToken := register(t, router, "dr.heidi")

		rec := do(t, router, http.MethodPost, "/verification/requests", heidiToken, map[string][]string{
			"document_refs": {"s3://medigraph-docs/heidi/license.pdf"},
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("submit: expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		submitted := decode[struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}](t, rec)
		if submitted.Status != "pending" {
			t.Fatalf("expected pending, got %q", submitted.Status)
		}

		testutil.When(t, "a non-admin tries to resolve it", func(t *testing.T) {
			rec := do(t, router, http.MethodPatch, "/verification/requests/"+submitted.ID, heidiToken, map[string]string{"decision": "approve"})

			testutil.Then(t, "the resolution is forbidden", func(t *testing.T) {
				if rec.Code != http.StatusForbidden {
					t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
				}
			})
		})

		testutil.When(t, "an admin approves it", func(t *testing.T) {
			rec := do(t, router, http.MethodPatch, "/verification/requests/"+submitted.ID, adminToken, map[string]string{"decision": "approve"})

			testutil.Then(t, "the profile card shows the verified badge", func(t *testing.T) {
				if rec.Code != http.StatusOK {
					t.Fatalf("resolve: expected 200, got %d: %s", rec.Code, rec.Body.String())
				}
				got := card(t, router, heidiID)
				if !got.IsVerified || got.VerificationStatus != "verified" {
					t.Fatalf("expected verified card, got %+v", got)
				}
			})

			testutil.Then(t, "a second resolution loses the race", func(t *testing.T) {
				rec := do(t, router, http.MethodPatch, "/verification/requests/"+submitted.ID, adminToken, map[string]string{"decision": "reject"})
				if rec.Code != http.StatusConflict {
					t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
				}
			})
		})
	})
}

func TestAuthenticationRequired(t *testing.T) {
	router := newTrustGraphRouter(t)

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/invites"},
		{http.MethodPost, "/invites/redeem"},
		{http.MethodPost, "/connections"},
		{http.MethodGet, "/connections"},
		{http.MethodGet, "/connections/pending"},
		{http.MethodPost, "/verification/requests"},
	} {
		rec := do(t, router, tc.method, tc.path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s without a token: expected 401, got %d", tc.method, tc.path, rec.Code)
		}
	}
}

func TestHealthz(t *testing.T) {
	router := newTrustGraphRouter(t)
	rec := do(t, router, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
