package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/unicred/unicred-cli/internal/config"
	"github.com/unicred/unicred-cli/internal/session"
)

func testClient(t *testing.T, serverURL string, store *session.Store) *Client {
	t.Helper()
	cfg := &config.Config{ServerURL: serverURL}
	return NewClient(cfg, store, zerolog.Nop())
}

func memStore(t *testing.T) *session.Store {
	t.Helper()
	store, err := session.NewStore(nil)
	require.NoError(t, err)
	return store
}

func seedSession(t *testing.T, store *session.Store, accessToken string) {
	t.Helper()
	require.NoError(t, store.SetAuthData(session.AuthData{
		AccessToken:  accessToken,
		RefreshToken: "refresh-1",
		Profile:      &session.Profile{ID: "u1", Code: "S-100", UserName: "ada", Role: session.RoleStudent},
	}))
}

func writeEnvelope(t *testing.T, w http.ResponseWriter, data any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
	require.NoError(t, err)
}

// refreshHandler serves /v1/auth/refresh-token, counting hits and handing
// out newToken.
func refreshHandler(t *testing.T, hits *atomic.Int64, newToken string, delay time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if delay > 0 {
			time.Sleep(delay)
		}

		var req struct {
			RefreshToken string `json:"refreshToken"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.RefreshToken)
		require.Empty(t, r.Header.Get("Authorization"), "refresh is a public endpoint")

		writeEnvelope(t, w, map[string]string{
			"accessToken":  newToken,
			"refreshToken": "refresh-2",
		})
	}
}

func TestLoginBypassesTokenRequirement(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/Auth/login", r.URL.Path)
		require.Empty(t, r.Header.Get("Authorization"))
		require.NotEmpty(t, r.Header.Get("X-Request-Id"))

		var req struct {
			Email    string `json:"Email"`
			Password string `json:"Password"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "ada@uni.edu", req.Email)

		writeEnvelope(t, w, map[string]any{
			"accessToken":  "tok-1",
			"refreshToken": "ref-1",
			"userProfile": map[string]string{
				"id": "u1", "code": "S-100", "userName": "ada", "role": "STUDENT",
			},
		})
	}))
	defer srv.Close()

	store := memStore(t)
	c := testClient(t, srv.URL, store)

	profile, err := c.Login(context.Background(), "ada@uni.edu", "hunter2")
	require.NoError(t, err)
	require.Equal(t, session.RoleStudent, profile.Role)

	cur := store.Current()
	require.Equal(t, "tok-1", cur.AccessToken)
	require.Equal(t, "ref-1", cur.RefreshToken)
	require.Equal(t, "ada", cur.Profile.UserName)
}

func TestSendOTPWithoutSession(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/Auth/send-otp", r.URL.Path)
		require.Empty(t, r.Header.Get("Authorization"))
		writeEnvelope(t, w, nil)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, memStore(t))
	require.NoError(t, c.SendOTP(context.Background(), "ada@uni.edu"))
}

func TestProtectedEndpointRejectedWithoutToken(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, memStore(t))

	_, err := c.Attendance(context.Background(), "")
	require.ErrorIs(t, err, ErrNoToken)
	require.Zero(t, hits.Load(), "rejection must happen before the network")
}

func TestFreshTokenAttachedUnchanged(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	token := mintToken(t, now.Add(60*time.Minute))

	var refreshHits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/auth/refresh-token":
			refreshHits.Add(1)
			writeEnvelope(t, w, map[string]string{"accessToken": "unexpected"})
		case "/v1/attendance":
			require.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
			writeEnvelope(t, w, []CourseAttendance{})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	store := memStore(t)
	seedSession(t, store, token)
	c := testClient(t, srv.URL, store)
	c.now = func() time.Time { return now }

	_, err := c.Attendance(context.Background(), "")
	require.NoError(t, err)
	require.Zero(t, refreshHits.Load())
	require.Equal(t, token, store.Current().AccessToken)
}

func TestMalformedTokenAttachedAsIs(t *testing.T) {
	t.Parallel()

	var refreshHits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/auth/refresh-token":
			refreshHits.Add(1)
			writeEnvelope(t, w, nil)
		case "/v1/roadmap":
			require.Equal(t, "Bearer not-a-jwt", r.Header.Get("Authorization"))
			writeEnvelope(t, w, []RoadmapNode{})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	store := memStore(t)
	seedSession(t, store, "not-a-jwt")
	c := testClient(t, srv.URL, store)

	_, err := c.Roadmap(context.Background())
	require.NoError(t, err)
	require.Zero(t, refreshHits.Load(), "undecodable tokens are never refreshed")
}

func TestRefreshWindowBoundaries(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)

	cases := []struct {
		name        string
		remaining   time.Duration
		wantRefresh bool
	}{
		{"m0", 30 * time.Second, false},
		{"m1", 90 * time.Second, true},
		{"m7", 7*time.Minute + 30*time.Second, true},
		{"m8", 8 * time.Minute, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			oldToken := mintToken(t, now.Add(tc.remaining))
			newToken := mintToken(t, now.Add(60*time.Minute))

			var refreshHits atomic.Int64
			var seenAuth string
			refresh := refreshHandler(t, &refreshHits, newToken, 0)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/v1/auth/refresh-token":
					refresh(w, r)
				case "/v1/grades":
					seenAuth = r.Header.Get("Authorization")
					writeEnvelope(t, w, []CourseGrade{})
				default:
					http.NotFound(w, r)
				}
			}))
			defer srv.Close()

			store := memStore(t)
			seedSession(t, store, oldToken)
			c := testClient(t, srv.URL, store)
			c.now = func() time.Time { return now }

			_, err := c.Grades(context.Background(), "")
			require.NoError(t, err)

			if tc.wantRefresh {
				require.Equal(t, int64(1), refreshHits.Load())
				require.Equal(t, "Bearer "+newToken, seenAuth)
				require.Equal(t, newToken, store.Current().AccessToken)
				require.Equal(t, "refresh-2", store.Current().RefreshToken)
			} else {
				require.Zero(t, refreshHits.Load())
				require.Equal(t, "Bearer "+oldToken, seenAuth)
				require.Equal(t, oldToken, store.Current().AccessToken)
			}
		})
	}
}

func TestRefreshFailureDegradesToStaleToken(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	oldToken := mintToken(t, now.Add(5*time.Minute))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/auth/refresh-token":
			http.Error(w, "refresh token revoked", http.StatusUnauthorized)
		case "/v1/timetable":
			require.Equal(t, "Bearer "+oldToken, r.Header.Get("Authorization"))
			writeEnvelope(t, w, []TimetableSlot{})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	store := memStore(t)
	seedSession(t, store, oldToken)
	c := testClient(t, srv.URL, store)
	c.now = func() time.Time { return now }

	// The request proceeds with the stale token; no error escapes the
	// pipeline and the session is untouched.
	_, err := c.Timetable(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, oldToken, store.Current().AccessToken)
	require.Equal(t, "refresh-1", store.Current().RefreshToken)
}

func TestRefreshDeduplicatedAcrossConcurrentRequests(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	oldToken := mintToken(t, now.Add(5*time.Minute))
	newToken := mintToken(t, now.Add(60*time.Minute))

	var refreshHits atomic.Int64
	var staleAuth atomic.Int64
	refresh := refreshHandler(t, &refreshHits, newToken, 200*time.Millisecond)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/auth/refresh-token":
			refresh(w, r)
		case "/v1/attendance":
			if r.Header.Get("Authorization") != "Bearer "+newToken {
				staleAuth.Add(1)
			}
			writeEnvelope(t, w, []CourseAttendance{})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	store := memStore(t)
	seedSession(t, store, oldToken)
	c := testClient(t, srv.URL, store)
	c.now = func() time.Time { return now }

	const concurrent = 20

	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(concurrent)
	for i := 0; i < concurrent; i++ {
		go func() {
			defer wg.Done()
			<-start
			_, err := c.Attendance(context.Background(), "")
			require.NoError(t, err)
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, int64(1), refreshHits.Load(), "concurrent requests must share one refresh call")
	require.Zero(t, staleAuth.Load(), "every request must carry the refreshed token")
	require.Equal(t, newToken, store.Current().AccessToken)
}

// TestRefreshEndToEnd walks the full scenario: near-expiry token, proactive
// refresh, refreshed token on the triggering request, and no further refresh
// for subsequent calls.
func TestRefreshEndToEnd(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	oldToken := mintToken(t, now.Add(5*time.Minute))
	newToken := mintToken(t, now.Add(60*time.Minute))

	var refreshHits atomic.Int64
	var auths []string
	refresh := refreshHandler(t, &refreshHits, newToken, 0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/auth/refresh-token":
			refresh(w, r)
		case "/v1/credentials":
			auths = append(auths, r.Header.Get("Authorization"))
			writeEnvelope(t, w, []Credential{{ID: "c1", Type: "DIPLOMA", Title: "BSc", JWT: "x.y.z"}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	store := memStore(t)
	seedSession(t, store, oldToken)
	c := testClient(t, srv.URL, store)
	c.now = func() time.Time { return now }

	creds, err := c.Credentials(context.Background())
	require.NoError(t, err)
	require.Len(t, creds, 1)

	_, err = c.Credentials(context.Background())
	require.NoError(t, err)

	require.Equal(t, int64(1), refreshHits.Load())
	require.Equal(t, []string{"Bearer " + newToken, "Bearer " + newToken}, auths)
	require.Equal(t, newToken, store.Current().AccessToken)
}

func TestEnvelopeRejectionSurfacesMessage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "term not found"})
	}))
	defer srv.Close()

	store := memStore(t)
	seedSession(t, store, mintToken(t, time.Now().Add(time.Hour)))
	c := testClient(t, srv.URL, store)

	_, err := c.Grades(context.Background(), "1899-WS")
	require.ErrorContains(t, err, "term not found")
}

func TestUnauthorizedStatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	}))
	defer srv.Close()

	store := memStore(t)
	seedSession(t, store, mintToken(t, time.Now().Add(time.Hour)))
	c := testClient(t, srv.URL, store)

	_, err := c.Roadmap(context.Background())
	require.True(t, IsUnauthorized(err))

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusUnauthorized, statusErr.Code)
}

func TestLogoutClearsSession(t *testing.T) {
	t.Parallel()

	store := memStore(t)
	seedSession(t, store, mintToken(t, time.Now().Add(time.Hour)))
	c := testClient(t, "http://unused.invalid", store)

	require.NoError(t, c.Logout())
	require.False(t, store.Current().Authenticated())
	require.NoError(t, c.Logout(), "repeat logout is a no-op")
}

func TestVerifyCredentialAndPeek(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/verify", r.URL.Path)
		var req struct {
			Credential string `json:"credential"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Credential)
		writeEnvelope(t, w, VerifyResult{Valid: true, Issuer: "unicred", Subject: "u1"})
	}))
	defer srv.Close()

	store := memStore(t)
	seedSession(t, store, mintToken(t, time.Now().Add(time.Hour)))
	c := testClient(t, srv.URL, store)

	credential := mintToken(t, time.Now().Add(24*time.Hour))
	result, err := c.VerifyCredential(context.Background(), credential)
	require.NoError(t, err)
	require.True(t, result.Valid)

	claims, err := PeekCredentialUnverified(credential)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.Subject)

	_, err = PeekCredentialUnverified("garbage")
	require.Error(t, err)
}
