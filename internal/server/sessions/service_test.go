package sessions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lectoria/identity/internal/common"
	"github.com/lectoria/identity/internal/server/auth"
	"github.com/lectoria/identity/internal/server/identity"
	"github.com/lectoria/identity/internal/server/kv"
	"github.com/lectoria/identity/internal/server/secrets"
)

func fastParams() secrets.Params {
	return secrets.Params{
		MemoryKiB:   8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newTestService() *Service {
	store := identity.NewStore(kv.NewMemoryStore())
	hasher := secrets.New(fastParams())
	issuer := auth.NewIssuer([]byte("test-secret"), time.Minute, time.Hour)
	return NewService(store, hasher, hasher, issuer)
}

func register(t *testing.T, s *Service, username, email, password string) *RegisteredProfile {
	t.Helper()
	p, err := s.Register(context.Background(), RegisterRequest{
		Name:     "Alice",
		UserName: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	return p
}

func TestRegister_ReturnsMinimalProfile(t *testing.T) {
	t.Parallel()

	s := newTestService()
	p := register(t, s, "alice", "alice@x.com", "secret-1")

	if p.Name != "Alice" || p.Email != "alice@x.com" {
		t.Fatalf("unexpected profile: %+v", p)
	}
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()

	s := newTestService()
	ctx := context.Background()

	tests := []struct {
		name string
		req  RegisterRequest
	}{
		{"empty name", RegisterRequest{UserName: "a", Email: "a@x.com", Password: "long-enough"}},
		{"empty username", RegisterRequest{Name: "A", Email: "a@x.com", Password: "long-enough"}},
		{"username with space", RegisterRequest{Name: "A", UserName: "a b", Email: "a@x.com", Password: "long-enough"}},
		{"bad email", RegisterRequest{Name: "A", UserName: "a", Email: "not-an-email", Password: "long-enough"}},
		{"short password", RegisterRequest{Name: "A", UserName: "a", Email: "a@x.com", Password: "short"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Register(ctx, tc.req)
			if !errors.Is(err, common.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestRegister_DuplicateEmailDifferentUsername(t *testing.T) {
	t.Parallel()

	s := newTestService()
	register(t, s, "alice", "alice@x.com", "secret-1")

	_, err := s.Register(context.Background(), RegisterRequest{
		Name: "Eve", UserName: "eve", Email: "alice@x.com", Password: "secret-2",
	})
	if !errors.Is(err, common.ErrDuplicateIdentity) {
		t.Fatalf("expected ErrDuplicateIdentity, got %v", err)
	}
}

func TestLogin_Success(t *testing.T) {
	t.Parallel()

	s := newTestService()
	register(t, s, "alice", "alice@x.com", "secret-1")

	pair, err := s.Login(context.Background(), "alice", "secret-1")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected both tokens, got %+v", pair)
	}
}

func TestLogin_UndifferentiatedFailures(t *testing.T) {
	t.Parallel()

	s := newTestService()
	register(t, s, "alice", "alice@x.com", "secret-1")
	ctx := context.Background()

	_, errUnknown := s.Login(ctx, "nobody", "secret-1")
	_, errWrongPw := s.Login(ctx, "alice", "wrong-password")

	if !errors.Is(errUnknown, common.ErrInvalidCredentials) {
		t.Fatalf("unknown user: expected ErrInvalidCredentials, got %v", errUnknown)
	}
	if !errors.Is(errWrongPw, common.ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", errWrongPw)
	}
	// both cases must be the same error so responses leak nothing
	if !errors.Is(errUnknown, errWrongPw) && errUnknown.Error() != errWrongPw.Error() {
		t.Fatalf("failures must be indistinguishable: %v vs %v", errUnknown, errWrongPw)
	}
}

func TestLogin_ReplacesPriorSession(t *testing.T) {
	t.Parallel()

	s := newTestService()
	register(t, s, "alice", "alice@x.com", "secret-1")
	ctx := context.Background()

	first, err := s.Login(ctx, "alice", "secret-1")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if _, err := s.Login(ctx, "alice", "secret-1"); err != nil {
		t.Fatalf("second Login error: %v", err)
	}

	userID := subjectOf(t, first.AccessToken)
	if _, err := s.Refresh(ctx, userID, first.RefreshToken); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("first session's refresh token must be dead after re-login, got %v", err)
	}
}

func subjectOf(t *testing.T, accessToken string) string {
	t.Helper()
	claims, err := auth.NewIssuer([]byte("test-secret"), time.Minute, time.Hour).Validate(accessToken)
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	return claims.Subject
}

func TestRefresh_RotatesAndInvalidatesOldToken(t *testing.T) {
	t.Parallel()

	s := newTestService()
	register(t, s, "alice", "alice@x.com", "secret-1")
	ctx := context.Background()

	pair, err := s.Login(ctx, "alice", "secret-1")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	userID := subjectOf(t, pair.AccessToken)

	rotated, err := s.Refresh(ctx, userID, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatalf("rotation must mint a new refresh token")
	}

	// the old token no longer validates against the stored record
	if _, err := s.Refresh(ctx, userID, pair.RefreshToken); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for rotated-away token, got %v", err)
	}

	// the new one still does
	if _, err := s.Refresh(ctx, userID, rotated.RefreshToken); err != nil {
		t.Fatalf("newest token must refresh, got %v", err)
	}
}

func TestRefresh_FailedVerificationLeavesRecordIntact(t *testing.T) {
	t.Parallel()

	s := newTestService()
	register(t, s, "alice", "alice@x.com", "secret-1")
	ctx := context.Background()

	pair, err := s.Login(ctx, "alice", "secret-1")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	userID := subjectOf(t, pair.AccessToken)

	if _, err := s.Refresh(ctx, userID, "forged-token"); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	// session stays ACTIVE with its prior record
	if _, err := s.Refresh(ctx, userID, pair.RefreshToken); err != nil {
		t.Fatalf("valid token must still work after a failed attempt, got %v", err)
	}
}

func TestRefresh_NoSession(t *testing.T) {
	t.Parallel()

	s := newTestService()
	register(t, s, "alice", "alice@x.com", "secret-1")

	_, err := s.Refresh(context.Background(), "no-such-user", "whatever")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLogout_Finality(t *testing.T) {
	t.Parallel()

	s := newTestService()
	register(t, s, "alice", "alice@x.com", "secret-1")
	ctx := context.Background()

	pair, err := s.Login(ctx, "alice", "secret-1")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	userID := subjectOf(t, pair.AccessToken)

	if err := s.Logout(ctx, userID, pair.RefreshToken); err != nil {
		t.Fatalf("Logout error: %v", err)
	}

	if _, err := s.Refresh(ctx, userID, pair.RefreshToken); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after logout, got %v", err)
	}
}

func TestLogout_BadTokenKeepsSession(t *testing.T) {
	t.Parallel()

	s := newTestService()
	register(t, s, "alice", "alice@x.com", "secret-1")
	ctx := context.Background()

	pair, err := s.Login(ctx, "alice", "secret-1")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	userID := subjectOf(t, pair.AccessToken)

	if err := s.Logout(ctx, userID, "forged"); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	// record left intact
	if _, err := s.Refresh(ctx, userID, pair.RefreshToken); err != nil {
		t.Fatalf("session must survive a failed logout, got %v", err)
	}
}

func TestProfileAndListings(t *testing.T) {
	t.Parallel()

	s := newTestService()
	register(t, s, "alice", "alice@x.com", "secret-1")
	ctx := context.Background()

	pair, err := s.Login(ctx, "alice", "secret-1")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	userID := subjectOf(t, pair.AccessToken)

	profile, err := s.Profile(ctx, userID)
	if err != nil {
		t.Fatalf("Profile error: %v", err)
	}
	if profile.UserName != "alice" || profile.Role != identity.RoleInstructor {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	if _, err := s.Profile(ctx, "ghost"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	instructors, err := s.ListInstructors(ctx)
	if err != nil {
		t.Fatalf("ListInstructors error: %v", err)
	}
	if len(instructors) != 1 || instructors[0].UserName != "alice" {
		t.Fatalf("unexpected instructors: %+v", instructors)
	}

	tokens, err := s.ListRefreshTokens(ctx)
	if err != nil {
		t.Fatalf("ListRefreshTokens error: %v", err)
	}
	if len(tokens) != 1 || tokens[0].UserID != userID {
		t.Fatalf("unexpected tokens: %+v", tokens)
	}
}

func TestRegister_ConcurrentCollisionExactlyOneWins(t *testing.T) {
	t.Parallel()

	s := newTestService()
	ctx := context.Background()

	const racers = 6
	var wg sync.WaitGroup
	results := make(chan error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Register(ctx, RegisterRequest{
				Name: "Alice", UserName: "alice", Email: "alice@x.com", Password: "secret-1",
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, common.ErrDuplicateIdentity):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("exactly one registration must win, got %d", wins)
	}
}

func TestRefresh_ConcurrentSameTokenSingleSurvivor(t *testing.T) {
	t.Parallel()

	s := newTestService()
	register(t, s, "alice", "alice@x.com", "secret-1")
	ctx := context.Background()

	pair, err := s.Login(ctx, "alice", "secret-1")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	userID := subjectOf(t, pair.AccessToken)

	const racers = 8
	var wg sync.WaitGroup
	rotations := make(chan *TokenPair, racers)
	failures := make(chan error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rotated, err := s.Refresh(ctx, userID, pair.RefreshToken)
			if err != nil {
				failures <- err
				return
			}
			rotations <- rotated
		}()
	}
	wg.Wait()
	close(rotations)
	close(failures)

	// losers must observe a conflict or find the token already rotated away,
	// never a silent success
	for err := range failures {
		if !errors.Is(err, common.ErrInvalidToken) && !errors.Is(err, common.ErrConflict) {
			t.Fatalf("loser must see ErrInvalidToken or ErrConflict, got %v", err)
		}
	}

	var winners []*TokenPair
	for rotated := range rotations {
		winners = append(winners, rotated)
	}
	if len(winners) == 0 {
		t.Fatalf("at least one refresh must win")
	}

	// whatever the interleaving, only the token of the last committed
	// rotation matches the stored record
	record, err := s.store.GetRefreshToken(ctx, userID)
	if err != nil {
		t.Fatalf("GetRefreshToken error: %v", err)
	}
	live := 0
	for _, w := range winners {
		if s.tokenHasher.Verify(w.RefreshToken, record.TokenHash) {
			live++
		}
	}
	if live != 1 {
		t.Fatalf("exactly one rotated refresh token must remain valid, got %d of %d", live, len(winners))
	}

	// and the token everyone presented is dead
	if _, err := s.Refresh(ctx, userID, pair.RefreshToken); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("presented token must be invalid after the race, got %v", err)
	}
}

// End-to-end walk through the lifecycle: register, duplicate register, login,
// rotate, stale rotate, logout, refresh after logout.
func TestLifecycleScenario(t *testing.T) {
	t.Parallel()

	s := newTestService()
	ctx := context.Background()

	p := register(t, s, "alice", "alice@x.com", "secret-1")
	if p.Email != "alice@x.com" {
		t.Fatalf("unexpected registration ack: %+v", p)
	}

	_, err := s.Register(ctx, RegisterRequest{
		Name: "Eve", UserName: "mallory", Email: "alice@x.com", Password: "secret-2",
	})
	if !errors.Is(err, common.ErrDuplicateIdentity) {
		t.Fatalf("expected ErrDuplicateIdentity, got %v", err)
	}

	pair, err := s.Login(ctx, "alice", "secret-1")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	userID := subjectOf(t, pair.AccessToken)

	rotated, err := s.Refresh(ctx, userID, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}

	if _, err := s.Refresh(ctx, userID, pair.RefreshToken); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("original token must fail after rotation, got %v", err)
	}

	if err := s.Logout(ctx, userID, rotated.RefreshToken); err != nil {
		t.Fatalf("Logout error: %v", err)
	}

	if _, err := s.Refresh(ctx, userID, rotated.RefreshToken); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after logout, got %v", err)
	}
}
