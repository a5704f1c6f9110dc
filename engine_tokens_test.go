package authcore

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestRefreshRotatesAndDetectsReuse(t *testing.T) {
	engine, _ := newTestEngine(t)
	result := mustRegister(t, engine, "rot@example.com")
	original := result.Tokens.RefreshToken

	rotated, err := engine.Refresh(context.Background(), original)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.RefreshToken == original {
		t.Fatal("rotation should issue a new refresh token")
	}
	if userID, err := engine.VerifyAccessToken(rotated.AccessToken); err != nil || userID != result.User.ID {
		t.Fatalf("verify rotated access token: id=%q err=%v", userID, err)
	}

	// the consumed token must be dead
	if _, err := engine.Refresh(context.Background(), original); !errors.Is(err, ErrTokenReuse) {
		t.Fatalf("err = %v, want ErrTokenReuse", err)
	}

	snap := engine.Metrics()
	if snap.Refreshes != 1 || snap.ReuseDetections != 1 {
		t.Fatalf("refreshes=%d reuse=%d, want 1 and 1", snap.Refreshes, snap.ReuseDetections)
	}
}

func TestRefreshConcurrentSingleWinner(t *testing.T) {
	engine, _ := newTestEngine(t)
	result := mustRegister(t, engine, "race@example.com")
	refreshToken := result.Tokens.RefreshToken

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = engine.Refresh(context.Background(), refreshToken)
		}(i)
	}
	close(start)
	wg.Wait()

	winners := 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, ErrTokenReuse):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
}

func TestRefreshRejectsNonRefreshTokens(t *testing.T) {
	engine, _ := newTestEngine(t)
	result := mustRegister(t, engine, "typ@example.com")

	if _, err := engine.Refresh(context.Background(), result.Tokens.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("access token as refresh: err = %v, want ErrTokenInvalid", err)
	}
	if _, err := engine.Refresh(context.Background(), "not.a.jwt"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("garbage token: err = %v, want ErrTokenInvalid", err)
	}
}

func TestLogoutInvalidatesRefreshToken(t *testing.T) {
	engine, _ := newTestEngine(t)
	result := mustRegister(t, engine, "out@example.com")
	refreshToken := result.Tokens.RefreshToken

	if err := engine.Logout(context.Background(), refreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := engine.Refresh(context.Background(), refreshToken); !errors.Is(err, ErrTokenReuse) {
		t.Fatalf("refresh after logout: err = %v, want ErrTokenReuse", err)
	}

	// logout is idempotent
	if err := engine.Logout(context.Background(), refreshToken); err != nil {
		t.Fatalf("second logout: %v", err)
	}

	// access tokens stay valid until expiry
	if _, err := engine.VerifyAccessToken(result.Tokens.AccessToken); err != nil {
		t.Fatalf("access token after logout: %v", err)
	}
}

func TestInvalidateUserSessionsRevokesAllRefreshTokens(t *testing.T) {
	engine, _ := newTestEngine(t)
	result := mustRegister(t, engine, "all@example.com")

	second, err := engine.Login(context.Background(), LoginInput{
		Email:    "all@example.com",
		Password: "Sup3rSecret",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := engine.InvalidateUserSessions(context.Background(), result.User.ID); err != nil {
		t.Fatalf("invalidate sessions: %v", err)
	}

	for name, refreshToken := range map[string]string{
		"register pair": result.Tokens.RefreshToken,
		"login pair":    second.Tokens.RefreshToken,
	} {
		if _, err := engine.Refresh(context.Background(), refreshToken); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("%s: err = %v, want ErrTokenInvalid", name, err)
		}
	}

	// a fresh login works and its tokens rotate normally
	third, err := engine.Login(context.Background(), LoginInput{
		Email:    "all@example.com",
		Password: "Sup3rSecret",
	})
	if err != nil {
		t.Fatalf("login after invalidation: %v", err)
	}
	if _, err := engine.Refresh(context.Background(), third.Tokens.RefreshToken); err != nil {
		t.Fatalf("refresh new session: %v", err)
	}
}
