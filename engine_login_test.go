package authkit

import (
	"errors"
	"testing"
	"time"
)

func TestLoginSuccess(t *testing.T) {
	env := newTestEnv(t)
	user := env.addUser(t, "ana@example.com", "correct-horse", false)
	ctx := testContext()

	result, err := env.engine.Login(ctx, "ana@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.TwoFactorRequired {
		t.Fatal("two-factor unexpectedly required")
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("expected token pair")
	}
	if result.User.ID != user.ID {
		t.Fatalf("user = %s, want %s", result.User.ID, user.ID)
	}

	claims, err := env.engine.ParseAccessToken(result.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UID != user.ID || claims.SID != result.SessionID {
		t.Fatalf("claims = %s/%s, want %s/%s", claims.UID, claims.SID, user.ID, result.SessionID)
	}
}

func TestLoginNormalizesEmail(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "ana@example.com", "correct-horse", false)

	if _, err := env.engine.Login(testContext(), "  ANA@Example.COM ", "correct-horse"); err != nil {
		t.Fatalf("login with unnormalized email: %v", err)
	}
}

func TestLoginUnknownEmailAndWrongPasswordIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "ana@example.com", "correct-horse", false)
	ctx := testContext()

	_, errUnknown := env.engine.Login(ctx, "nobody@example.com", "whatever-pass")
	_, errWrong := env.engine.Login(ctx, "ana@example.com", "wrong-password")

	if !errors.Is(errUnknown, ErrInvalidCredentials) {
		t.Fatalf("unknown email error = %v", errUnknown)
	}
	if !errors.Is(errWrong, ErrInvalidCredentials) {
		t.Fatalf("wrong password error = %v", errWrong)
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Fatalf("messages differ: %q vs %q", errUnknown, errWrong)
	}
}

func TestLoginLocksAfterMaxAttempts(t *testing.T) {
	env := newTestEnv(t)
	user := env.addUser(t, "ana@example.com", "correct-horse", false)
	ctx := testContext()

	max := env.engine.config.Lockout.MaxAttempts
	for i := 0; i < max; i++ {
		_, err := env.engine.Login(ctx, "ana@example.com", "wrong-password")
		// every failed attempt, including the one that trips the lock,
		// reports plain invalid credentials
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d error = %v", i+1, err)
		}
	}

	stored := env.users.get(user.ID)
	if stored.LockedUntil == nil || !stored.LockedUntil.After(time.Now()) {
		t.Fatal("expected a future lock deadline")
	}
	if stored.FailedLoginAttempts != 0 {
		t.Fatalf("attempts after lock = %d, want 0", stored.FailedLoginAttempts)
	}

	_, err := env.engine.Login(ctx, "ana@example.com", "correct-horse")
	le, ok := AsLockedError(err)
	if !ok {
		t.Fatalf("expected LockedError, got %v", err)
	}
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatal("LockedError should match ErrAccountLocked")
	}
	if le.RemainingMinutes() < 1 || le.RemainingMinutes() > 15 {
		t.Fatalf("remaining minutes = %d", le.RemainingMinutes())
	}
}

func TestLoginAfterLockExpiresStartsClean(t *testing.T) {
	env := newTestEnv(t)
	user := env.addUser(t, "ana@example.com", "correct-horse", false)
	ctx := testContext()

	past := time.Now().Add(-time.Minute)
	stored := env.users.get(user.ID)
	stored.LockedUntil = &past
	env.users.add(stored)

	if _, err := env.engine.Login(ctx, "ana@example.com", "correct-horse"); err != nil {
		t.Fatalf("login after lock expiry: %v", err)
	}
	if after := env.users.get(user.ID); after.LockedUntil != nil {
		t.Fatal("expected lock deadline cleared after successful login")
	}
}

func TestLoginSuccessResetsFailureCounter(t *testing.T) {
	env := newTestEnv(t)
	user := env.addUser(t, "ana@example.com", "correct-horse", false)
	ctx := testContext()

	for i := 0; i < 3; i++ {
		_, _ = env.engine.Login(ctx, "ana@example.com", "wrong-password")
	}
	if got := env.users.get(user.ID).FailedLoginAttempts; got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
	if env.users.get(user.ID).LastFailedLogin == nil {
		t.Fatal("expected a last-failed-login timestamp")
	}

	if _, err := env.engine.Login(ctx, "ana@example.com", "correct-horse"); err != nil {
		t.Fatalf("login: %v", err)
	}
	after := env.users.get(user.ID)
	if after.FailedLoginAttempts != 0 {
		t.Fatalf("attempts after success = %d, want 0", after.FailedLoginAttempts)
	}
	if after.LastFailedLogin != nil {
		t.Fatal("last-failed-login should be cleared on success")
	}
}

func TestLoginInactiveAccount(t *testing.T) {
	env := newTestEnv(t)
	user := env.addUser(t, "ana@example.com", "correct-horse", false)
	stored := env.users.get(user.ID)
	stored.Status = StatusInactive
	env.users.add(stored)

	_, err := env.engine.Login(testContext(), "ana@example.com", "correct-horse")
	if !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("error = %v, want ErrAccountInactive", err)
	}
}

func TestLoginLockedCheckedBeforeInactive(t *testing.T) {
	env := newTestEnv(t)
	user := env.addUser(t, "ana@example.com", "correct-horse", false)
	until := time.Now().Add(10 * time.Minute)
	stored := env.users.get(user.ID)
	stored.Status = StatusInactive
	stored.LockedUntil = &until
	env.users.add(stored)

	_, err := env.engine.Login(testContext(), "ana@example.com", "correct-horse")
	if _, ok := AsLockedError(err); !ok {
		t.Fatalf("error = %v, want LockedError", err)
	}
}

func TestLoginValidation(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.engine.Login(testContext(), "", "password"); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty email error = %v", err)
	}
	if _, err := env.engine.Login(testContext(), "a@b.com", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty password error = %v", err)
	}
}

func TestLoginRequiresTenant(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "ana@example.com", "correct-horse", false)

	_, err := env.engine.Login(t.Context(), "ana@example.com", "correct-horse")
	if !errors.Is(err, ErrTenantUnresolved) {
		t.Fatalf("error = %v, want ErrTenantUnresolved", err)
	}
}

func TestSanitizedUserOmitsSecrets(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "ana@example.com", "correct-horse", false)

	result, err := env.engine.Login(testContext(), "ana@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.User.Email != "ana@example.com" {
		t.Fatalf("email = %q", result.User.Email)
	}
	// SanitizedUser has no hash or lockout fields by construction; make sure
	// the projection carries the flags the frontend needs.
	if result.User.TwoFactorEnabled {
		t.Fatal("two-factor flag should be false")
	}
}
