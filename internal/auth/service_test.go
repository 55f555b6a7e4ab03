package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"royaltyhub.org/internal/docstore"
)

type testEnv struct {
	docs  *docstore.InMemory
	svc   *Service
	codec *Codec
	now   time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{docs: docstore.NewInMemory(), now: time.Unix(1_700_000_000, 0).UTC()}
	clock := func() time.Time { return env.now }
	codec, err := NewCodec(testSecret, WithTokenClock(clock))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	store := NewDocStore(env.docs)
	env.codec = codec
	env.svc = NewService(store, store, codec,
		WithHasher(NewBcryptHasher(bcrypt.MinCost)),
		WithClock(clock),
	)
	return env
}

func (e *testEnv) signUp(t *testing.T, in NewUser) User {
	t.Helper()
	u, err := e.svc.SignUp(context.Background(), in)
	if err != nil {
		t.Fatalf("SignUp(%s): %v", in.Email, err)
	}
	return u
}

func TestSignInUnknownEmail(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.svc.SignIn(context.Background(), "ghost@example.com", "x")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if res.Success || res.Message != "Authentication failed. User not found." {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestSignInRejections(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, NewUser{Email: "active@example.com", Password: "pw", ClientID: "C"})
	env.signUp(t, NewUser{Email: "inactive@example.com", Password: "pw", ClientID: "C", Status: StatusInactive})

	cases := []struct {
		email, password, message string
	}{
		{"active@example.com", "wrong", "Authentication failed. Password incorrect."},
		{"inactive@example.com", "pw", "Authentication failed. Access restricted."},
		{"inactive@example.com", "wrong", "Authentication failed. Password incorrect."},
	}
	for _, tc := range cases {
		res, err := env.svc.SignIn(context.Background(), tc.email, tc.password)
		if err != nil {
			t.Fatalf("SignIn(%s): %v", tc.email, err)
		}
		if res.Success || res.Token != "" || res.Message != tc.message {
			t.Fatalf("SignIn(%s, %s) = %+v, want message %q", tc.email, tc.password, res, tc.message)
		}
	}
}

func TestSignInIssuesClassifiedToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.signUp(t, NewUser{Email: "Client@Example.com ", Password: "pw", ClientID: "C"})
	if user.Password != "" {
		t.Fatal("SignUp leaked the password hash")
	}

	res, err := env.svc.SignIn(ctx, "client@example.com", "pw")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if !res.Success || res.UserType != "client" || res.Token == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	id, err := env.codec.Verify(res.Token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.UserID != user.ID || id.Role != RoleClient || id.ClientID != "C" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestSignInLoadsPayeeContracts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, c := range []docstore.Document{
		{"id": "345", "clientId": "C", "payeeId": "x"},
		{"id": "678", "clientId": "C", "payeeId": "x"},
		{"id": "999", "clientId": "C", "payeeId": "y"},
		{"id": "111", "clientId": "D", "payeeId": "x"},
	} {
		if _, err := env.docs.Create(ctx, ContractsCollection, c); err != nil {
			t.Fatalf("Create contract: %v", err)
		}
	}
	env.signUp(t, NewUser{Email: "payee@example.com", Password: "pw", ClientID: "C", PayeeID: "x", Internal: true})

	res, err := env.svc.SignIn(ctx, "payee@example.com", "pw")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if res.UserType != "payee" {
		t.Fatalf("userType = %q, want payee", res.UserType)
	}
	id, err := env.codec.Verify(res.Token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(id.ContractIDs) != 2 || id.ContractIDs[0] != "345" || id.ContractIDs[1] != "678" {
		t.Fatalf("contract ids = %v, want [345 678]", id.ContractIDs)
	}
}

func TestTestToken(t *testing.T) {
	env := newTestEnv(t)
	if res := env.svc.TestToken(""); res.Success {
		t.Fatal("empty token reported valid")
	}
	if res := env.svc.TestToken("garbage"); res.Success {
		t.Fatal("garbage token reported valid")
	}
	token, _, err := env.codec.Issue(Identity{UserID: "u1", Role: RoleParent, ParentID: "P"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	res := env.svc.TestToken(token)
	if !res.Success || res.UserType != "parent" || res.Token != token {
		t.Fatalf("unexpected result: %+v", res)
	}
	env.now = env.now.Add(DefaultTokenTTL)
	if res := env.svc.TestToken(token); res.Success {
		t.Fatal("expired token reported valid")
	}
}

func TestSignUpValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.svc.SignUp(ctx, NewUser{Email: "", Password: "pw"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("missing email: %v", err)
	}
	if _, err := env.svc.SignUp(ctx, NewUser{Email: "a@example.com"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("missing password: %v", err)
	}
	env.signUp(t, NewUser{Email: "a@example.com", Password: "pw"})
	if _, err := env.svc.SignUp(ctx, NewUser{Email: "A@example.com", Password: "pw"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate email: %v", err)
	}
}

func TestPasswordReset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.signUp(t, NewUser{Email: "reset@example.com", Password: "old", ClientID: "C"})

	if _, err := env.svc.ForgotPassword(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown email: %v", err)
	}
	token, err := env.svc.ForgotPassword(ctx, "reset@example.com")
	if err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	stored, err := NewDocStore(env.docs).FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if stored.ForgotPasswordToken != token || stored.ForgotPasswordDate == nil {
		t.Fatalf("reset fields not set together: %+v", stored)
	}

	if err := env.svc.SetNewPassword(ctx, "bogus", "new"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("bogus token: %v", err)
	}
	env.now = env.now.Add(30 * time.Minute)
	if err := env.svc.SetNewPassword(ctx, token, "new"); err != nil {
		t.Fatalf("SetNewPassword: %v", err)
	}
	stored, err = NewDocStore(env.docs).FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if stored.ForgotPasswordToken != "" || stored.ForgotPasswordDate != nil {
		t.Fatalf("reset fields not cleared: %+v", stored)
	}
	if res, _ := env.svc.SignIn(ctx, "reset@example.com", "new"); !res.Success {
		t.Fatalf("sign in with new password failed: %+v", res)
	}
	if err := env.svc.SetNewPassword(ctx, token, "again"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("reused token: %v", err)
	}
}

func TestPasswordResetExpires(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signUp(t, NewUser{Email: "late@example.com", Password: "old"})
	token, err := env.svc.ForgotPassword(ctx, "late@example.com")
	if err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	env.now = env.now.Add(DefaultResetTTL + time.Second)
	if err := env.svc.SetNewPassword(ctx, token, "new"); !errors.Is(err, ErrResetExpired) {
		t.Fatalf("expected ErrResetExpired, got %v", err)
	}
	if res, _ := env.svc.SignIn(ctx, "late@example.com", "old"); !res.Success {
		t.Fatal("old password should still work after a failed reset")
	}
}

func TestDeleteUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.signUp(t, NewUser{Email: "gone@example.com", Password: "pw"})
	if err := env.svc.DeleteUser(ctx, user.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if err := env.svc.DeleteUser(ctx, user.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := env.svc.User(ctx, user.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("User after delete: %v", err)
	}
}

type failingUsers struct{ UserStore }

func (failingUsers) FindByEmail(context.Context, string) (User, error) {
	return User{}, errors.New("connection reset")
}

func TestSignInStoreFailureIsError(t *testing.T) {
	codec, err := NewCodec(testSecret)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	svc := NewService(failingUsers{}, nil, codec)
	if _, err := svc.SignIn(context.Background(), "a@example.com", "pw"); err == nil {
		t.Fatal("expected store failure to surface as error")
	}
}
