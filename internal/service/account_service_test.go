package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"realblog/internal/config"
	"realblog/internal/mailer"
	"realblog/internal/models"
	"realblog/internal/repository"
	"realblog/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// outbox records every message handed to it.
type outbox struct {
	mu   sync.Mutex
	msgs []mailer.Message
	err  error
}

func (o *outbox) sender() mailer.Sender {
	return mailer.SenderFunc(func(_ context.Context, msg mailer.Message) error {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.err != nil {
			return o.err
		}
		o.msgs = append(o.msgs, msg)
		return nil
	})
}

func (o *outbox) last(t *testing.T) mailer.Message {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.msgs)
	return o.msgs[len(o.msgs)-1]
}

func newAccountService(db *gorm.DB, box *outbox) *AccountService {
	svc := NewAccountService(db, box.sender(), &config.Config{
		EmailFrom:             "no-reply@realblog.local",
		VerificationTTLHours:  24,
		PasswordResetTTLHours: 2,
	})
	n := 0
	svc.newCode = func() string {
		n++
		return "code" + string(rune('a'+n))
	}
	return svc
}

func pendingCode(t *testing.T, db *gorm.DB, model any, userID uint) string {
	t.Helper()
	var codes []string
	require.NoError(t, db.Model(model).Where("user_id = ?", userID).Pluck("code", &codes).Error)
	require.Len(t, codes, 1)
	return codes[0]
}

func TestEmailVerification(t *testing.T) {
	db := testutil.OpenDB(t)
	box := &outbox{}
	svc := newAccountService(db, box)
	ctx := context.Background()
	user := signup(t, db, "alice")

	require.NoError(t, svc.RequestEmailVerification(ctx, user.ID))
	first := pendingCode(t, db, &models.EmailVerification{}, user.ID)

	msg := box.last(t)
	assert.Equal(t, "verification", msg.Kind)
	assert.Equal(t, []string{"alice@example.com"}, msg.To)
	assert.Equal(t, "no-reply@realblog.local", msg.From)
	assert.Contains(t, msg.Body, first)
	assert.False(t, msg.FailSilently)

	// a second request replaces the pending code
	require.NoError(t, svc.RequestEmailVerification(ctx, user.ID))
	second := pendingCode(t, db, &models.EmailVerification{}, user.ID)
	assert.NotEqual(t, first, second)

	assertCode(t, svc.ConfirmEmailVerification(ctx, first), models.CodeValidation)
	require.NoError(t, svc.ConfirmEmailVerification(ctx, second))

	profile, err := repository.NewProfileRepository(db).GetByUserID(ctx, user.ID, 0)
	require.NoError(t, err)
	assert.True(t, profile.EmailVerified)

	// codes are single use
	assertCode(t, svc.ConfirmEmailVerification(ctx, second), models.CodeValidation)
	assertCode(t, svc.RequestEmailVerification(ctx, user.ID), models.CodeValidation)
}

func TestEmailVerification_SendFailureRollsBack(t *testing.T) {
	db := testutil.OpenDB(t)
	box := &outbox{err: errors.New("smtp down")}
	svc := newAccountService(db, box)
	user := signup(t, db, "bob")

	err := svc.RequestEmailVerification(context.Background(), user.ID)
	require.Error(t, err)

	var n int64
	require.NoError(t, db.Model(&models.EmailVerification{}).Where("user_id = ?", user.ID).Count(&n).Error)
	assert.Zero(t, n)
}

func TestEmailVerification_ExpiredCode(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := newAccountService(db, &outbox{})
	ctx := context.Background()
	user := signup(t, db, "carol")

	require.NoError(t, svc.RequestEmailVerification(ctx, user.ID))
	code := pendingCode(t, db, &models.EmailVerification{}, user.ID)

	svc.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	assertCode(t, svc.ConfirmEmailVerification(ctx, code), models.CodeValidation)

	var n int64
	require.NoError(t, db.Model(&models.EmailVerification{}).Where("code = ?", code).Count(&n).Error)
	assert.Zero(t, n, "expired code should be consumed")

	profile, err := repository.NewProfileRepository(db).GetByUserID(ctx, user.ID, 0)
	require.NoError(t, err)
	assert.False(t, profile.EmailVerified)
}

func TestPasswordReset(t *testing.T) {
	db := testutil.OpenDB(t)
	box := &outbox{}
	svc := newAccountService(db, box)
	ctx := context.Background()
	user := signup(t, db, "dave")

	assertCode(t, svc.RequestPasswordReset(ctx, PasswordResetRequest{Email: "nobody@example.com"}), models.CodeValidation)

	require.NoError(t, svc.RequestPasswordReset(ctx, PasswordResetRequest{Email: "DAVE@example.com"}))
	assert.Equal(t, "password_reset", box.last(t).Kind)
	code := pendingCode(t, db, &models.PasswordReset{}, user.ID)

	assertCode(t, svc.ConfirmPasswordReset(ctx, PasswordResetConfirmInput{Code: code, Password: "short"}), models.CodeValidation)
	require.NoError(t, svc.ConfirmPasswordReset(ctx, PasswordResetConfirmInput{Code: code, Password: "newpass123"}))

	stored, err := repository.NewUserRepository(db).GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("newpass123")))

	_, err = NewIdentityService(db, fixedIssuer("t")).Login(ctx, LoginInput{Login: "dave", Password: "newpass123"})
	assert.NoError(t, err)

	assertCode(t, svc.ConfirmPasswordReset(ctx, PasswordResetConfirmInput{Code: code, Password: "another123"}), models.CodeValidation)
}

func TestPasswordReset_ExpiredCode(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := newAccountService(db, &outbox{})
	ctx := context.Background()
	user := signup(t, db, "erin")

	require.NoError(t, svc.RequestPasswordReset(ctx, PasswordResetRequest{Email: "erin@example.com"}))
	code := pendingCode(t, db, &models.PasswordReset{}, user.ID)

	svc.now = func() time.Time { return time.Now().Add(3 * time.Hour) }
	assertCode(t, svc.ConfirmPasswordReset(ctx, PasswordResetConfirmInput{Code: code, Password: "newpass123"}), models.CodeValidation)

	_, err := NewIdentityService(db, fixedIssuer("t")).Login(ctx, LoginInput{Login: "erin", Password: "secret123"})
	assert.NoError(t, err, "old password must still work")
}
