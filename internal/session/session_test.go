package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/icard-hq/apiserver/internal/auth"
	"github.com/icard-hq/apiserver/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, time.Hour), mr
}

func TestStoreRoundTrip(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	sess := st.New()
	require.NotEmpty(t, sess.ID)
	sess.SignIn(42, types.RoleHR)
	sess.SetOTP(auth.PendingOTP{Email: "asha@x.com", Code: "482913", Purpose: "registration"})
	require.NoError(t, st.Save(ctx, sess))

	loaded, err := st.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, loaded.UserID)
	assert.Equal(t, types.RoleHR, loaded.Role)
	require.NotNil(t, loaded.OTP)
	assert.Equal(t, "482913", loaded.OTP.Code)
	assert.True(t, loaded.Authenticated())
}

func TestStoreGetMissing(t *testing.T) {
	st, _ := newTestStore(t)

	_, err := st.Get(context.Background(), "no-such-session")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = st.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreDelete(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	sess := st.New()
	sess.SignIn(7, types.RoleAdmin)
	require.NoError(t, st.Save(ctx, sess))

	require.NoError(t, st.Delete(ctx, sess.ID))
	_, err := st.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting again is a no-op.
	require.NoError(t, st.Delete(ctx, sess.ID))
}

func TestStoreTTL(t *testing.T) {
	st, mr := newTestStore(t)
	ctx := context.Background()

	sess := st.New()
	sess.SignIn(1, types.RoleEmployee)
	require.NoError(t, st.Save(ctx, sess))

	mr.FastForward(2 * time.Hour)
	_, err := st.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSignInRotatesSessionID(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	sess := st.New()
	sess.SetOTP(auth.PendingOTP{Email: "asha@x.com", Code: "482913"})
	require.NoError(t, st.Save(ctx, sess))
	before := sess.ID

	sess.SignIn(42, types.RoleAdmin)
	require.NotEqual(t, before, sess.ID)
	require.NoError(t, st.Save(ctx, sess))

	// The pre-authentication id no longer names any session.
	_, err := st.Get(ctx, before)
	assert.ErrorIs(t, err, ErrNotFound)

	loaded, err := st.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Authenticated())
	require.NotNil(t, loaded.OTP, "rotation must keep the session contents")
}

func TestNewOTPOverwritesPrevious(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	sess := st.New()
	sess.SetOTP(auth.PendingOTP{Email: "a@x.com", Code: "111111"})
	sess.SetOTP(auth.PendingOTP{Email: "b@x.com", Code: "222222"})
	require.NoError(t, st.Save(ctx, sess))

	loaded, err := st.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.OTP)
	assert.Equal(t, "b@x.com", loaded.OTP.Email)
	assert.Equal(t, "222222", loaded.OTP.Code)
	assert.False(t, loaded.Authenticated())
}
