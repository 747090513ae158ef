package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "", time.Hour, false), mr
}

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	sm, mr := newManager(t)

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.Set("view:ctes", "abc")
	sess.AddFlash(FlashMessage{Kind: "success", Message: "Cache invalidado"})

	rr := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rr, sess))
	assert.True(t, mr.Exists("baker:session:"+sess.ID))

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "baker_session", cookies[0].Name)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.Owner())
	assert.Equal(t, "abc", loaded.Get("view:ctes"))
	flash := loaded.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "Cache invalidado", flash.Message)
	assert.Nil(t, loaded.PopFlash())
}

func TestSessionIgnoresForgedCookie(t *testing.T) {
	sm, _ := newManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: "../../etc"})

	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, "../../etc", sess.ID)
}

func TestSessionDestroy(t *testing.T) {
	ctx := context.Background()
	sm, mr := newManager(t)
	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), sess))

	sm.Destroy(sess)
	rr := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rr, sess))
	assert.False(t, mr.Exists("baker:session:"+sess.ID))
	assert.Equal(t, -1, rr.Result().Cookies()[0].MaxAge)
}

func TestCSRFTokens(t *testing.T) {
	ctx := context.Background()
	sm, _ := newManager(t)
	csrf := NewCSRFManager("secret")
	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	token, err := csrf.EnsureToken(ctx, sess)
	require.NoError(t, err)
	again, err := csrf.EnsureToken(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	require.NoError(t, csrf.VerifyToken(ctx, sess, token))
	require.ErrorIs(t, csrf.VerifyToken(ctx, sess, token+"x"), ErrCSRFTokenMismatch)
	require.ErrorIs(t, csrf.VerifyToken(ctx, sess, ""), ErrCSRFTokenMissing)

	_, err = csrf.EnsureToken(ctx, nil)
	require.ErrorIs(t, err, ErrSessionMissing)

	other := NewCSRFManager("other")
	require.ErrorIs(t, other.VerifyToken(ctx, sess, token), ErrCSRFTokenMismatch)
}
