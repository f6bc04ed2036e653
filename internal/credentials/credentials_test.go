package credentials_test

import (
	"errors"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/devilmonastery/storefront/internal/client"
	"github.com/devilmonastery/storefront/internal/credentials"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

// storeContract runs the same checks against every TokenStore
func storeContract(t *testing.T, store client.TokenStore) {
	t.Helper()

	_, err := store.GetToken()
	require.ErrorIs(t, err, client.ErrNoToken, "empty store")

	require.NoError(t, store.SaveToken("first"))
	token, err := store.GetToken()
	require.NoError(t, err)
	assert.Equal(t, "first", token)

	require.NoError(t, store.SaveToken("second"))
	token, err = store.GetToken()
	require.NoError(t, err)
	assert.Equal(t, "second", token)

	require.NoError(t, store.ClearToken())
	_, err = store.GetToken()
	assert.ErrorIs(t, err, client.ErrNoToken)

	// clearing twice is not an error
	require.NoError(t, store.ClearToken())
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, client.NewMemoryStore(""))
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials-test.json")
	storeContract(t, credentials.NewFileStore(path))
}

func TestFileStoreRecordsExpiry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store := credentials.NewFileStore(path)

	exp := time.Now().Add(15 * time.Minute).Truncate(time.Second)
	token := signedToken(t, jwt.MapClaims{
		"sub":   "42",
		"email": "shopper@example.com",
		"exp":   exp.Unix(),
	})
	require.NoError(t, store.SaveToken(token))

	creds, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, token, creds.AccessToken)
	assert.Equal(t, "shopper@example.com", creds.Email)
	assert.True(t, exp.Equal(creds.ExpiresAt), "ExpiresAt = %v, want %v", creds.ExpiresAt, exp)
	assert.False(t, creds.IsExpired())
	assert.False(t, creds.NeedsRefresh())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()
	storeContract(t, credentials.NewKeyringStore("test"))
}

func TestKeyringStoreIsolatesContexts(t *testing.T) {
	keyring.MockInit()
	prod := credentials.NewKeyringStore("prod")
	dev := credentials.NewKeyringStore("dev")

	require.NoError(t, prod.SaveToken("prod-token"))
	_, err := dev.GetToken()
	assert.ErrorIs(t, err, client.ErrNoToken)
}

func TestKeyringStoreBackendError(t *testing.T) {
	keyring.MockInitWithError(errors.New("keychain locked"))
	t.Cleanup(keyring.MockInit)

	store := credentials.NewKeyringStore("test")
	_, err := store.GetToken()
	require.Error(t, err)
	assert.NotErrorIs(t, err, client.ErrNoToken)
	assert.Error(t, store.SaveToken("x"))
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func TestRedisStore(t *testing.T) {
	_, rdb := newRedis(t)
	storeContract(t, credentials.NewRedisStore(rdb, "", 0))
}

func TestRedisStoreSharedAcrossClients(t *testing.T) {
	mr, rdb := newRedis(t)
	other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer other.Close()

	a := credentials.NewRedisStore(rdb, "shop:token", time.Hour)
	b := credentials.NewRedisStore(other, "shop:token", time.Hour)

	require.NoError(t, a.SaveToken("shared"))
	token, err := b.GetToken()
	require.NoError(t, err)
	assert.Equal(t, "shared", token)

	mr.FastForward(2 * time.Hour)
	_, err = b.GetToken()
	assert.ErrorIs(t, err, client.ErrNoToken)
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr, rdb := newRedis(t)
	mr.Close()

	store := credentials.NewRedisStore(rdb, "", 0)
	_, err := store.GetToken()
	require.Error(t, err)
	assert.NotErrorIs(t, err, client.ErrNoToken)
}

func TestInspectToken(t *testing.T) {
	exp := time.Now().Add(-time.Minute).Truncate(time.Second)
	token := signedToken(t, jwt.MapClaims{
		"sub":      "7",
		"username": "admin@example.com",
		"role":     "admin",
		"exp":      exp.Unix(),
	})

	info, err := credentials.InspectToken(token)
	require.NoError(t, err)
	assert.Equal(t, "7", info.Subject)
	assert.Equal(t, "admin@example.com", info.Email)
	assert.Equal(t, "admin", info.Role)
	assert.True(t, info.Expired())

	got, err := credentials.TokenExpiry(token)
	require.NoError(t, err)
	assert.True(t, exp.Equal(got))
}

func TestInspectTokenErrors(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "empty", token: "", wantErr: credentials.ErrInvalidToken},
		{name: "opaque", token: "not-a-jwt", wantErr: credentials.ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := credentials.InspectToken(tt.token)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("InspectToken(%q) error = %v, want %v", tt.token, err, tt.wantErr)
			}
		})
	}

	noExp := signedToken(t, jwt.MapClaims{"sub": "1"})
	if _, err := credentials.TokenExpiry(noExp); !errors.Is(err, credentials.ErrNoExpiry) {
		t.Errorf("TokenExpiry without exp: error = %v, want ErrNoExpiry", err)
	}
}

func TestCookieJarPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	u, err := url.Parse("http://shop.example.com/api/Auth/Login")
	require.NoError(t, err)
	refreshURL, err := url.Parse("http://shop.example.com/api/Auth/Refresh-Token")
	require.NoError(t, err)

	jar, err := credentials.NewCookieJar(path)
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{
		{Name: "refresh_session", Value: "abc", Path: "/", HttpOnly: true},
		{Name: "gone", Value: "x", Path: "/", Expires: time.Now().Add(-time.Hour)},
	})

	reloaded, err := credentials.NewCookieJar(path)
	require.NoError(t, err)
	cookies := reloaded.Cookies(refreshURL)
	require.Len(t, cookies, 1)
	assert.Equal(t, "refresh_session", cookies[0].Name)
	assert.Equal(t, "abc", cookies[0].Value)

	// the server expiring the cookie removes it from disk too
	reloaded.SetCookies(u, []*http.Cookie{{Name: "refresh_session", Path: "/", MaxAge: -1}})
	again, err := credentials.NewCookieJar(path)
	require.NoError(t, err)
	assert.Empty(t, again.Cookies(refreshURL))
}

func TestCookieJarClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	u, err := url.Parse("http://localhost:8080/api/Auth/Login")
	require.NoError(t, err)

	jar, err := credentials.NewCookieJar(path)
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{{Name: "refresh_session", Value: "abc", Path: "/"}})
	require.NotEmpty(t, jar.Cookies(u))

	require.NoError(t, jar.Clear())
	assert.Empty(t, jar.Cookies(u))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestCookieJarIgnoresCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	jar, err := credentials.NewCookieJar(path)
	require.NoError(t, err)
	u, _ := url.Parse("http://localhost/")
	assert.Empty(t, jar.Cookies(u))
}
