package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func testTokens(t *testing.T) *TokenSource {
	t.Helper()
	return NewTokenSource(TokenConfig{
		Secret:   "test-secret",
		Issuer:   "fitsync-test",
		Subject:  "user-1",
		TenantID: "tenant-1",
		TTL:      10 * time.Minute,
	})
}

func TestCreateSendsAuthorizedPost(t *testing.T) {
	var gotMethod, gotPath, gotAuth, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"workout_id":"w-1"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, testTokens(t))
	err := client.Repository("workouts").Create(context.Background(), json.RawMessage(`{"workout_id":"w-1"}`))
	require.NoError(t, err)

	require.Equal(t, http.MethodPost, gotMethod)
	require.Equal(t, "/v1/workouts", gotPath)
	require.JSONEq(t, `{"workout_id":"w-1"}`, gotBody)

	require.True(t, strings.HasPrefix(gotAuth, "Bearer "))
	parsed, err := jwt.Parse(strings.TrimPrefix(gotAuth, "Bearer "), func(tok *jwt.Token) (any, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	require.Equal(t, "user-1", claims["sub"])
	require.Equal(t, "tenant-1", claims["tenant_id"])
	require.Contains(t, claims["scopes"], "workouts:write")
}

func TestUpdateAndDeleteHitResourcePaths(t *testing.T) {
	var calls []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	repo := NewClient(server.URL, testTokens(t)).Repository("routines")
	require.NoError(t, repo.Update(context.Background(), "r-1", json.RawMessage(`{"name":"push day"}`)))
	require.NoError(t, repo.Delete(context.Background(), "r-1"))

	require.Equal(t, []string{"PUT /v1/routines/r-1", "DELETE /v1/routines/r-1"}, calls)
}

func TestEnvelopeErrorFailsTheItem(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Some backends wrap failures in a 200 with a populated error field.
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"error":{"code":"CONFLICT","message":"stale version"}}`))
	}))
	defer server.Close()

	err := NewClient(server.URL, testTokens(t)).Repository("workouts").Create(context.Background(), json.RawMessage(`{}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "CONFLICT")
	require.Contains(t, err.Error(), "stale version")
}

func TestNonSuccessStatusFailsTheItem(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	err := NewClient(server.URL, testTokens(t)).Repository("workouts").Delete(context.Background(), "w-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "500")
}

func TestMalformedSuccessBodyIsTolerated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	err := NewClient(server.URL, testTokens(t)).Repository("exercises").Create(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
}

func TestTokenIsCachedUntilNearExpiry(t *testing.T) {
	tokens := testTokens(t)
	first, err := tokens.Token()
	require.NoError(t, err)
	second, err := tokens.Token()
	require.NoError(t, err)
	require.Equal(t, first, second)
}
