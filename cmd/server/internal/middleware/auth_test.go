package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alexedwards/argon2id"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	srverr "github.com/testsmith/testsmith/cmd/server/internal/error"
	"github.com/testsmith/testsmith/cmd/server/internal/models"
)

func TestUserFrom(t *testing.T) {
	e := echo.New()

	t.Run("Set", func(t *testing.T) {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		want := &models.User{Username: "octo"}
		c.Set(UserKey, want)

		got, err := UserFrom(c)
		require.NoError(t, err)
		assert.Same(t, want, got)
	})

	t.Run("Missing", func(t *testing.T) {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

		_, err := UserFrom(c)
		require.ErrorIs(t, err, srverr.ErrTypeAssertMismatch)
	})
}

func TestDecoyHash(t *testing.T) {
	hash, err := decoyHash()
	require.NoError(t, err)

	match, err := argon2id.ComparePasswordAndHash("not the api key", hash)
	require.NoError(t, err)
	assert.False(t, match)
}
