package middleware

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	srverr "github.com/testsmith/testsmith/cmd/server/internal/error"
	"github.com/testsmith/testsmith/cmd/server/internal/models"
	"github.com/testsmith/testsmith/cmd/server/internal/response"
)

// Context key the authenticated *models.User is stored under
const UserKey = "user"

const name string = "github.com/testsmith/testsmith/cmd/server/internal/middleware"

var tracer = otel.Tracer(name)

var (
	errBadCredentials = errors.New("bad credentials")
	errInactiveUser   = errors.New("user is inactive")
)

// Compared against when there is no real hash, so a miss costs as much as a hit.
var decoyHash = sync.OnceValues(func() (string, error) {
	return argon2id.CreateHash("decoy api key used to equalize timing", argon2id.DefaultParams)
})

type Handler struct {
	DB *gorm.DB
}

// UserFrom returns the user BasicAuthValidator authenticated for this request.
func UserFrom(c echo.Context) (*models.User, error) {
	user, ok := c.Get(UserKey).(*models.User)
	if !ok {
		return nil, fmt.Errorf("user: %w", srverr.ErrTypeAssertMismatch)
	}
	return user, nil
}

func spendDecoyHash(ctx context.Context) {
	_, span := tracer.Start(ctx, "spendDecoyHash")
	defer span.End()

	hash, err := decoyHash()
	if err == nil {
		_, err = argon2id.ComparePasswordAndHash("not the api key", hash)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to compare against decoy hash")
	}
}

// authenticate resolves rawID and token to an active user. Every rejection
// performs one database lookup and one hash comparison.
func authenticate(ctx context.Context, db *gorm.DB, rawID, token string) (*models.User, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		// look up a random id so a malformed id is not faster than an unknown one
		id = uuid.New()
	}

	user, lookupErr := models.ByID[models.User](ctx, db, id)
	switch {
	case lookupErr != nil && !errors.Is(lookupErr, models.ErrNotFound):
		spendDecoyHash(ctx)
		return nil, lookupErr
	case lookupErr != nil || err != nil:
		spendDecoyHash(ctx)
		return nil, errBadCredentials
	}

	match, params, err := argon2id.CheckHash(token, user.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to check api key: %w", err)
	}
	if !match {
		return nil, errBadCredentials
	}
	if !user.IsActive() {
		return nil, errInactiveUser
	}

	if !reflect.DeepEqual(params, argon2id.DefaultParams) {
		if err := rehash(db, user, token); err != nil {
			return nil, err
		}
	}

	return user, nil
}

// rehash upgrades a stored hash made with outdated argon2id parameters.
func rehash(db *gorm.DB, user *models.User, token string) error {
	newHash, err := argon2id.CreateHash(token, argon2id.DefaultParams)
	if err != nil {
		return fmt.Errorf("failed to create new hash for api key: %w", err)
	}
	if err := db.Model(user).Update("token", newHash).Error; err != nil {
		return fmt.Errorf("failed to save new api key hash: %w", err)
	}
	user.Token = newHash
	return nil
}

// Validates basic auth credentials `<user id>:<api key>` against the users table
func (h *Handler) BasicAuthValidator(rawID, token string, c echo.Context) (bool, error) {
	ctx, span := tracer.Start(c.Request().Context(), "BasicAuthValidator")
	defer span.End()

	span.SetAttributes(attribute.String("id.raw", rawID))

	user, err := authenticate(ctx, h.DB.WithContext(ctx), rawID, token)
	switch {
	case errors.Is(err, errBadCredentials), errors.Is(err, errInactiveUser):
		span.AddEvent("rejected login attempt", trace.WithAttributes(attribute.String("reason", err.Error())))
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "rejected credentials")
		return false, nil
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to authenticate")
		return false, response.InternalServerError
	}

	span.SetAttributes(
		attribute.String("user.id", user.ID.String()),
		attribute.String("username", user.Username),
	)
	span.AddEvent("successful login attempt")
	c.Set(UserKey, user)

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "authenticated")
	return true, nil
}
