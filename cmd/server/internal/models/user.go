package models

import (
	"context"
	"fmt"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/testsmith/testsmith/internal/config"
)

// A principal allowed to call the API
type User struct {
	Username string
	Token    string // argon2id hash of the api key
	// Credential for the repository host. Never logged.
	GithubToken    string
	InstallationID datatypes.Null[int64]
	Model
	Active datatypes.Null[bool]
}

func (User) TableName() string {
	return "users"
}

func (u User) GetID() uuid.UUID {
	return u.ID
}

func (u User) IsActive() bool {
	return u.Active.Valid && u.Active.V
}

// Config is the authoritative user list
//
// 1. Upsert configured users
// 2. Deactivate users not currently contained in the config
func LoadUsersFromConfig(ctx context.Context, db *gorm.DB, users []config.User) error {
	ctx, span := tracer.Start(ctx, "LoadUsersFromConfig")
	defer span.End()

	db = db.WithContext(ctx)

	toUpsert := make([]*User, len(users))
	inConfig := make([]uuid.UUID, len(users))
	for i, user := range users {
		hash, err := argon2id.CreateHash(user.APIKey.Token, argon2id.DefaultParams)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "error creating hash for api key")
			span.SetAttributes(attribute.String("failedUser", user.ID))
			return err
		}

		userID, err := uuid.Parse(user.ID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "error parsing user id")
			span.SetAttributes(attribute.String("failedUser", user.ID))
			return err
		}

		toUpsert[i] = &User{
			Model:          Model{ID: userID},
			Username:       user.Username,
			Token:          hash,
			GithubToken:    user.GithubToken,
			InstallationID: NewNull(user.InstallationID),
			Active:         NewNull(user.APIKey.Active),
		}
		inConfig[i] = userID
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		//nolint:govet // shadow: intentionally shadow ctx and span to avoid using the incorrect one.
		ctx, span := tracer.Start(ctx, "LoadUsersFromConfig/Transaction")
		defer span.End()

		tx = tx.WithContext(ctx)

		if len(toUpsert) != 0 {
			span.AddEvent("upserting configured users")
			result := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(toUpsert)
			if result.Error != nil {
				span.RecordError(result.Error)
				span.SetStatus(codes.Error, "failed to upsert configured users")
				return fmt.Errorf("failed to upsert configured users: %w", result.Error)
			}
		} else {
			span.AddEvent("no configured users to upsert")
		}

		span.AddEvent("deactivating users missing from config")

		query := tx.Model(&User{})
		if len(inConfig) != 0 {
			query = query.Where("id NOT IN ?", inConfig)
		} else {
			query = query.Where("1 = 1")
		}
		result := query.Updates(&User{Active: NewNullFromData(false)})
		if result.Error != nil {
			span.RecordError(result.Error)
			span.SetStatus(codes.Error, "failed to deactivate users missing from config")
			return fmt.Errorf("failed to deactivate users missing from config: %w", result.Error)
		}

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "updated users")
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to update users")
		return fmt.Errorf("failed to update users: %w", err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "updated users")
	return nil
}
