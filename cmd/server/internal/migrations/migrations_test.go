package migrations

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestUpDown(t *testing.T) {
	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16.4-alpine",
		postgres.WithDatabase("testsmith"),
		postgres.WithUsername("testsmith"),
		postgres.WithPassword("testsmith"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	t.Cleanup(func() {
		assert.NoError(t, testcontainers.TerminateContainer(postgresContainer), "failed to terminate container")
	})
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Up(ctx, db))
	version, err := Version(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(4), version)
	assert.True(t, db.Migrator().HasTable("test_job"))

	// a second run is a no-op
	require.NoError(t, Up(ctx, db))

	require.NoError(t, Down(ctx, db))
	version, err = Version(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(0), version)
	assert.False(t, db.Migrator().HasTable("test_job"))
}
