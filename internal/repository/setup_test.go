package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/popeskul/wa-dispatcher/internal/infrastructure/migrate"
	"github.com/popeskul/wa-dispatcher/internal/models"
)

func setupTestDB(t *testing.T) (*sqlx.DB, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database integration test in short mode")
	}

	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)

	runner := migrate.NewRunner(&migrate.Config{DatabaseURL: dsn, MigrationsPath: "../../migrations"}, zap.NewNop())
	require.NoError(t, runner.Run())

	cleanup := func() {
		_ = db.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return db, cleanup
}

func cleanupTestData(t *testing.T, db *sqlx.DB) {
	_, err := db.Exec(`TRUNCATE TABLE campaign_recipients, campaigns, contacts, subscriptions, whatsapp_instances RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
}

func insertInstance(t *testing.T, db *sqlx.DB, ownerID uuid.UUID, name string) uuid.UUID {
	id := uuid.New()
	_, err := db.Exec(`
		INSERT INTO whatsapp_instances (id, owner_id, instance_name, api_key, status)
		VALUES ($1, $2, $3, $4, $5)`,
		id, ownerID, name, "key-"+name, models.InstanceStatusConnected)
	require.NoError(t, err)
	return id
}

func insertSubscription(t *testing.T, db *sqlx.DB, ownerID uuid.UUID, status string, periodEnd *time.Time) {
	_, err := db.Exec(`INSERT INTO subscriptions (owner_id, status, current_period_end) VALUES ($1, $2, $3)`,
		ownerID, status, periodEnd)
	require.NoError(t, err)
}

func newCampaign(ownerID, instanceID uuid.UUID, total int, status models.CampaignStatus) *models.Campaign {
	return &models.Campaign{
		ID:            uuid.New(),
		OwnerID:       ownerID,
		InstanceID:    instanceID,
		Name:          "Test campaign",
		Variations:    []string{"Olá {nome}", "Oi {nome}"},
		TotalContacts: total,
		Status:        status,
	}
}

func newRecipients(n int) []*models.Recipient {
	recipients := make([]*models.Recipient, n)
	for i := range recipients {
		recipients[i] = &models.Recipient{
			Position:       i,
			Name:           "Contact",
			Phone:          fmt.Sprintf("5511999990%03d", i),
			VariationIndex: (i / 5) % 2,
			Message:        "Olá Contact",
		}
	}
	return recipients
}

func tagsArray(tags []string) interface{} {
	return pq.Array(tags)
}
