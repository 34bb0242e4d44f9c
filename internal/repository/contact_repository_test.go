package repository_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popeskul/wa-dispatcher/internal/models"
	"github.com/popeskul/wa-dispatcher/internal/repository"
)

func TestContactRepository(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := repository.NewContactRepository(db)

	t.Run("GetByPhone returns nil when absent", func(t *testing.T) {
		cleanupTestData(t, db)
		contact, err := repo.GetByPhone(ctx, uuid.New(), "5511999999999")
		require.NoError(t, err)
		assert.Nil(t, contact)
	})

	t.Run("InsertIfAbsent inserts once", func(t *testing.T) {
		cleanupTestData(t, db)
		owner := uuid.New()

		inserted, err := repo.InsertIfAbsent(ctx, owner, "5511999999999", "Ana")
		require.NoError(t, err)
		assert.True(t, inserted)

		inserted, err = repo.InsertIfAbsent(ctx, owner, "5511999999999", "Other")
		require.NoError(t, err)
		assert.False(t, inserted)

		contact, err := repo.GetByPhone(ctx, owner, "5511999999999")
		require.NoError(t, err)
		require.NotNil(t, contact)
		assert.Equal(t, "Ana", contact.DisplayName())
		assert.Equal(t, models.ContactStatusActive, contact.Status)

		inserted, err = repo.InsertIfAbsent(ctx, uuid.New(), "5511999999999", "")
		require.NoError(t, err)
		assert.True(t, inserted, "contacts are scoped per owner")
	})

	t.Run("Unsubscribe upserts", func(t *testing.T) {
		cleanupTestData(t, db)
		owner := uuid.New()

		_, err := repo.InsertIfAbsent(ctx, owner, "5511911111111", "Bia")
		require.NoError(t, err)
		require.NoError(t, repo.Unsubscribe(ctx, owner, "5511911111111", "stop"))
		require.NoError(t, repo.Unsubscribe(ctx, owner, "5511922222222", "sair"))

		for _, phone := range []string{"5511911111111", "5511922222222"} {
			contact, err := repo.GetByPhone(ctx, owner, phone)
			require.NoError(t, err)
			require.NotNil(t, contact)
			assert.Equal(t, models.ContactStatusUnsubscribed, contact.Status)
		}
	})

	t.Run("ListActiveByTags requires every tag", func(t *testing.T) {
		cleanupTestData(t, db)
		owner := uuid.New()

		insert := func(phone, status string, tags []string) {
			_, err := db.Exec(`INSERT INTO contacts (owner_id, phone_number, name, status, tags) VALUES ($1, $2, $3, $4, $5)`,
				owner, phone, "n"+phone, status, tagsArray(tags))
			require.NoError(t, err)
		}
		insert("5511900000001", "active", []string{"vip", "sp"})
		insert("5511900000002", "active", []string{"vip"})
		insert("5511900000003", "unsubscribed", []string{"vip", "sp"})
		insert("5511900000004", "active", []string{"sp", "vip", "new"})

		contacts, err := repo.ListActiveByTags(ctx, owner, []string{"vip", "sp"}, 10)
		require.NoError(t, err)

		var phones []string
		for _, c := range contacts {
			phones = append(phones, c.Phone)
		}
		assert.Equal(t, []string{"5511900000001", "5511900000004"}, phones)

		contacts, err = repo.ListActiveByTags(ctx, owner, []string{"vip"}, 2)
		require.NoError(t, err)
		assert.Len(t, contacts, 2)

		contacts, err = repo.ListActiveByTags(ctx, uuid.New(), []string{"vip"}, 10)
		require.NoError(t, err)
		assert.Empty(t, contacts)
	})
}
