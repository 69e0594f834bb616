package database

import (
	"testing"

	"doin-challenge/config"
	"doin-challenge/models"

	"github.com/stretchr/testify/require"
)

func TestOpenMemoryAssignsUUIDs(t *testing.T) {
	db, err := OpenMemory(t.Name())
	require.NoError(t, err)

	u := models.User{OpenID: "open-1", Name: "テスト", Role: models.RoleUser}
	require.NoError(t, db.Create(&u).Error)
	require.Len(t, u.ID, 36)

	keep := models.User{ID: "11111111-1111-1111-1111-111111111111", OpenID: "open-2", Role: models.RoleUser}
	require.NoError(t, db.Create(&keep).Error)
	require.Equal(t, "11111111-1111-1111-1111-111111111111", keep.ID)
}

func TestOpenMemoryBatchInsert(t *testing.T) {
	db, err := OpenMemory(t.Name())
	require.NoError(t, err)

	badges := []models.Badge{
		{Name: "a", Type: models.BadgeSpecial, ConditionType: models.ConditionSpecial},
		{Name: "b", Type: models.BadgeSpecial, ConditionType: models.ConditionFollowerBadge},
	}
	require.NoError(t, db.Create(&badges).Error)
	require.NotEmpty(t, badges[0].ID)
	require.NotEqual(t, badges[0].ID, badges[1].ID)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "mysql"})
	require.ErrorContains(t, err, "unsupported database driver")
}
