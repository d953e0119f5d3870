package services

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/telemed-health/telemed-api/db"
	"github.com/telemed-health/telemed-api/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	t.Cleanup(func() { db.Close(conn) })
	return conn
}

func createUser(t *testing.T, conn *gorm.DB, u models.User) *models.User {
	t.Helper()
	u.IsActive = true
	require.NoError(t, conn.Create(&u).Error)
	return &u
}

func reload(t *testing.T, conn *gorm.DB, id uint) *models.User {
	t.Helper()
	var u models.User
	require.NoError(t, conn.First(&u, id).Error)
	return &u
}
