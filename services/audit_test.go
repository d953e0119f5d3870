package services

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/telemed-health/telemed-api/models"
)

func TestAuditLogger_PersistsQueuedEntries(t *testing.T) {
	conn := newTestDB(t)
	a := NewAuditLogger(conn, 16, zerolog.Nop())

	actor := createUser(t, conn, models.User{Username: "jane"})
	a.Record(models.AuditLog{ActorID: &actor.ID, Action: "GET patient-list", Metadata: datatypes.JSONMap{"status_code": 200}})
	a.Record(models.AuditLog{Action: "POST " + strings.Repeat("x", 300)})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Close(ctx))

	var logs []models.AuditLog
	require.NoError(t, conn.Order("id").Find(&logs).Error)
	require.Len(t, logs, 2)
	assert.Equal(t, actor.ID, *logs[0].ActorID)
	assert.EqualValues(t, 200, logs[0].Metadata["status_code"])
	assert.Len(t, logs[1].Action, maxActionLength)
	assert.Nil(t, logs[1].ActorID)
}

func TestAuditLogger_FailuresGoToDiagnosticLog(t *testing.T) {
	conn := newTestDB(t)
	require.NoError(t, conn.Migrator().DropTable(&models.AuditLog{}))

	var buf bytes.Buffer
	a := NewAuditLogger(conn, 4, zerolog.New(&buf))
	a.Record(models.AuditLog{Action: "GET health"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Close(ctx))

	assert.Contains(t, buf.String(), "failed to persist audit entry")
}

func TestAuditLogger_RecordAfterCloseIsDropped(t *testing.T) {
	conn := newTestDB(t)
	var buf bytes.Buffer
	a := NewAuditLogger(conn, 4, zerolog.New(&buf))
	require.NoError(t, a.Close(context.Background()))
	require.NoError(t, a.Close(context.Background()), "close is idempotent")

	a.Record(models.AuditLog{Action: "GET health"})
	assert.Contains(t, buf.String(), "logger closed")

	var count int64
	conn.Model(&models.AuditLog{}).Count(&count)
	assert.Zero(t, count)
}

func TestTruncateAction(t *testing.T) {
	short := "GET /api/patients/"
	assert.Equal(t, short, truncateAction(short))

	ascii := strings.Repeat("a", maxActionLength+10)
	assert.Len(t, truncateAction(ascii), maxActionLength)

	// "é" is two bytes, so the cut point lands inside a rune.
	multi := "GET /" + strings.Repeat("é", maxActionLength)
	got := truncateAction(multi)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), maxActionLength)
	assert.Equal(t, maxActionLength-1, len(got))
	assert.True(t, strings.HasPrefix(multi, got))
}
