package audit

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/spinestock/internal/entities"
)

func setupTestService(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "audit.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	err = db.AutoMigrate(&entities.AuditEvent{})
	require.NoError(t, err)

	return NewService(db), db
}

func TestService_Log(t *testing.T) {
	svc, db := setupTestService(t)

	event := &entities.AuditEvent{
		UserID:    "u1",
		EventType: entities.AuditEventBook,
		Action:    "test_action",
		Status:    entities.AuditStatusSuccess,
	}

	err := svc.Log(context.Background(), event)
	require.NoError(t, err)

	var saved entities.AuditEvent
	err = db.First(&saved, event.ID).Error
	require.NoError(t, err)
	assert.Equal(t, "test_action", saved.Action)
}

func TestService_LogBook(t *testing.T) {
	svc, db := setupTestService(t)

	t.Run("successful change", func(t *testing.T) {
		svc.LogBook("u1", ActionBookCreate, "b1", "Matilda", nil)
		svc.Wait()

		var event entities.AuditEvent
		err := db.Where("action = ?", ActionBookCreate).First(&event).Error
		require.NoError(t, err)
		assert.Equal(t, entities.AuditEventBook, event.EventType)
		assert.Equal(t, entities.AuditStatusSuccess, event.Status)
		assert.Equal(t, "b1", event.EntityID)
		assert.Equal(t, "Matilda", event.Description)
	})

	t.Run("failed change", func(t *testing.T) {
		svc.LogBook("u1", ActionBookDelete, "b2", "", errors.New("database is locked"))
		svc.Wait()

		var event entities.AuditEvent
		err := db.Where("action = ?", ActionBookDelete).First(&event).Error
		require.NoError(t, err)
		assert.Equal(t, entities.AuditStatusFailed, event.Status)
		assert.Contains(t, event.ErrorMsg, "database is locked")
	})
}

func TestService_LogAuth(t *testing.T) {
	svc, db := setupTestService(t)

	t.Run("successful sign-in", func(t *testing.T) {
		svc.LogAuth("u1", "reader@example.com", ActionSignIn, "192.168.1.1", "spinestock/1.0", true)
		svc.Wait()

		var event entities.AuditEvent
		err := db.Where("user_id = ?", "u1").First(&event).Error
		require.NoError(t, err)
		assert.Equal(t, entities.AuditStatusSuccess, event.Status)
		assert.Equal(t, "192.168.1.1", event.IPAddress)
	})

	t.Run("unknown account", func(t *testing.T) {
		svc.LogAuth("", "nobody@example.com", ActionSignIn, "10.0.0.1", "curl/7.68.0", false)
		svc.Wait()

		var event entities.AuditEvent
		err := db.Where("description = ?", "nobody@example.com").First(&event).Error
		require.NoError(t, err)
		assert.Equal(t, entities.AuditStatusFailed, event.Status)
		assert.Empty(t, event.UserID)
	})
}

func TestService_LogEnrich(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogEnrich("u1", "b1", nil)
	svc.LogEnrich("u1", "b2", errors.New("timeout"))
	svc.Wait()

	var events []entities.AuditEvent
	require.NoError(t, db.Where("action = ?", ActionBookEnrich).Order("entity_id").Find(&events).Error)
	require.Len(t, events, 2)
	assert.Equal(t, entities.AuditStatusSuccess, events[0].Status)
	assert.Equal(t, entities.AuditStatusFailed, events[1].Status)
	assert.Equal(t, "timeout", events[1].ErrorMsg)
}

func TestService_Events(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := svc.Log(ctx, &entities.AuditEvent{
			UserID:    "u1",
			EventType: entities.AuditEventBook,
			Action:    "test",
			Status:    entities.AuditStatusSuccess,
		})
		require.NoError(t, err)
	}
	require.NoError(t, svc.Log(ctx, &entities.AuditEvent{UserID: "u2", EventType: entities.AuditEventAuth, Action: "other"}))

	events, total, err := svc.Events(ctx, "u1", 3, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, events, 3)
	assert.Greater(t, events[0].ID, events[1].ID, "newest first")

	events, _, err = svc.Events(ctx, "nobody", 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestService_DeleteOldEvents(t *testing.T) {
	svc, db := setupTestService(t)

	oldEvent := &entities.AuditEvent{
		UserID:    "u1",
		EventType: entities.AuditEventBook,
		Action:    "old",
		Status:    entities.AuditStatusSuccess,
		CreatedAt: time.Now().Add(-48 * time.Hour),
	}
	require.NoError(t, db.Create(oldEvent).Error)

	newEvent := &entities.AuditEvent{
		UserID:    "u1",
		EventType: entities.AuditEventBook,
		Action:    "new",
		Status:    entities.AuditStatusSuccess,
		CreatedAt: time.Now(),
	}
	require.NoError(t, db.Create(newEvent).Error)

	deleted, err := svc.DeleteOldEvents(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining []entities.AuditEvent
	db.Find(&remaining)
	assert.Len(t, remaining, 1)
	assert.Equal(t, "new", remaining[0].Action)
}

func TestService_NilRecordsNothing(t *testing.T) {
	var svc *Service

	svc.LogBook("u1", ActionBookCreate, "b1", "Matilda", nil)
	svc.Wait()
	assert.NoError(t, svc.Log(context.Background(), &entities.AuditEvent{}))

	events, total, err := svc.Events(context.Background(), "u1", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Zero(t, total)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly10c", 10, "exactly10c"},
		{"this is a very long string", 10, "this is..."},
		{"", 5, ""},
	}

	for _, tc := range tests {
		result := truncate(tc.input, tc.maxLen)
		assert.Equal(t, tc.expected, result)
	}
}
