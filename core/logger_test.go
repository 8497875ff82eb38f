package core

import (
	"fmt"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"xpostr-proxy/models"
)

func openTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	return db
}

func TestAsyncRequestLogger_FlushOnClose(t *testing.T) {
	db := openTestDB(t, "flush_on_close")
	log, _ := test.NewNullLogger()

	l := NewAsyncRequestLogger(db, log, 0)
	for i := 0; i < 3; i++ {
		l.Log(&models.RequestLog{RequestID: fmt.Sprintf("req-%d", i), Method: "POST", Path: "/", StatusCode: 200, Attempts: 1})
	}
	l.Close()
	l.Close()

	var count int64
	require.NoError(t, db.Model(&models.RequestLog{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestAsyncRequestLogger_Prune(t *testing.T) {
	db := openTestDB(t, "prune")
	log, _ := test.NewNullLogger()

	l := NewAsyncRequestLogger(db, log, 5)
	for i := 0; i < 12; i++ {
		l.Log(&models.RequestLog{RequestID: fmt.Sprintf("req-%d", i), StatusCode: 500})
	}
	l.Close()

	var rows []models.RequestLog
	require.NoError(t, db.Order("id asc").Find(&rows).Error)
	require.Len(t, rows, 5)
	assert.Equal(t, "req-7", rows[0].RequestID)
	assert.Equal(t, "req-11", rows[4].RequestID)
}
