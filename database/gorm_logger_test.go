package database

import (
	"testing"

	"doin-challenge/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestGormLoggerSkipsRecordNotFound(t *testing.T) {
	db, err := OpenMemory(t.Name())
	require.NoError(t, err)

	core, logs := observer.New(zapcore.DebugLevel)
	quiet := db.Session(&gorm.Session{Logger: NewGormLogger(zap.New(core), gormlogger.Warn)})

	var u models.User
	err = quiet.Where("open_id = ?", "nobody").First(&u).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Zero(t, logs.Len())

	require.Error(t, quiet.Exec("SELECT * FROM no_such_table").Error)
	entries := logs.FilterMessage("[DB] query failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "gorm", entries[0].LoggerName)
}

func TestGormLoggerSilent(t *testing.T) {
	db, err := OpenMemory(t.Name())
	require.NoError(t, err)

	core, logs := observer.New(zapcore.DebugLevel)
	l := NewGormLogger(zap.New(core), gormlogger.Warn).LogMode(gormlogger.Silent)
	require.Error(t, db.Session(&gorm.Session{Logger: l}).Exec("SELECT * FROM no_such_table").Error)
	assert.Zero(t, logs.Len())
}
