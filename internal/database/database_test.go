package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestLoadMigrations_Embedded(t *testing.T) {
	loaded, err := LoadMigrations(migrationFS, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, loaded)

	for i, m := range loaded {
		assert.NotEmpty(t, m.UpScript, m.String())
		assert.NotEmpty(t, m.DownScript, m.String())
		if i > 0 {
			assert.Greater(t, m.Version, loaded[i-1].Version)
		}
	}
	assert.Equal(t, "000001_counter_checks", loaded[0].String())
	assert.Equal(t, loaded, GetMigrations())
}

func TestMigrate_SQLiteCreatesSchemaOnly(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, Migrate(context.Background(), db))

	for _, model := range PersistentModels() {
		assert.True(t, db.Migrator().HasTable(model), "%T", model)
	}
	assert.True(t, db.Migrator().HasTable("post_tags"))
	assert.True(t, db.Migrator().HasTable("conversation_participants"))

	var applied int64
	require.NoError(t, db.Model(&MigrationLog{}).Count(&applied).Error)
	assert.Zero(t, applied, "SQL migrations target postgres only")
}

func TestRollbackMigration_Errors(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, Migrate(context.Background(), db))

	err := RollbackMigration(context.Background(), db, 999)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	err = RollbackMigration(context.Background(), db, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has not been applied")
}

func TestGormLogger_Trace(t *testing.T) {
	var buf bytes.Buffer
	l := &CustomGormLogger{
		logger: slog.New(slog.NewJSONHandler(&buf, nil)),
		Config: logger.Config{SlowThreshold: 50 * time.Millisecond, LogLevel: logger.Warn},
	}
	sql := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(context.Background(), time.Now(), sql, nil)
	assert.Empty(t, buf.String(), "fast queries are not logged at warn level")

	l.Trace(context.Background(), time.Now().Add(-time.Second), sql, nil)
	assert.Contains(t, buf.String(), "GORM slow query")

	buf.Reset()
	l.Trace(context.Background(), time.Now(), sql, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String())

	l.Trace(context.Background(), time.Now(), sql, errors.New("boom"))
	assert.Contains(t, buf.String(), "GORM query error")

	buf.Reset()
	l.LogMode(logger.Silent).Trace(context.Background(), time.Now(), sql, errors.New("boom"))
	assert.Empty(t, buf.String())
}

func TestGormLogger_RecordsSpanEvent(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	var buf bytes.Buffer
	l := &CustomGormLogger{
		logger: slog.New(slog.NewJSONHandler(&buf, nil)),
		Config: logger.Config{LogLevel: logger.Warn},
	}

	ctx, span := tp.Tracer("test").Start(context.Background(), "GET /api/posts")
	l.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT * FROM posts", 3 }, nil)
	span.End()

	ended := sr.Ended()
	require.Len(t, ended, 1)
	events := ended[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "db.statement", events[0].Name)
}
