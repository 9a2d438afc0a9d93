package db

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestDialectorForDriver(t *testing.T) {
	sqliteCfg := config.DBConfig{Driver: config.DriverSQLite, DSN: "file::memory:"}
	if got := dialectorFor(sqliteCfg).Name(); got != "sqlite" {
		t.Fatalf("expected sqlite dialector, got %s", got)
	}
	pgCfg := config.DBConfig{Driver: config.DriverPostgres, DSN: "postgres://localhost/orderflow"}
	if got := dialectorFor(pgCfg).Name(); got != "postgres" {
		t.Fatalf("expected postgres dialector, got %s", got)
	}
}

func TestNewRequiresDSN(t *testing.T) {
	if _, err := New(context.Background(), config.DBConfig{}, nil); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	conn := newTestDB(t)
	client := NewFromGorm(conn)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(&testModel{Name: "panicked"}).Error; err != nil {
				return err
			}
			panic("boom")
		})
	}()

	var count int64
	conn.Model(&testModel{}).Where("name = ?", "panicked").Count(&count)
	if count != 0 {
		t.Fatalf("expected panic to roll back, found %d rows", count)
	}
}

func TestGormLoggerReportsSlowAndFailedQueries(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})
	conn, err := gorm.Open(sqlite.Open("file:gormlog?mode=memory&cache=shared"), &gorm.Config{
		Logger: newGormLogger(logg, time.Nanosecond),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	buf.Reset()

	conn.Create(&testModel{Name: "slow"})
	if !strings.Contains(buf.String(), "db.query.slow") {
		t.Fatalf("expected slow query line, got %s", buf.String())
	}

	buf.Reset()
	var row testModel
	err = conn.Session(&gorm.Session{Logger: newGormLogger(logg, time.Hour)}).First(&row, "name = ?", "missing").Error
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("not found must stay quiet, got %s", buf.String())
	}

	conn.Session(&gorm.Session{Logger: newGormLogger(logg, time.Hour)}).Exec("SELECT * FROM no_such_table")
	if !strings.Contains(buf.String(), "db.query.failed") {
		t.Fatalf("expected failed query line, got %s", buf.String())
	}
}

func TestIsUniqueViolation(t *testing.T) {
	conn := newTestDB(t)
	if err := conn.Exec("CREATE UNIQUE INDEX ux_test_models_name ON test_models (name)").Error; err != nil {
		t.Fatalf("index: %v", err)
	}
	conn.Create(&testModel{Name: "dup"})
	err := conn.Create(&testModel{Name: "dup"}).Error

	if !IsUniqueViolation(err, "") || !IsUniqueViolation(err, "test_models.name") {
		t.Fatalf("expected unique violation, got %v", err)
	}
	if IsUniqueViolation(err, "other_table.col") || IsUniqueViolation(errors.New("boom"), "") || IsUniqueViolation(nil, "") {
		t.Fatal("unexpected match")
	}
}
