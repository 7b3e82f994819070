package database

import (
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

type testRecord struct {
	ID        int64 `gorm:"primaryKey"`
	Name      string
	CreatedAt time.Time
}

func TestDialector(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"sqlite:caption.db", "sqlite"},
		{"host=localhost user=caption dbname=caption sslmode=disable", "postgres"},
		{"postgres://caption@localhost:5432/caption", "postgres"},
	}

	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			if got := dialector(tt.dsn).Name(); got != tt.want {
				t.Errorf("dialector(%q).Name() = %s, want %s", tt.dsn, got, tt.want)
			}
		})
	}
}

func TestInitDB_SQLite(t *testing.T) {
	dsn := sqliteScheme + filepath.Join(t.TempDir(), "audit.db")

	db, err := InitDB(dsn, DefaultPoolConfig(), zap.NewNop(), &testRecord{})
	if err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}

	if !db.Migrator().HasTable(&testRecord{}) {
		t.Error("表未创建")
	}

	if err := db.Create(&testRecord{Name: "a"}).Error; err != nil {
		t.Fatalf("写入失败: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取 sql.DB 失败: %v", err)
	}
	if got := sqlDB.Stats().MaxOpenConnections; got != DefaultPoolConfig().MaxOpenConns {
		t.Errorf("MaxOpenConnections = %d, want %d", got, DefaultPoolConfig().MaxOpenConns)
	}
	_ = sqlDB.Close()
}
