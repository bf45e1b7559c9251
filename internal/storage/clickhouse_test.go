package storage

import (
	"testing"

	"github.com/vanity-grinder/internal/config"
)

func testClickHouseConfig() *config.ClickHouseConfig {
	return &config.ClickHouseConfig{
		Enabled:  true,
		Host:     "localhost",
		Port:     "9000",
		Database: "vanity_grinder",
		Username: "default",
		Password: "",
	}
}

func TestNewClickHouseDB(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, err := NewClickHouseDB(testClickHouseConfig())
	if err != nil {
		t.Skipf("Skipping test - ClickHouse not available: %v", err)
		return
	}
	defer func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	ctx := testContext(t)
	if err := db.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}

	if db.Conn() == nil {
		t.Error("Conn() returned nil")
	}
}
