package cfg

import (
	"testing"
	"time"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func TestGetPanicsBeforeLoad(t *testing.T) {
	origCfg := globalCfg
	globalCfg = nil
	defer func() {
		globalCfg = origCfg
		if r := recover(); r == nil {
			t.Error("Expected Get to panic before Load")
		}
	}()
	Get()
}

func TestSetForTests(t *testing.T) {
	origCfg := globalCfg
	defer Set(origCfg)

	Set(&Cfg{Port: "9999"})
	if Get().Port != "9999" {
		t.Errorf("Expected port '9999', got '%s'", Get().Port)
	}
}

func TestSweepInterval(t *testing.T) {
	tests := []struct {
		ttl      time.Duration
		expected time.Duration
	}{
		// Two thirds of the TTL once that clears the floor
		{6 * time.Hour, 4 * time.Hour},
		{3 * time.Hour, 2 * time.Hour},
		// Short TTLs hit the 30 minute floor
		{30 * time.Minute, 30 * time.Minute},
		{10 * time.Minute, 30 * time.Minute},
		{0, 30 * time.Minute},
	}

	for _, tc := range tests {
		c := &Cfg{CacheTTL: tc.ttl}
		if got := c.SweepInterval(); got != tc.expected {
			t.Errorf("TTL %v: expected sweep interval %v, got %v", tc.ttl, tc.expected, got)
		}
	}
}

func TestConfigFields(t *testing.T) {
	c := &Cfg{
		DBPath:       "./test.sqlite3",
		ImageDir:     "./test-images",
		Port:         "8080",
		ImageBaseUrl: "/images",
		WorkerCount:  5,
		CacheTTL:     6 * time.Hour,
		MaxEpisodes:  50,
		APIAccessKey: "test-key",
		UserAgent:    "Test Agent",
		Timezone:     "UTC",
		Debug:        true,
		Version:      "test-version",
	}

	if c.DBPath != "./test.sqlite3" {
		t.Errorf("Expected DB path './test.sqlite3', got '%s'", c.DBPath)
	}
	if c.MaxEpisodes != 50 {
		t.Errorf("Expected max episodes 50, got %d", c.MaxEpisodes)
	}
	if c.CacheTTL != 6*time.Hour {
		t.Errorf("Expected cache TTL 6h, got %v", c.CacheTTL)
	}
}

func TestApplyTimezone(t *testing.T) {
	if err := applyTimezone("UTC"); err != nil {
		t.Errorf("Expected UTC to be valid: %v", err)
	}
	if err := applyTimezone("Not/AZone"); err == nil {
		t.Error("Expected invalid timezone to error")
	}
}
