package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func resetGlobalConfig() {
	globalConfig = &Config{
		Network:      "mainnet",
		DataDir:      ".gov",
		LogLevel:     "info",
		MetricsPort:  12798,
		ThresholdBps: 6666,
		VoteDuration: "24h",
		Compress:     true,
	}
}

func TestLoad_CompareFullStruct(t *testing.T) {
	resetGlobalConfig()
	yamlContent := `
network: "devnet"
dataDir: "/tmp/gov-test"
logLevel: "debug"
metricsPort: 8088
thresholdBps: 5000
voteDuration: "1h"
snapshotWorkers: 4
maxSnapshotBytes: 1048576
compress: false
`

	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "test-gov.yaml")

	err := os.WriteFile(tmpFile, []byte(yamlContent), 0644)
	if err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	expected := &Config{
		Network:          "devnet",
		DataDir:          "/tmp/gov-test",
		LogLevel:         "debug",
		MetricsPort:      8088,
		ThresholdBps:     5000,
		VoteDuration:     "1h",
		SnapshotWorkers:  4,
		MaxSnapshotBytes: 1048576,
		Compress:         false,
	}

	actual, err := LoadConfig(tmpFile)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if !reflect.DeepEqual(actual, expected) {
		t.Errorf(
			"Loaded config does not match expected.\nActual: %+v\nExpected: %+v",
			actual,
			expected,
		)
	}
}

func TestLoad_WithoutConfigFile_UsesDefaults(t *testing.T) {
	resetGlobalConfig()

	cfg, err := LoadConfig(os.DevNull)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	expected := &Config{
		Network:      "mainnet",
		DataDir:      ".gov",
		LogLevel:     "info",
		MetricsPort:  12798,
		ThresholdBps: 6666,
		VoteDuration: "24h",
		Compress:     true,
	}

	if !reflect.DeepEqual(cfg, expected) {
		t.Errorf(
			"config mismatch without file:\nExpected: %+v\nGot:      %+v",
			expected,
			cfg,
		)
	}
}

func TestLoad_RejectsInvalidThreshold(t *testing.T) {
	resetGlobalConfig()
	yamlContent := `
thresholdBps: 10001
`

	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "test-threshold.yaml")

	err := os.WriteFile(tmpFile, []byte(yamlContent), 0644)
	if err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := LoadConfig(tmpFile); err == nil {
		t.Error("expected error for out-of-range threshold, got nil")
	}
}

func TestLoad_RejectsInvalidVoteDuration(t *testing.T) {
	resetGlobalConfig()
	yamlContent := `
voteDuration: "-1h"
`

	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "test-duration.yaml")

	err := os.WriteFile(tmpFile, []byte(yamlContent), 0644)
	if err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := LoadConfig(tmpFile); err == nil {
		t.Error("expected error for negative vote duration, got nil")
	}
}

func TestVoteDurationParsed(t *testing.T) {
	resetGlobalConfig()
	duration, err := globalConfig.VoteDurationParsed()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if duration != 24*time.Hour {
		t.Errorf("expected 24h, got: %v", duration)
	}
}
