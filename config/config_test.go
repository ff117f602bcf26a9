package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Assembler.DefaultSection != ".text" {
		t.Errorf("Expected DefaultSection=.text, got %s", cfg.Assembler.DefaultSection)
	}
	if cfg.Assembler.MaxImmBits16 != 16 {
		t.Errorf("Expected MaxImmBits16=16, got %d", cfg.Assembler.MaxImmBits16)
	}

	if cfg.Linker.TextAlign != 4 {
		t.Errorf("Expected TextAlign=4, got %d", cfg.Linker.TextAlign)
	}
	if cfg.Linker.DefaultEntry != "main" {
		t.Errorf("Expected DefaultEntry=main, got %s", cfg.Linker.DefaultEntry)
	}

	if cfg.Simulator.MemorySize != 1<<20 {
		t.Errorf("Expected MemorySize=%d, got %d", 1<<20, cfg.Simulator.MemorySize)
	}
	if !cfg.Simulator.HaltOnUnhandled {
		t.Error("Expected HaltOnUnhandled=true")
	}
}

func TestGetConfigPath(t *testing.T) {
	path := GetConfigPath()

	if path == "" {
		t.Error("GetConfigPath returned empty string")
	}
	if filepath.Base(path) != "config.toml" {
		t.Errorf("Expected path to end with config.toml, got %s", path)
	}

	switch runtime.GOOS {
	case "windows":
		if !filepath.IsAbs(path) && path != "config.toml" {
			t.Errorf("Expected absolute path on Windows, got %s", path)
		}

	case "darwin", "linux":
		dir := filepath.Dir(path)
		if filepath.Base(dir) != "m20" && path != "config.toml" {
			t.Errorf("Expected path in m20 directory or fallback, got %s", path)
		}
	}
}

func TestGetLogPath(t *testing.T) {
	path := GetLogPath()

	if path == "" {
		t.Error("GetLogPath returned empty string")
	}

	switch runtime.GOOS {
	case "windows":
		if !filepath.IsAbs(path) && path != "logs" {
			t.Errorf("Expected absolute path on Windows, got %s", path)
		}

	case "darwin", "linux":
		if filepath.Base(path) != "logs" {
			t.Errorf("Expected path to end with logs, got %s", path)
		}
	}
}

func TestSaveAndLoad(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "test_config.toml")

	cfg := DefaultConfig()
	cfg.Simulator.MaxInstructions = 5000000
	cfg.Simulator.EnableTrace = true
	cfg.Linker.TextAlign = 8
	cfg.Assembler.WarnUnaligned = false

	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("Config file was not created")
	}

	loaded, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loaded.Simulator.MaxInstructions != 5000000 {
		t.Errorf("Expected MaxInstructions=5000000, got %d", loaded.Simulator.MaxInstructions)
	}
	if !loaded.Simulator.EnableTrace {
		t.Error("Expected EnableTrace=true")
	}
	if loaded.Linker.TextAlign != 8 {
		t.Errorf("Expected TextAlign=8, got %d", loaded.Linker.TextAlign)
	}
	if loaded.Assembler.WarnUnaligned {
		t.Error("Expected WarnUnaligned=false")
	}
}

func TestLoadNonExistent(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "nonexistent.toml")

	cfg, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("LoadFrom should not error on non-existent file: %v", err)
	}

	if cfg.Simulator.MemorySize != 1<<20 {
		t.Error("Expected default config when file doesn't exist")
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "invalid.toml")

	invalidTOML := `
[simulator]
memory_size = "not a number"  # Invalid: should be uint32
`
	if err := os.WriteFile(configPath, []byte(invalidTOML), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	_, err := LoadFrom(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid TOML")
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "subdir1", "subdir2", "config.toml")

	cfg := DefaultConfig()
	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("Config file was not created")
	}

	dir := filepath.Dir(configPath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Error("Parent directories were not created")
	}
}
