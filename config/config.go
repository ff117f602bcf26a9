package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config represents the toolchain's persisted configuration: settings that
// the assembler, linker, and simulator all read at startup.
type Config struct {
	// Assembler settings
	Assembler struct {
		DefaultSection string `toml:"default_section"`
		WarnUnaligned  bool   `toml:"warn_unaligned"`
		MaxImmBits16   int    `toml:"max_imm_bits_16"`
		MaxImmBits20   int    `toml:"max_imm_bits_20"`
	} `toml:"assembler"`

	// Linker settings
	Linker struct {
		TextAlign     uint   `toml:"text_align"`
		DefaultEntry  string `toml:"default_entry"`
		AllowNoEntry  bool   `toml:"allow_no_entry"`
		OutputFormat  string `toml:"output_format"` // flat, elf-like
	} `toml:"linker"`

	// Simulator settings
	Simulator struct {
		MemorySize       uint32 `toml:"memory_size"`
		MaxInstructions  uint64 `toml:"max_instructions"`
		EnableTrace      bool   `toml:"enable_trace"`
		TraceOutputFile  string `toml:"trace_output_file"`
		HaltOnUnhandled  bool   `toml:"halt_on_unhandled"`
	} `toml:"simulator"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Assembler.DefaultSection = ".text"
	cfg.Assembler.WarnUnaligned = true
	cfg.Assembler.MaxImmBits16 = 16
	cfg.Assembler.MaxImmBits20 = 20

	cfg.Linker.TextAlign = 4
	cfg.Linker.DefaultEntry = "main"
	cfg.Linker.AllowNoEntry = false
	cfg.Linker.OutputFormat = "flat"

	cfg.Simulator.MemorySize = 1 << 20 // 1MB
	cfg.Simulator.MaxInstructions = 10_000_000
	cfg.Simulator.EnableTrace = false
	cfg.Simulator.TraceOutputFile = "trace.log"
	cfg.Simulator.HaltOnUnhandled = true

	return cfg
}

// GetConfigPath returns the platform-specific config file path.
func GetConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "m20")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "m20")

	default:
		return "config.toml"
	}

	if err := os.MkdirAll(configDir, 0750); err != nil {
		return "config.toml"
	}

	return filepath.Join(configDir, "config.toml")
}

// GetLogPath returns the platform-specific log directory path.
func GetLogPath() string {
	var logDir string

	switch runtime.GOOS {
	case "windows":
		logDir = os.Getenv("APPDATA")
		if logDir == "" {
			logDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		logDir = filepath.Join(logDir, "m20", "logs")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "logs"
		}
		logDir = filepath.Join(homeDir, ".local", "share", "m20", "logs")

	default:
		return "logs"
	}

	if err := os.MkdirAll(logDir, 0750); err != nil {
		return "logs"
	}

	return logDir
}

// Load loads configuration from the default config file.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from the specified file.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save saves configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo saves configuration to the specified file.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path) // #nosec G304 -- user config file path
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close config file: %w", closeErr)
		}
	}()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}
