package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// useTempConfigDir points the default config location at a fresh directory.
func useTempConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return filepath.Join(dir, "dittowopi")
}

func TestInitConfig_Success(t *testing.T) {
	dir := useTempConfigDir(t)

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}
	if filepath.Dir(configPath) != dir {
		t.Errorf("Expected config under %s, got %s", dir, configPath)
	}

	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("Config file was not created at %s", configPath)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected mode 0600 for a file holding the secret, got %v", info.Mode().Perm())
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	contentStr := string(content)
	expectedSections := []string{
		"# DittoWOPI Configuration File",
		"logging:",
		"content:",
		"metadata:",
		"discovery:",
		"auth:",
		"host:",
		"adapters:",
	}

	for _, section := range expectedSections {
		if !strings.Contains(contentStr, section) {
			t.Errorf("Config file missing section: %s", section)
		}
	}

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		t.Fatalf("Generated config is not valid YAML: %v", err)
	}
}

func TestInitConfig_AlreadyExists(t *testing.T) {
	useTempConfigDir(t)

	if _, err := InitConfig(false); err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}

	_, err := InitConfig(false)
	if err == nil {
		t.Fatal("Expected error when config already exists")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Expected 'already exists' error, got: %v", err)
	}
}

func TestInitConfig_ForceOverwrite(t *testing.T) {
	useTempConfigDir(t)

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}

	if err := os.WriteFile(configPath, []byte("# Modified"), 0600); err != nil {
		t.Fatalf("Failed to modify config: %v", err)
	}

	newPath, err := InitConfig(true)
	if err != nil {
		t.Fatalf("Force InitConfig failed: %v", err)
	}
	if newPath != configPath {
		t.Errorf("Expected same path, got different: %s vs %s", configPath, newPath)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config: %v", err)
	}
	if !strings.Contains(string(content), "# DittoWOPI Configuration File") {
		t.Error("Config file was not properly overwritten")
	}
}

func TestInitConfigToPath_AlreadyExists(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	if err := os.WriteFile(configPath, []byte("existing"), 0644); err != nil {
		t.Fatalf("Failed to create existing file: %v", err)
	}

	err := InitConfigToPath(configPath, false)
	if err == nil {
		t.Fatal("Expected error when file already exists")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Expected 'already exists' error, got: %v", err)
	}
}

func TestGenerateYAMLWithComments_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	out, err := generateYAMLWithComments(cfg)
	if err != nil {
		t.Fatalf("generateYAMLWithComments failed: %v", err)
	}

	// Every top-level section is preceded by its comment
	for key, comment := range sectionComments {
		if !strings.Contains(out, "# "+comment+"\n"+key+":") {
			t.Errorf("Section %q missing its comment", key)
		}
	}

	if !strings.Contains(out, "INFO") {
		t.Error("Generated YAML should contain default INFO log level")
	}
	if !strings.Contains(out, "8080") {
		t.Error("Generated YAML should contain default WOPI port 8080")
	}
	if !strings.Contains(out, "lock_duration: 30m0s") {
		t.Error("Generated YAML should render durations as strings")
	}
	if !strings.Contains(out, cfg.Auth.Secret) {
		t.Error("Generated YAML should carry the generated secret")
	}
}

func TestGeneratedConfigValuesAreCorrect(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	if err := InitConfigToPath(configPath, false); err != nil {
		t.Fatalf("Failed to generate config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load generated config: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected INFO log level in generated config, got %q", cfg.Logging.Level)
	}
	if cfg.Adapters.WOPI.Port != 8080 {
		t.Errorf("Expected port 8080 in generated config, got %d", cfg.Adapters.WOPI.Port)
	}
	if cfg.Host.LockDuration.Minutes() != 30 {
		t.Errorf("Expected 30m lock duration, got %v", cfg.Host.LockDuration)
	}
	if len(cfg.Auth.Secret) < 32 {
		t.Errorf("Expected generated secret, got %q", cfg.Auth.Secret)
	}
}
