package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// sectionComments precede each top-level key of a generated config file.
var sectionComments = map[string]string{
	"logging":   "Logging: level (DEBUG, INFO, WARN, ERROR), format (text, json), output (stdout, stderr, file path)",
	"server":    "Server-wide settings, sent as X-WOPI-ServerVersion / X-WOPI-MachineName",
	"content":   "Content store: filesystem, memory or s3 (only the selected section is used)",
	"metadata":  "Metadata store: memory, badger or postgres (only the selected section is used)",
	"discovery": "WOPI client discovery document. Leave url empty to run without actions or proof keys",
	"proof":     "Require a valid X-WOPI-Proof signature (needs discovery.url)",
	"auth":      "Access tokens. Keep the secret private; rotating it invalidates every issued token",
	"host":      "Host application integration and lock behaviour",
	"adapters":  "Protocol adapters",
	"metrics":   "Prometheus endpoint",
	"gc":        "Periodic removal of stored content that no file record references",
}

// InitConfig writes a default configuration file to the default location
// and returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	configPath := GetDefaultConfigPath()
	if err := InitConfigToPath(configPath, force); err != nil {
		return "", err
	}
	return configPath, nil
}

// InitConfigToPath writes a default configuration file to configPath,
// creating parent directories as needed.
func InitConfigToPath(configPath string, force bool) error {
	if !force {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
		}
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	// The file holds the token secret
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// generateYAMLWithComments renders cfg as YAML with a header and a comment
// above every top-level section.
func generateYAMLWithComments(cfg *Config) (string, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}

	var b strings.Builder
	b.WriteString("# DittoWOPI Configuration File\n")
	b.WriteString("#\n")
	b.WriteString("# Every key can be overridden with an environment variable:\n")
	b.WriteString("#   DITTOWOPI_<SECTION>_<KEY>, e.g. DITTOWOPI_LOGGING_LEVEL=DEBUG\n")

	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if key, ok := topLevelKey(line); ok {
			if comment, found := sectionComments[key]; found {
				b.WriteString("\n# ")
				b.WriteString(comment)
				b.WriteString("\n")
			}
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return b.String(), nil
}

// topLevelKey returns the key of an unindented "key:" line.
func topLevelKey(line string) (string, bool) {
	if line == "" || line[0] == ' ' || line[0] == '#' {
		return "", false
	}
	key, _, found := strings.Cut(line, ":")
	return key, found
}
