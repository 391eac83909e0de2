package cliconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestApplyFileConfig(t *testing.T) {
	falseVal := false

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies all valid config values",
			fileConfig: FileConfig{
				Store:         "s3://problems?endpoint=localhost:9000",
				ProblemType:   "pubo",
				Compress:      &falseVal,
				TermThreshold: 500,
				QueueWait:     "250ms",
				MaxUploadRate: 1 << 20,
			},
			changed: map[string]bool{},
			initial: Config{Compress: true},
			expected: Config{
				Store:         "s3://problems?endpoint=localhost:9000",
				ProblemType:   "pubo",
				Compress:      false,
				TermThreshold: 500,
				QueueWait:     250 * time.Millisecond,
				MaxUploadRate: 1 << 20,
			},
		},
		{
			name: "respects changed flags",
			fileConfig: FileConfig{
				Store:     "file:///var/problems",
				Container: "from-file",
			},
			changed: map[string]bool{"store": true},
			initial: Config{
				Store: "mem://",
			},
			expected: Config{
				Store:     "mem://", // unchanged because flag was set
				Container: "from-file",
			},
		},
		{
			name: "nil bool leaves value",
			fileConfig: FileConfig{
				Region: "eu-west-1",
			},
			changed: map[string]bool{},
			initial: Config{Compress: true},
			expected: Config{
				Region:   "eu-west-1",
				Compress: true,
			},
		},
		{
			name: "returns error for invalid duration",
			fileConfig: FileConfig{
				QueueWait: "soon",
			},
			changed: map[string]bool{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)

			if tt.wantErr {
				if err == nil {
					t.Error("ApplyFileConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyFileConfig() unexpected error: %v", err)
			}
			if cfg != tt.expected {
				t.Errorf("ApplyFileConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	tomlContent := `
store = "gs://problems"
container = "team-a"
problem_type = "ising"
compress = false
size_threshold = 2048
queue_wait = "2s"
credentials_file = "/etc/gcs.json"
log_level = "debug"
`

	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	fc, err := LoadFileConfig(configPath)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}

	if fc.Store != "gs://problems" {
		t.Errorf("Store = %v, want gs://problems", fc.Store)
	}
	if fc.Container != "team-a" {
		t.Errorf("Container = %v, want team-a", fc.Container)
	}
	if fc.Compress == nil || *fc.Compress {
		t.Errorf("Compress = %v, want false", fc.Compress)
	}
	if fc.SizeThreshold != 2048 {
		t.Errorf("SizeThreshold = %v, want 2048", fc.SizeThreshold)
	}
	if fc.QueueWait != "2s" {
		t.Errorf("QueueWait = %v, want 2s", fc.QueueWait)
	}
	if fc.CredentialsFile != "/etc/gcs.json" {
		t.Errorf("CredentialsFile = %v", fc.CredentialsFile)
	}
	if fc.LogLevel != "debug" {
		t.Errorf("LogLevel = %v, want debug", fc.LogLevel)
	}
}

func TestLoadFileConfig_InvalidFile(t *testing.T) {
	_, err := LoadFileConfig("/nonexistent/path/config.toml")
	if err == nil {
		t.Error("LoadFileConfig() expected error for nonexistent file")
	}
}

func TestLoadFileConfig_InvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.toml")

	invalidContent := `
store = "mem://"
this is not valid toml
`

	if err := os.WriteFile(configPath, []byte(invalidContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	_, err := LoadFileConfig(configPath)
	if err == nil {
		t.Error("LoadFileConfig() expected error for invalid TOML")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()

	if path != "" && !strings.Contains(path, ".termstream") {
		t.Errorf("DefaultConfigPath() = %v, should contain .termstream", path)
	}
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	existingFile := filepath.Join(tmpDir, "exists.txt")

	if err := os.WriteFile(existingFile, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if !FileExists(existingFile) {
		t.Error("FileExists() = false, want true for existing file")
	}

	if FileExists(filepath.Join(tmpDir, "nonexistent.txt")) {
		t.Error("FileExists() = true, want false for nonexistent file")
	}
}
