package models

import (
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
)

const initialConfigJSON = `{
  "hosts": {
    "10.0.0.1": {"username": "admin", "password": "a10"},
    "10.0.0.2": {"username": "admin", "password": "a10"}
  }
}`

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
}

func loadedSafeConfig(t *testing.T, path string) *SafeConfig {
	t.Helper()
	sc := NewSafeConfig(&Config{})
	if _, err := sc.ReloadConfig(path); err != nil {
		t.Fatalf("Initial reload failed: %v", err)
	}
	return sc
}

func TestNewSafeConfig(t *testing.T) {
	cfg := &Config{}
	sc := NewSafeConfig(cfg)

	if sc == nil {
		t.Fatal("NewSafeConfig returned nil")
	}
	if sc.C != cfg {
		t.Error("SafeConfig.C does not point to the original config")
	}
}

func TestSafeConfigCredentials(t *testing.T) {
	cfg := newValidConfig()
	sc := NewSafeConfig(&cfg)

	creds, ok := sc.Credentials(testApplianceHost)
	if !ok {
		t.Fatal("Expected configured host to be found")
	}
	if creds.Username != testUsername || creds.Password != testPassword {
		t.Errorf("Unexpected credentials: %+v", creds)
	}
	if _, ok := sc.Credentials("192.0.2.1"); ok {
		t.Error("Expected unknown host to be missing")
	}
}

func TestSafeConfigConcurrentAccess(t *testing.T) {
	cfg := newValidConfig()
	sc := NewSafeConfig(&cfg)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = sc.Credentials(testApplianceHost)
			_ = sc.Get().Server.Host
		}()
	}
	wg.Wait()
}

func TestSafeConfigReloadUnchanged(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, configPath, initialConfigJSON)
	sc := loadedSafeConfig(t, configPath)

	changed, err := sc.ReloadConfig(configPath)
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if len(changed) != 0 {
		t.Errorf("Expected no changed hosts, got %v", changed)
	}
}

func TestSafeConfigReloadHostsChanged(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, configPath, initialConfigJSON)
	sc := loadedSafeConfig(t, configPath)

	writeConfig(t, configPath, `{
  "hosts": {
    "10.0.0.1": {"username": "admin", "password": "rotated"},
    "10.0.0.3": {"username": "admin", "password": "a10"}
  }
}`)

	changed, err := sc.ReloadConfig(configPath)
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	want := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}
	if !reflect.DeepEqual(changed, want) {
		t.Errorf("Expected changed hosts %v, got %v", want, changed)
	}

	creds, ok := sc.Credentials("10.0.0.1")
	if !ok || creds.Password != "rotated" {
		t.Errorf("Expected rotated password, got %+v", creds)
	}
	if _, ok := sc.Credentials("10.0.0.2"); ok {
		t.Error("Expected removed host to be gone")
	}
}

func TestSafeConfigReloadFileNotFound(t *testing.T) {
	cfg := newValidConfig()
	sc := NewSafeConfig(&cfg)

	_, err := sc.ReloadConfig("/nonexistent/path/config.json")
	if err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestSafeConfigReloadInvalidConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, configPath, `{"hosts": {}}`)

	cfg := newValidConfig()
	sc := NewSafeConfig(&cfg)

	if _, err := sc.ReloadConfig(configPath); err == nil {
		t.Error("Expected error for config without hosts")
	}

	if _, ok := sc.Credentials(testApplianceHost); !ok {
		t.Error("Expected original config to be preserved")
	}
}

func TestSafeConfigReloadMalformed(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, configPath, `{"hosts": {"10.0.0.1": `)

	cfg := newValidConfig()
	sc := NewSafeConfig(&cfg)

	if _, err := sc.ReloadConfig(configPath); err == nil {
		t.Error("Expected error for malformed JSON")
	}
	if sc.Get() != &cfg {
		t.Error("Expected original config pointer to be preserved")
	}
}

func TestSafeConfigConcurrentReload(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, configPath, initialConfigJSON)
	sc := loadedSafeConfig(t, configPath)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, _ = sc.Credentials("10.0.0.1")
			}
		}()
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 3; j++ {
				_, _ = sc.ReloadConfig(configPath)
			}
		}()
	}
	wg.Wait()
}
