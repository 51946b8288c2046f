package config

import (
	"fmt"
	"strings"
	"testing"
)

// mapBackend is an in-memory Backend for tests.
type mapBackend struct {
	data map[string]any
}

func (b *mapBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Sprintf("%v", v), true, nil
	}
	return s, true, nil
}

func (b *mapBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	i, ok := v.(int)
	if !ok {
		return 0, true, fmt.Errorf("invalid type for %s", key)
	}
	return i, true, nil
}

func (b *mapBackend) SetString(key, val string) error { b.data[key] = val; return nil }
func (b *mapBackend) SetInt(key string, val int) error { b.data[key] = val; return nil }
func (b *mapBackend) Delete(key string) error          { delete(b.data, key); return nil }

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadWith(&mapBackend{data: map[string]any{}})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Server.Port != 4100 || cfg.Server.MCPPort != 4101 {
		t.Errorf("default ports = %d/%d", cfg.Server.Port, cfg.Server.MCPPort)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("default base url = %q", cfg.Ollama.BaseURL)
	}
	if cfg.Ollama.AnalysisModel == "" || cfg.Ollama.EmbedModel == "" {
		t.Error("default models must not be empty")
	}
	if cfg.Retrieval.TopK != 5 {
		t.Errorf("default top_k = %d", cfg.Retrieval.TopK)
	}
	if !strings.HasSuffix(cfg.Storage.DataDir, "halcyon") && cfg.Storage.DataDir != "halcyon-data" {
		t.Errorf("unexpected data dir %q", cfg.Storage.DataDir)
	}
}

func TestLoad_BackendOverrides(t *testing.T) {
	b := &mapBackend{data: map[string]any{
		"server.port":           5000,
		"ollama.analysis_model": "qwen3",
		"log.level":             "debug",
	}}

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Ollama.AnalysisModel != "qwen3" {
		t.Errorf("analysis model = %q", cfg.Ollama.AnalysisModel)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
}

func TestLoad_EnvOverridesBackend(t *testing.T) {
	t.Setenv("HALCYON_SERVER_PORT", "6000")
	t.Setenv("HALCYON_OLLAMA_EMBED_MODEL", "mxbai-embed-large")

	b := &mapBackend{data: map[string]any{"server.port": 5000}}
	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 6000 {
		t.Errorf("port = %d, want env override 6000", cfg.Server.Port)
	}
	if cfg.Ollama.EmbedModel != "mxbai-embed-large" {
		t.Errorf("embed model = %q", cfg.Ollama.EmbedModel)
	}
}

func TestLoad_BadEnvIntKeepsDefault(t *testing.T) {
	t.Setenv("HALCYON_RETRIEVAL_TOP_K", "lots")

	cfg, err := loadWith(&mapBackend{data: map[string]any{}})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Retrieval.TopK != 5 {
		t.Errorf("top_k = %d, want default 5", cfg.Retrieval.TopK)
	}
}

func TestLoad_BackendTypeError(t *testing.T) {
	b := &mapBackend{data: map[string]any{"server.port": "not-an-int-backend-type"}}
	// mapBackend reports a type error for non-int values under int keys.
	b.data["server.port"] = 3.5

	if _, err := loadWith(b); err == nil {
		t.Fatal("expected error for bad backend value")
	}
}

func TestShowAll_CoversEveryKey(t *testing.T) {
	cfg, err := loadWith(&mapBackend{data: map[string]any{}})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	infos := ShowAll(cfg)
	if len(infos) != len(ValidKeys()) {
		t.Fatalf("ShowAll returned %d keys, ValidKeys %d", len(infos), len(ValidKeys()))
	}
	for _, info := range infos {
		if info.Key == "" || info.EnvVar == "" {
			t.Errorf("incomplete key info: %+v", info)
		}
		if !strings.HasPrefix(info.EnvVar, "HALCYON_") {
			t.Errorf("env var %q missing prefix", info.EnvVar)
		}
	}
}

func TestAPIToken_CreateAndReload(t *testing.T) {
	dir := t.TempDir()

	token, err := APIToken(dir)
	if err != nil {
		t.Fatalf("APIToken: %v", err)
	}
	if len(token) != 64 {
		t.Fatalf("token length = %d, want 64 hex chars", len(token))
	}

	again, err := APIToken(dir)
	if err != nil {
		t.Fatalf("APIToken reload: %v", err)
	}
	if again != token {
		t.Error("token not stable across loads")
	}
}
