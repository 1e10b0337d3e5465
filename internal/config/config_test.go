package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.Codec)
	assert.Equal(t, DefaultBaseURL, cfg.EndpointURL())
	assert.Equal(t, "text2img", cfg.Defaults.Mode)
	assert.Equal(t, "1:1", cfg.Defaults.AspectRatio)
	assert.Equal(t, "png", cfg.Defaults.OutputFormat)
	assert.Equal(t, time.Duration(0), cfg.HTTP.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, "imagegen.yaml", `
endpoint: https://api.example/generate
codec: bson
http:
  timeout: 45s
defaults:
  model: sd3-large
  seed: "42"
presets:
  - sd3|a kitten
  - core|a puppy
publish:
  bucket: gallery
`)
	t.Setenv("IMAGEGEN_DEFAULTS_ASPECT_RATIO", "16:9")
	t.Setenv("IMAGEGEN_API_KEY", "from-env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("model", "", "")
	flags.String("codec", "", "")
	require.NoError(t, flags.Parse([]string{"--model", "ultra"}))

	cfg, err := Load(Options{ConfigFile: path, Flags: flags})
	require.NoError(t, err)

	assert.Equal(t, "https://api.example/generate", cfg.EndpointURL())
	assert.Equal(t, "bson", cfg.Codec)
	assert.Equal(t, 45*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, "ultra", cfg.Defaults.Model)
	assert.Equal(t, "42", cfg.Defaults.Seed)
	assert.Equal(t, "16:9", cfg.Defaults.AspectRatio)
	assert.Equal(t, "from-env", cfg.APIKey)
	assert.Equal(t, []string{"sd3|a kitten", "core|a puppy"}, cfg.Presets)
	assert.Equal(t, "gallery", cfg.Publish.Bucket)
}

func TestLoadEnvFile(t *testing.T) {
	t.Chdir(t.TempDir())
	envFile := writeFile(t, ".env", "IMAGEGEN_LOG_LEVEL=debug\n")
	t.Cleanup(func() { _ = os.Unsetenv("IMAGEGEN_LOG_LEVEL") })

	cfg, err := Load(Options{EnvFile: envFile})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(Options{ConfigFile: filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, err)
}

func TestEndpointURLForBSON(t *testing.T) {
	cfg := &Config{Codec: "bson"}
	assert.Equal(t, DefaultBaseURL+"/bson", cfg.EndpointURL())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "ok", cfg: Config{Codec: "json"}},
		{name: "bad codec", cfg: Config{Codec: "xml"}, wantErr: "codec must be json or bson"},
		{name: "bad endpoint", cfg: Config{Codec: "json", Endpoint: "ftp://x"}, wantErr: "endpoint must be an http(s) URL"},
		{name: "endpoint from ssm", cfg: Config{Codec: "json", Endpoint: "::", Params: ParamsConfig{Endpoint: "/imagegen/endpoint"}}},
		{name: "bad mode", cfg: Config{Codec: "json", Defaults: FormDefaults{Mode: "video"}}, wantErr: "defaults.mode"},
		{name: "negative timeout", cfg: Config{Codec: "json", HTTP: HTTPConfig{Timeout: -time.Second}}, wantErr: "http.timeout"},
		{name: "distribution without bucket", cfg: Config{Codec: "json", Publish: PublishConfig{Distribution: "E1"}}, wantErr: "requires publish.bucket"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
