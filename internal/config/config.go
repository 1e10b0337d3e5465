package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const DefaultBaseURL = "http://localhost:8000/api/image/stability"

// Config is merged from imagegen.yaml, IMAGEGEN_* environment variables and
// command line flags, in increasing order of precedence.
type Config struct {
	Endpoint string         `mapstructure:"endpoint"`
	Codec    string         `mapstructure:"codec"`
	APIKey   string         `mapstructure:"api_key"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Defaults FormDefaults   `mapstructure:"defaults"`
	Log      LogConfig      `mapstructure:"log"`
	Params   ParamsConfig   `mapstructure:"params"`
	Presets  []string       `mapstructure:"presets"`
	Output   OutputConfig   `mapstructure:"output"`
	Publish  PublishConfig  `mapstructure:"publish"`
	Download DownloadConfig `mapstructure:"download"`
}

type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type FormDefaults struct {
	Mode           string `mapstructure:"mode"`
	Model          string `mapstructure:"model"`
	NegativePrompt string `mapstructure:"negative_prompt"`
	AspectRatio    string `mapstructure:"aspect_ratio"`
	Seed           string `mapstructure:"seed"`
	OutputFormat   string `mapstructure:"output_format"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// ParamsConfig holds SSM parameter paths. A set path wins over the plain value.
type ParamsConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`
	Presets  string `mapstructure:"presets"`
}

type OutputConfig struct {
	HTML string `mapstructure:"html"`
}

type PublishConfig struct {
	Bucket       string `mapstructure:"bucket"`
	Distribution string `mapstructure:"distribution"`
	SiteURL      string `mapstructure:"site_url"`
}

type DownloadConfig struct {
	Dir string `mapstructure:"dir"`
}

type Options struct {
	ConfigFile string
	EnvFile    string
	Flags      *pflag.FlagSet
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"endpoint":        "endpoint",
	"codec":           "codec",
	"api-key":         "api_key",
	"timeout":         "http.timeout",
	"mode":            "defaults.mode",
	"model":           "defaults.model",
	"negative-prompt": "defaults.negative_prompt",
	"aspect-ratio":    "defaults.aspect_ratio",
	"seed":            "defaults.seed",
	"output-format":   "defaults.output_format",
	"log-level":       "log.level",
	"html":            "output.html",
	"save-dir":        "download.dir",
	"bucket":          "publish.bucket",
}

func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		_ = godotenv.Load(opts.EnvFile)
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else if cfg := os.Getenv("IMAGEGEN_CONFIG_FILE"); cfg != "" {
		v.SetConfigFile(cfg)
	} else {
		v.SetConfigName("imagegen")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("IMAGEGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("endpoint", "")
	v.SetDefault("codec", "json")
	v.SetDefault("api_key", "")
	v.SetDefault("http.timeout", "0s")
	v.SetDefault("defaults.mode", "text2img")
	v.SetDefault("defaults.model", "stability.stable-image-core-v1:0")
	v.SetDefault("defaults.negative_prompt", "")
	v.SetDefault("defaults.aspect_ratio", "1:1")
	v.SetDefault("defaults.seed", "")
	v.SetDefault("defaults.output_format", "png")
	v.SetDefault("log.level", "info")
	v.SetDefault("params.endpoint", "")
	v.SetDefault("params.api_key", "")
	v.SetDefault("params.presets", "")
	v.SetDefault("presets", []string{})
	v.SetDefault("output.html", "")
	v.SetDefault("publish.bucket", "")
	v.SetDefault("publish.distribution", "")
	v.SetDefault("publish.site_url", "")
	v.SetDefault("download.dir", "")
}

// EndpointURL is the configured endpoint, or the local default with the
// /bson suffix the BSON deployment listens on.
func (c *Config) EndpointURL() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	if strings.EqualFold(c.Codec, "bson") {
		return DefaultBaseURL + "/bson"
	}
	return DefaultBaseURL
}

func (c *Config) Validate() error {
	var problems []string

	switch strings.ToLower(c.Codec) {
	case "json", "bson":
	default:
		problems = append(problems, fmt.Sprintf("codec must be json or bson, got %q", c.Codec))
	}

	if c.Params.Endpoint == "" {
		u, err := url.Parse(c.EndpointURL())
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			problems = append(problems, fmt.Sprintf("endpoint must be an http(s) URL, got %q", c.EndpointURL()))
		}
	}

	switch strings.ToLower(c.Defaults.Mode) {
	case "", "text2img", "img2img":
	default:
		problems = append(problems, fmt.Sprintf("defaults.mode must be text2img or img2img, got %q", c.Defaults.Mode))
	}

	if c.HTTP.Timeout < 0 {
		problems = append(problems, "http.timeout must not be negative")
	}

	if c.Publish.Distribution != "" && c.Publish.Bucket == "" {
		problems = append(problems, "publish.distribution requires publish.bucket")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
