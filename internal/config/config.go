package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultUploadConfigPath = "upload-config.yaml"

type Config struct {
	Port         string
	APIURL       string
	APIKey       string
	S3Bucket     string
	S3Region     string
	S3Endpoint   string
	AWSAccessKey string
	AWSSecretKey string
	DBDriver     string
	DBPath       string
	DatabaseURL  string
	LogLevel     string
	CORSOrigins  []string
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8080"),
		APIURL:       getEnv("UPLOAD_API_URL", "http://localhost:8080"),
		APIKey:       getEnv("API_KEY", ""),
		S3Bucket:     getEnv("S3_BUCKET", ""),
		S3Region:     getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:   getEnv("S3_ENDPOINT", ""),
		AWSAccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DBDriver:     getEnv("DB_DRIVER", "sqlite"),
		DBPath:       getEnv("DB_PATH", "uploadflow.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		CORSOrigins:  splitList(getEnv("CORS_ORIGINS", "*")),
	}
}

type PreviewOptions struct {
	Enabled   bool   `yaml:"enabled"`
	Width     int    `yaml:"width"`
	Quality   int    `yaml:"quality"`
	ConvertTo string `yaml:"convert_to"`
}

// Profile describes how one kind of upload field behaves, on the client
// (acceptance, fan-out, previews) and on the presign side (TTL, key layout).
type Profile struct {
	Accept           string         `yaml:"accept"`
	Multiple         *bool          `yaml:"multiple"`
	SingleImageMode  bool           `yaml:"single_image_mode"`
	Concurrency      int            `yaml:"concurrency"`
	ProgressInterval time.Duration  `yaml:"progress_interval"`
	TokenTTLSeconds  int64          `yaml:"token_ttl_seconds"`
	PathTemplate     string         `yaml:"path_template"`
	EnableSharding   bool           `yaml:"enable_sharding"`
	MaxFiles         int            `yaml:"max_files"`
	Preview          PreviewOptions `yaml:"preview"`
}

// IsMultiple defaults to true when the profile does not say otherwise.
func (p *Profile) IsMultiple() bool {
	return p.Multiple == nil || *p.Multiple
}

func (p *Profile) TokenTTL() time.Duration {
	return time.Duration(p.TokenTTLSeconds) * time.Second
}

type UploadConfig struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// UploadConfigPath returns the profile file location from the environment.
func UploadConfigPath() string {
	return getEnv("UPLOAD_CONFIG_PATH", defaultUploadConfigPath)
}

// LoadUploadConfig reads the profile file at path. A missing file at the
// default location yields an empty config so built-in defaults apply.
func LoadUploadConfig(path string) (*UploadConfig, error) {
	if path == "" {
		path = defaultUploadConfigPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == defaultUploadConfigPath {
			return &UploadConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read upload config: %w", err)
	}

	var config UploadConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse upload config: %w", err)
	}

	return &config, nil
}

// GetProfile returns the named profile, else the "default" one, else the
// built-in defaults. Unset fields are filled from the defaults.
func (uc *UploadConfig) GetProfile(name string) *Profile {
	if profile, exists := uc.Profiles[name]; exists {
		return withDefaults(profile)
	}

	// Return default if profile not found
	if defaultProfile, exists := uc.Profiles["default"]; exists {
		return withDefaults(defaultProfile)
	}

	// Fallback to hardcoded default
	return DefaultProfile()
}

func DefaultProfile() *Profile {
	return &Profile{
		TokenTTLSeconds: 900,
		PathTemplate:    "{parent_uuid}/{file_uuid}/{filename}",
		MaxFiles:        1000,
		Preview: PreviewOptions{
			Width:     256,
			Quality:   80,
			ConvertTo: "jpeg",
		},
	}
}

func withDefaults(p Profile) *Profile {
	d := DefaultProfile()

	if p.TokenTTLSeconds <= 0 {
		p.TokenTTLSeconds = d.TokenTTLSeconds
	}
	if p.PathTemplate == "" {
		p.PathTemplate = d.PathTemplate
	}
	if p.MaxFiles <= 0 {
		p.MaxFiles = d.MaxFiles
	}
	if p.Preview.Width <= 0 {
		p.Preview.Width = d.Preview.Width
	}
	if p.Preview.Quality <= 0 {
		p.Preview.Quality = d.Preview.Quality
	}
	if p.Preview.ConvertTo == "" {
		p.Preview.ConvertTo = d.Preview.ConvertTo
	}

	return &p
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
