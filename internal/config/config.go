package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var configLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	configLogger = l
}

// Config represents the complete configuration structure
type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Server  ServerConfig  `yaml:"server"`
	GitHub  GitHubConfig  `yaml:"github"`
	Auth    AuthConfig    `yaml:"auth"`
	Editor  EditorConfig  `yaml:"editor"`
	Render  RenderConfig  `yaml:"render"`
	Images  ImagesConfig  `yaml:"images"`
	Logging LoggingConfig `yaml:"logging"`
}

type LoggingConfig struct {
	Level string `yaml:"level" default:"info"`
}

type SiteConfig struct {
	Name        string `yaml:"name" default:"Scribe"`
	Description string `yaml:"description" default:"A GitHub-backed blog editor"`
}

type ServerConfig struct {
	Host string `yaml:"host" default:"0.0.0.0"`
	Port string `yaml:"port" default:"8000"`
}

// GitHubConfig locates the blog content inside the target repository.
// OAuth client credentials are deliberately kept out of the file and read
// from the environment instead (GITHUB_CLIENT_ID, GITHUB_CLIENT_SECRET).
type GitHubConfig struct {
	Owner       string `yaml:"owner" default:""`
	Repo        string `yaml:"repo" default:""`
	Branch      string `yaml:"branch" default:"main"`
	ContentPath string `yaml:"content_path" default:"src/content/blog"`
}

type AuthConfig struct {
	RedirectURL     string `yaml:"redirect_url" default:"http://localhost:8000/api/auth/callback"`
	FrontendURL     string `yaml:"frontend_url" default:"http://localhost:3000"`
	SessionTTLHours int    `yaml:"session_ttl_hours" default:"168"`
	SecureCookies   bool   `yaml:"secure_cookies" default:"false"`
}

type EditorConfig struct {
	Autosave AutosaveConfig `yaml:"autosave"`
	Drafts   DraftsConfig   `yaml:"drafts"`
}

type AutosaveConfig struct {
	DirtyCheckIntervalSeconds int `yaml:"dirty_check_interval_seconds" default:"1"`
	PersistIntervalSeconds    int `yaml:"persist_interval_seconds" default:"5"`
}

// DraftsConfig selects the draft store backend. "sqlite" keeps drafts in the
// application database, "fs" writes one JSON file per context under Dir,
// "memory" keeps them for the lifetime of the process only. Compression
// applies to the sqlite backend: "zstd" or "gzip".
type DraftsConfig struct {
	Store       string `yaml:"store" default:"sqlite"`
	Dir         string `yaml:"dir" default:"./drafts"`
	Database    string `yaml:"database" default:"./scribe.db"`
	Compression string `yaml:"compression" default:"zstd"`
}

type RenderConfig struct {
	SyntaxTheme string `yaml:"syntax_theme" default:"gruvbox"`
}

type ImagesConfig struct {
	MaxUploadSizeMB int `yaml:"max_upload_size_mb" default:"5"`
	MaxDimension    int `yaml:"max_dimension" default:"1920"`
	JPEGQuality     int `yaml:"jpeg_quality" default:"85"`
}

var AppConfig *Config

func LoadConfig(path string) error {
	config := &Config{}

	// Apply default values first
	applyDefaults(config)

	// Try to read and parse the config file
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		// Only a genuinely missing file falls back to defaults
		configLogger.Info().Str("path", path).Msg("Config file not found, using defaults")
		AppConfig = config
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	AppConfig = config
	return nil
}

func ApplyDefaults(config interface{}) {
	applyDefaults(config)
}

func applyDefaults(config interface{}) {
	v := reflect.ValueOf(config)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.IsValid() || !field.CanSet() {
			continue
		}

		// Recursively apply defaults to nested structs
		if field.Kind() == reflect.Struct {
			applyDefaults(field.Addr().Interface())
			continue
		}

		defaultValue := fieldType.Tag.Get("default")
		if defaultValue == "" {
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(defaultValue)
		case reflect.Bool:
			if val, err := strconv.ParseBool(defaultValue); err == nil {
				field.SetBool(val)
			}
		case reflect.Int:
			if val, err := strconv.ParseInt(defaultValue, 10, 64); err == nil {
				field.SetInt(val)
			}
		case reflect.Float64:
			if val, err := strconv.ParseFloat(defaultValue, 64); err == nil {
				field.SetFloat(val)
			}
		case reflect.Slice:
			if field.Len() == 0 && field.Type().Elem().Kind() == reflect.String {
				parts := strings.Split(defaultValue, ",")
				slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
				for j, part := range parts {
					slice.Index(j).SetString(strings.TrimSpace(part))
				}
				field.Set(slice)
			}
		default:
			configLogger.Warn().
				Str("field_name", fieldType.Name).
				Str("field_type", field.Kind().String()).
				Msg("Unsupported field type for default value")
		}
	}
}
