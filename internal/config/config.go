// Package config loads server and client settings.
//
// The server reads, in increasing priority: built-in defaults, an optional
// imghost.yaml (in ".", "./config" or "$HOME/.imghost"), and environment
// variables. A .env file in the working directory is loaded into the
// environment first.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gnitoahc/go-dotenv"
	"github.com/spf13/viper"
)

// Backend drivers accepted by OBJECT_BACKEND_DRIVER.
const (
	DriverSQLite = "sqlite"
	DriverR2     = "r2"
	DriverMinIO  = "minio"
)

// Server is the configuration of `imghost serve`.
type Server struct {
	HTTPAddress string
	RootPrefix  string
	Domain      string
	CDNDomain   string

	APIToken     string
	Username     string
	Password     string
	PasswordHash string
	PublicRead   bool

	Driver string
	SQLite SQLite
	R2     R2
	MinIO  MinIO

	DeleteConcurrency int
	MaxUploadBytes    int64

	LogLevel  string
	LogFormat string
}

type SQLite struct {
	Source string
}

type R2 struct {
	AccountID       string
	AccessKey       string
	SecretAccessKey string
	Bucket          string
	Endpoint        string
}

type MinIO struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	Bucket       string
	UseSSL       bool
	Region       string
	CreateBucket bool
}

var defaults = map[string]any{
	"HTTP_ADDRESS":          ":8787",
	"CUSTOM_PATH":           "uploads",
	"CUSTOM_DOMAIN":         "localhost",
	"PUBLIC_READ":           true,
	"OBJECT_BACKEND_DRIVER": DriverSQLite,
	"OBJECT_STORAGE_SOURCE": "file:object_storage.db?cache=shared",
	"MINIO_USE_SSL":         true,
	"MINIO_CREATE_BUCKET":   false,
	"DELETE_CONCURRENCY":    16,
	"MAX_UPLOAD_BYTES":      50 << 20,
	"LOG_LEVEL":             "info",
	"LOG_FORMAT":            "json",
}

// envKeys lists every key bound to an environment variable of the same
// name, including those without a default.
var envKeys = []string{
	"HTTP_ADDRESS", "CUSTOM_PATH", "CUSTOM_DOMAIN", "CDN_DOMAIN",
	"API_TOKEN", "USERNAME", "PASSWORD", "PASSWORD_HASH", "PUBLIC_READ",
	"OBJECT_BACKEND_DRIVER", "OBJECT_STORAGE_SOURCE",
	"CF_ACCOUNT_ID", "CF_ACCESS_KEY", "CF_SECRET_ACCESS_KEY", "CF_BUCKET", "CF_ENDPOINT",
	"MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_BUCKET",
	"MINIO_USE_SSL", "MINIO_REGION", "MINIO_CREATE_BUCKET",
	"DELETE_CONCURRENCY", "MAX_UPLOAD_BYTES", "LOG_LEVEL", "LOG_FORMAT",
}

// LoadServer loads .env, the optional config file and the environment.
func LoadServer() (*Server, error) {
	dotenv.Load(".env")
	return loadServer(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	v.SetConfigName("imghost")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.imghost")
	return v
}

func loadServer(v *viper.Viper) (*Server, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	cfg := &Server{
		HTTPAddress:  v.GetString("HTTP_ADDRESS"),
		RootPrefix:   strings.Trim(v.GetString("CUSTOM_PATH"), "/"),
		Domain:       v.GetString("CUSTOM_DOMAIN"),
		CDNDomain:    v.GetString("CDN_DOMAIN"),
		APIToken:     v.GetString("API_TOKEN"),
		Username:     v.GetString("USERNAME"),
		Password:     v.GetString("PASSWORD"),
		PasswordHash: v.GetString("PASSWORD_HASH"),
		PublicRead:   v.GetBool("PUBLIC_READ"),
		Driver:       strings.ToLower(v.GetString("OBJECT_BACKEND_DRIVER")),
		SQLite: SQLite{
			Source: v.GetString("OBJECT_STORAGE_SOURCE"),
		},
		R2: R2{
			AccountID:       v.GetString("CF_ACCOUNT_ID"),
			AccessKey:       v.GetString("CF_ACCESS_KEY"),
			SecretAccessKey: v.GetString("CF_SECRET_ACCESS_KEY"),
			Bucket:          v.GetString("CF_BUCKET"),
			Endpoint:        v.GetString("CF_ENDPOINT"),
		},
		MinIO: MinIO{
			Endpoint:     v.GetString("MINIO_ENDPOINT"),
			AccessKey:    v.GetString("MINIO_ACCESS_KEY"),
			SecretKey:    v.GetString("MINIO_SECRET_KEY"),
			Bucket:       v.GetString("MINIO_BUCKET"),
			UseSSL:       v.GetBool("MINIO_USE_SSL"),
			Region:       v.GetString("MINIO_REGION"),
			CreateBucket: v.GetBool("MINIO_CREATE_BUCKET"),
		},
		DeleteConcurrency: v.GetInt("DELETE_CONCURRENCY"),
		MaxUploadBytes:    v.GetInt64("MAX_UPLOAD_BYTES"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		LogFormat:         v.GetString("LOG_FORMAT"),
	}
	if cfg.RootPrefix == "" {
		cfg.RootPrefix = "uploads"
	}
	if cfg.CDNDomain == "" {
		cfg.CDNDomain = cfg.Domain
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports missing settings for the selected backend.
func (c *Server) Validate() error {
	var missing []string
	require := func(name, val string) {
		if val == "" {
			missing = append(missing, name)
		}
	}

	switch c.Driver {
	case DriverSQLite:
		require("OBJECT_STORAGE_SOURCE", c.SQLite.Source)
	case DriverR2:
		require("CF_ACCOUNT_ID", c.R2.AccountID)
		require("CF_ACCESS_KEY", c.R2.AccessKey)
		require("CF_SECRET_ACCESS_KEY", c.R2.SecretAccessKey)
		require("CF_BUCKET", c.R2.Bucket)
	case DriverMinIO:
		require("MINIO_ENDPOINT", c.MinIO.Endpoint)
		require("MINIO_BUCKET", c.MinIO.Bucket)
	default:
		return fmt.Errorf("config: unknown OBJECT_BACKEND_DRIVER %q", c.Driver)
	}
	if c.Username != "" && c.Password == "" && c.PasswordHash == "" {
		missing = append(missing, "PASSWORD or PASSWORD_HASH")
	}

	if len(missing) > 0 {
		return fmt.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}
