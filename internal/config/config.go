// Package config handles loading and parsing application configuration.
// It supports two sources for the YAML file (in priority order):
//  1. An environment variable:  CONFIG_PATH=/path/to/config.yaml
//  2. A command-line flag:      --config=/path/to/config.yaml
//
// Before the YAML is read, an optional .env file is loaded into the
// process environment so secrets (gateway keys, Supabase keys) can live
// outside the YAML file. Environment variables always win over YAML.
package config

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config is the root configuration structure.
// Every field maps to a key in the YAML file AND can be overridden
// by the corresponding environment variable (env:"...").
//
// Only the settings needed to boot the server are env-required. Missing
// gateway or Supabase keys are reported per request instead, so the
// dashboard can show a "not configured" error rather than a dead server.
type Config struct {
	// Env controls log format and verbosity.
	// Valid values: "dev", "staging", "prod"
	Env string `yaml:"env" env:"ENV" env-required:"true"`

	// StoragePath is the filesystem path to the SQLite unlock ledger.
	StoragePath string `yaml:"storage_path" env:"STORAGE_PATH" env-required:"true"`

	HTTPServer `yaml:"http_server"`

	Razorpay Razorpay `yaml:"razorpay"`
	Supabase Supabase `yaml:"supabase"`
	Unlock   Unlock   `yaml:"unlock"`

	// AdminEmails is the comma-separated allowlist of users who skip payment.
	AdminEmails string `yaml:"admin_emails" env:"ADMIN_EMAILS,NEXT_PUBLIC_ADMIN_EMAILS"`
}

// HTTPServer holds settings specific to the HTTP server.
// Nested under http_server: in the YAML file.
type HTTPServer struct {
	// Addr is the TCP address the server listens on, e.g. "localhost:8082".
	Addr string `yaml:"address" env:"HTTP_SERVER_ADDR" env-required:"true"`
}

// Razorpay holds the payment gateway credentials.
// KeyID falls back to the public key name used by the browser bundle.
type Razorpay struct {
	KeyID     string `yaml:"key_id"     env:"RAZORPAY_KEY_ID,NEXT_PUBLIC_RAZORPAY_KEY_ID"`
	KeySecret string `yaml:"key_secret" env:"RAZORPAY_KEY_SECRET"`
	APIURL    string `yaml:"api_url"    env:"RAZORPAY_API_URL" env-default:"https://api.razorpay.com/v1"`
	Currency  string `yaml:"currency"   env:"RAZORPAY_CURRENCY" env-default:"INR"`
}

// Supabase holds the backend-as-a-service project settings.
type Supabase struct {
	URL            string `yaml:"url"              env:"SUPABASE_URL,NEXT_PUBLIC_SUPABASE_URL"`
	AnonKey        string `yaml:"anon_key"         env:"SUPABASE_ANON_KEY,NEXT_PUBLIC_SUPABASE_ANON_KEY"`
	ServiceRoleKey string `yaml:"service_role_key" env:"SUPABASE_SERVICE_ROLE_KEY"`

	// JWTSecret enables local validation of access tokens. When empty,
	// tokens are checked by asking Supabase Auth for the user.
	JWTSecret string `yaml:"jwt_secret" env:"SUPABASE_JWT_SECRET"`

	StudentsTable string `yaml:"students_table" env:"SUPABASE_STUDENTS_TABLE" env-default:"students"`
}

// Unlock holds the price of revealing one student's details.
type Unlock struct {
	// DefaultAmount is used when the browser sends no usable amount,
	// in major currency units.
	DefaultAmount float64 `yaml:"default_amount" env:"UNLOCK_DEFAULT_AMOUNT" env-default:"10"`
}

// AdminList splits AdminEmails into its entries.
func (c *Config) AdminList() []string {
	return strings.Split(c.AdminEmails, ",")
}

// MustLoad reads, validates, and returns the application config.
//
// Functions prefixed with "Must" are allowed to fatal on failure.
// Callers do not need to check a returned error — if this function
// returns, the config is valid.
func MustLoad() *Config {
	loadDotEnv()

	configPath := os.Getenv("CONFIG_PATH")

	if configPath == "" {
		flags := flag.String("config", "", "Path to the configuration YAML file")
		flag.Parse()
		configPath = *flags
	}

	if configPath == "" {
		log.Fatal("config path is not set: use --config flag or CONFIG_PATH env var")
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err.Error())
	}

	return cfg
}

// Load reads the YAML file at path, applies environment overrides and
// defaults, and checks env-required fields.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadDotEnv loads DOTENV_PATH (default ".env") into the environment.
// Variables that are already set are not overwritten. A missing file
// is not an error; an unreadable one is.
func loadDotEnv() {
	path := os.Getenv("DOTENV_PATH")
	if path == "" {
		path = ".env"
	}

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			log.Fatalf("config: stat %s: %v", path, err)
		}
		return
	}

	if err := godotenv.Load(path); err != nil {
		log.Fatalf("config: load %s: %v", path, err)
	}
}
