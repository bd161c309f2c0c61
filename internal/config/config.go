package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Keycloak   KeycloakConfig   `mapstructure:"keycloak"`
	Settings   SettingsConfig   `mapstructure:"settings"`
	Membership MembershipConfig `mapstructure:"membership"`
	Auth       AuthConfig       `mapstructure:"auth"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type KafkaConfig struct {
	// Enabled turns the login/role event consumer on. The admin API works without it.
	Enabled         bool     `mapstructure:"enabled"`
	Brokers         []string `mapstructure:"brokers"`
	ConsumerGroupID string   `mapstructure:"consumer_group_id"`
	Topics          []string `mapstructure:"topics"`
}

type KeycloakConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// AdminRealm is the realm used to obtain admin access tokens (usually "master").
	AdminRealm string `mapstructure:"admin_realm"`
	// Realm is the realm whose users and roles are synchronized.
	Realm string `mapstructure:"realm"`
	// AdminClientID and AdminClientSecret are credentials for the admin API client.
	AdminClientID     string `mapstructure:"admin_client_id"`
	AdminClientSecret string `mapstructure:"admin_client_secret"`
}

type SettingsConfig struct {
	// Backend is "postgres" or "file".
	Backend string `mapstructure:"backend"`
	// Dir holds the YAML settings files for the "file" backend.
	Dir  string `mapstructure:"dir"`
	Name string `mapstructure:"name"`
}

type MembershipConfig struct {
	// Match is "line" (trimmed line equals username) or "substring".
	Match string `mapstructure:"match"`
	// ReservedRoles can never be selected in a mapping.
	ReservedRoles []string `mapstructure:"reserved_roles"`
}

type AuthConfig struct {
	// AdminRole is the realm role required on the admin API.
	AdminRole    string        `mapstructure:"admin_role"`
	JWKSRefresh  time.Duration `mapstructure:"jwks_refresh"`
	Leeway       time.Duration `mapstructure:"leeway"`
	VerifyIssuer bool          `mapstructure:"verify_issuer"`
}

// Load reads configuration from environment variables and config files.
// Environment variables override file values. Prefix: ARDA_ROLESYNC_
func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", "8091")
	v.SetDefault("server.env", "development")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "arda_rolesync")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "password")
	v.SetDefault("kafka.enabled", true)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.consumer_group_id", "arda-rolesync-group")
	v.SetDefault("kafka.topics", []string{"iam-events", "rolesync-commands"})
	v.SetDefault("keycloak.base_url", "http://localhost:8081")
	v.SetDefault("keycloak.admin_realm", "master")
	v.SetDefault("keycloak.realm", "arda")
	v.SetDefault("keycloak.admin_client_id", "arda-rolesync-service")
	v.SetDefault("settings.backend", "postgres")
	v.SetDefault("settings.dir", "./data")
	v.SetDefault("settings.name", "permissions_from_file.settings")
	v.SetDefault("membership.match", "line")
	v.SetDefault("membership.reserved_roles", []string{"offline_access", "uma_authorization"})
	v.SetDefault("auth.admin_role", "rolesync-admin")
	v.SetDefault("auth.jwks_refresh", 5*time.Minute)
	v.SetDefault("auth.leeway", 30*time.Second)
	v.SetDefault("auth.verify_issuer", true)

	// Environment variables (e.g. ARDA_ROLESYNC_DATABASE_HOST -> database.host)
	v.SetEnvPrefix("ARDA_ROLESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Also support simple env vars without prefix for Docker Compose convenience
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.name", "DB_NAME")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("keycloak.base_url", "KEYCLOAK_URL")
	v.BindEnv("keycloak.realm", "KEYCLOAK_REALM")
	v.BindEnv("keycloak.admin_realm", "KEYCLOAK_ADMIN_REALM")
	v.BindEnv("keycloak.admin_client_id", "KEYCLOAK_ADMIN_CLIENT_ID")
	v.BindEnv("keycloak.admin_client_secret", "KEYCLOAK_ADMIN_CLIENT_SECRET")
	v.BindEnv("server.port", "PORT")

	// Try loading config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig() // Not required

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Keycloak creates one default composite role per realm.
	cfg.Membership.ReservedRoles = append(cfg.Membership.ReservedRoles, "default-roles-"+cfg.Keycloak.Realm)

	return &cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return "host=" + d.Host +
		" port=" + strconv.Itoa(d.Port) +
		" dbname=" + d.Name +
		" user=" + d.User +
		" password=" + d.Password +
		" sslmode=disable"
}

// Issuer returns the token issuer URL of the managed realm.
func (k KeycloakConfig) Issuer() string {
	return strings.TrimSuffix(k.BaseURL, "/") + "/realms/" + k.Realm
}

// JWKSURL returns the JWKS endpoint of the managed realm.
func (k KeycloakConfig) JWKSURL() string {
	return k.Issuer() + "/protocol/openid-connect/certs"
}
