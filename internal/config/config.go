// Package config loads gateway configuration from the environment.
package config

import (
	"strings"
	"time"

	"telecare-calling/pkg/constants"
	"telecare-calling/pkg/env"
)

// Config holds the environment configuration for the calling gateway.
type Config struct {
	Env  string `env:"ENV"`
	Port string `env:"PORT"`

	// Document store backing signaling. "memory" keeps everything
	// in-process; "firestore" uses the shared Firestore project.
	StoreBackend        string `env:"STORE_BACKEND"`
	FirestoreProjectID  string `env:"FIRESTORE_PROJECT_ID"`
	FirestoreCredsPath  string `env:"FIRESTORE_CREDENTIALS_PATH"`

	RedisHost     string `env:"REDIS_HOST"`
	RedisPort     string `env:"REDIS_PORT"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	DBHost     string `env:"DB_HOST"`
	DBPort     string `env:"DB_PORT"`
	DBUser     string `env:"DB_USER"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME"`
	DBSSLMode  string `env:"DB_SSLMODE"`

	CassandraHosts    string `env:"CASSANDRA_HOSTS"`
	CassandraKeyspace string `env:"CASSANDRA_KEYSPACE"`

	LogLevel  string `env:"LOG_LEVEL"`
	LogFormat string `env:"LOG_FORMAT"`

	RingTimeout    time.Duration `env:"RING_TIMEOUT"`
	AllowedOrigins string        `env:"WS_ALLOWED_ORIGINS"`
	STUNServers    string        `env:"STUN_SERVERS"`
}

// LoadConfig reads configuration from the environment (or Docker secrets
// via the _FILE convention), applying development defaults.
func LoadConfig() *Config {
	return &Config{
		Env:  env.GetString("ENV", "development"),
		Port: env.GetString("PORT", "8084"),

		StoreBackend:       env.GetString("STORE_BACKEND", "memory"),
		FirestoreProjectID: env.GetStringFromFile("FIRESTORE_PROJECT_ID", ""),
		FirestoreCredsPath: env.GetString("FIRESTORE_CREDENTIALS_PATH", ""),

		RedisHost:     env.GetString("REDIS_HOST", "localhost"),
		RedisPort:     env.GetString("REDIS_PORT", "6379"),
		RedisPassword: env.GetStringFromFile("REDIS_PASSWORD", ""),

		DBHost:     env.GetString("DB_HOST", "localhost"),
		DBPort:     env.GetString("DB_PORT", "26257"),
		DBUser:     env.GetString("DB_USER", "root"),
		DBPassword: env.GetStringFromFile("DB_PASSWORD", ""),
		DBName:     env.GetString("DB_NAME", "telecare"),
		DBSSLMode:  env.GetString("DB_SSLMODE", "disable"),

		CassandraHosts:    env.GetString("CASSANDRA_HOSTS", ""),
		CassandraKeyspace: env.GetString("CASSANDRA_KEYSPACE", "telecare"),

		LogLevel:  env.GetString("LOG_LEVEL", "info"),
		LogFormat: env.GetString("LOG_FORMAT", "json"),

		RingTimeout:    env.GetDuration("RING_TIMEOUT", constants.RingTimeout),
		AllowedOrigins: env.GetString("WS_ALLOWED_ORIGINS", ""),
		STUNServers:    env.GetString("STUN_SERVERS", "stun:stun.l.google.com:19302"),
	}
}

// IsProduction reports whether the gateway runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// GetDBConnectionString returns the CockroachDB connection string.
func (c *Config) GetDBConnectionString() string {
	connStr := "host=" + c.DBHost + " port=" + c.DBPort + " user=" + c.DBUser + " dbname=" + c.DBName + " sslmode=" + c.DBSSLMode
	if c.DBPassword != "" {
		connStr += " password=" + c.DBPassword
	}
	return connStr
}

// GetRedisAddr returns the Redis address.
func (c *Config) GetRedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// GetCassandraHosts returns the Cassandra contact points, empty when
// transcript archiving is disabled.
func (c *Config) GetCassandraHosts() []string {
	if c.CassandraHosts == "" {
		return nil
	}
	hosts := strings.Split(c.CassandraHosts, ",")
	for i := range hosts {
		hosts[i] = strings.TrimSpace(hosts[i])
	}
	return hosts
}

// GetSTUNServers returns the STUN server URLs for candidate discovery.
func (c *Config) GetSTUNServers() []string {
	if c.STUNServers == "" {
		return nil
	}
	servers := strings.Split(c.STUNServers, ",")
	for i := range servers {
		servers[i] = strings.TrimSpace(servers[i])
	}
	return servers
}

// GetAllowedOrigins returns the WebSocket origin allowlist. Empty means
// same-origin only in production and any origin in development.
func (c *Config) GetAllowedOrigins() []string {
	if c.AllowedOrigins == "" {
		return nil
	}
	origins := strings.Split(c.AllowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}
