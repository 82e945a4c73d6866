package database

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"
)

// DefaultCassandraQueryTimeout is the default timeout for Cassandra queries
const DefaultCassandraQueryTimeout = 5 * time.Second

// CassandraConfig holds Cassandra connection configuration for the
// transcript archive.
type CassandraConfig struct {
	Hosts    []string
	Keyspace string
	Username string
	Password string
	Timeout  time.Duration
}

// CassandraDB wraps the gocql session.
type CassandraDB struct {
	Session *gocql.Session
}

// NewCassandraDB creates a new Cassandra session.
func NewCassandraDB(cfg *CassandraConfig) (*CassandraDB, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = cfg.Timeout
	if cluster.Timeout <= 0 {
		cluster.Timeout = DefaultCassandraQueryTimeout
	}

	if cfg.Username != "" && cfg.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create Cassandra session: %w", err)
	}
	return &CassandraDB{Session: session}, nil
}

// Close closes the Cassandra session
func (c *CassandraDB) Close() {
	c.Session.Close()
}
