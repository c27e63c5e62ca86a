package scylla

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/gocql/gocql"

	"listingchat/internal/infra/config"
)

var keyspacePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// NewSession creates the keyspace and tables when missing and returns a
// session bound to the keyspace.
func NewSession(ctx context.Context, cfg config.Config, logger *slog.Logger) (*gocql.Session, error) {
	if !keyspacePattern.MatchString(cfg.ScyllaKeyspace) {
		return nil, fmt.Errorf("invalid keyspace name: %s", cfg.ScyllaKeyspace)
	}

	base, err := newCluster(cfg, "").CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to scylla: %w", err)
	}
	defer base.Close()
	keyspace := fmt.Sprintf(
		"CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}",
		cfg.ScyllaKeyspace, cfg.ReplicationFactor,
	)
	if err := base.Query(keyspace).WithContext(ctx).Exec(); err != nil {
		return nil, fmt.Errorf("create keyspace: %w", err)
	}

	session, err := newCluster(cfg, cfg.ScyllaKeyspace).CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to keyspace %s: %w", cfg.ScyllaKeyspace, err)
	}
	if err := ensureTables(ctx, session); err != nil {
		session.Close()
		return nil, err
	}
	if logger != nil {
		logger.Info("scylla connected", "hosts", cfg.ScyllaHosts, "keyspace", cfg.ScyllaKeyspace)
	}
	return session, nil
}

func newCluster(cfg config.Config, keyspace string) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(cfg.ScyllaHosts...)
	cluster.Timeout = cfg.ScyllaTimeout
	cluster.ConnectTimeout = cfg.ScyllaTimeout
	cluster.Consistency = cfg.ScyllaConsistency
	cluster.SerialConsistency = gocql.Serial
	cluster.Keyspace = keyspace
	if cfg.ScyllaUsername != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.ScyllaUsername,
			Password: cfg.ScyllaPassword,
		}
	}
	return cluster
}

var tables = []string{
	// Authoritative pair registry; claimed with a lightweight transaction.
	`CREATE TABLE IF NOT EXISTS conversations_by_pair (
	listing_id text,
	owner_id text,
	participant_id text,
	conversation_id text,
	created_at timestamp,
	PRIMARY KEY ((listing_id, owner_id, participant_id))
)`,
	`CREATE TABLE IF NOT EXISTS conversations (
	id text PRIMARY KEY,
	listing_id text,
	owner_id text,
	participant_id text,
	created_at timestamp,
	last_message_id text,
	last_message_at timestamp
)`,
	`CREATE TABLE IF NOT EXISTS conversations_by_user (
	user_id text,
	created_at timestamp,
	conversation_id text,
	PRIMARY KEY (user_id, created_at, conversation_id)
) WITH CLUSTERING ORDER BY (created_at DESC, conversation_id DESC)`,
	`CREATE TABLE IF NOT EXISTS messages (
	conversation_id text,
	created_at timestamp,
	message_id text,
	sender_id text,
	body text,
	idempotency_key text,
	PRIMARY KEY (conversation_id, created_at, message_id)
) WITH CLUSTERING ORDER BY (created_at DESC, message_id DESC)`,
	`CREATE TABLE IF NOT EXISTS messages_by_id (
	conversation_id text,
	message_id text,
	created_at timestamp,
	PRIMARY KEY (conversation_id, message_id)
)`,
	`CREATE TABLE IF NOT EXISTS messages_by_key (
	conversation_id text,
	sender_id text,
	idempotency_key text,
	message_id text,
	body text,
	created_at timestamp,
	PRIMARY KEY ((conversation_id, sender_id, idempotency_key))
)`,
}

func ensureTables(ctx context.Context, session *gocql.Session) error {
	for _, cql := range tables {
		if err := session.Query(cql).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}
