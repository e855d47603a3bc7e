package repositories

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"chathive-service/internal/db"
)

var (
	pgOnce sync.Once
	pgDSN  string
	pgErr  error
)

// setupTestDB starts a shared PostgreSQL container (once for the entire test
// run) and returns a connection with migrations applied. The connection is
// closed via t.Cleanup; the container lives until the process exits.
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	pgOnce.Do(func() {
		pgDSN, pgErr = startPostgres()
	})
	if pgErr != nil {
		t.Fatalf("failed to set up test db: %v", pgErr)
	}

	conn, err := db.Connect(pgDSN)
	if err != nil {
		t.Fatalf("failed to connect to test db: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
	})
	return conn
}

func startPostgres() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("start container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return "", fmt.Errorf("get mapped port: %w", err)
	}

	return fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port()), nil
}

// createTestThread creates a GROUP thread with the first user as owner and
// the rest as members.
func createTestThread(t *testing.T, conn *sqlx.DB, owner string, members ...string) string {
	t.Helper()
	thread, err := NewThreadRepo(conn).CreateGroupThread(context.Background(), owner, "test thread", members)
	require.NoError(t, err)
	return thread.ID
}

// backdateMessage shifts a message's creation time into the past so ordering
// between rows created within the same test is deterministic.
func backdateMessage(t *testing.T, conn *sqlx.DB, messageID string, by time.Duration) {
	t.Helper()
	_, err := conn.Exec(`UPDATE messages SET created_at = created_at - $2::interval WHERE id=$1`,
		messageID, fmt.Sprintf("%d seconds", int(by.Seconds())))
	require.NoError(t, err)
}
