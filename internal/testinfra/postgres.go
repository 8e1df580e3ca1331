//go:build integration

package testinfra

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"lca_wages/internal/storage"
)

const (
	postgresImage = "postgres:16-alpine"
	postgresPort  = "5432/tcp"
)

// SkipIfNoDocker skips the test if Docker is not available.
func SkipIfNoDocker(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if exec.CommandContext(ctx, "docker", "info").Run() != nil {
		t.Skip("Skipping test: Docker not available")
	}
}

// PostgresContainer is a running PostgreSQL container.
type PostgresContainer struct {
	testcontainers.Container
	Config storage.PostgresConfig
}

// StartPostgres starts PostgreSQL and returns storage settings pointing at it.
// The container is terminated when the test ends.
func StartPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	SkipIfNoDocker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg := storage.DefaultPostgresConfig()
	cfg.User = "lca"
	cfg.Password = "lca"
	cfg.Database = "lca_test"

	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{postgresPort},
		Env: map[string]string{
			"POSTGRES_USER":     cfg.User,
			"POSTGRES_PASSWORD": cfg.Password,
			"POSTGRES_DB":       cfg.Database,
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(postgresPort),
			// The server restarts once after initdb; wait for the second start.
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(time.Minute),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, postgresPort)
	if err != nil {
		t.Fatalf("container port: %v", err)
	}

	cfg.Host = host
	cfg.Port = port.Int()
	// Containers on CI are slow to plan the first queries.
	cfg.SearchTimeout = 5 * time.Second
	cfg.HubTimeout = 5 * time.Second
	cfg.SampleTimeout = 5 * time.Second
	cfg.AcquireTimeout = 5 * time.Second

	return &PostgresContainer{Container: container, Config: cfg}
}

// OpenPostgres starts a container, connects and creates the schema.
func OpenPostgres(t *testing.T) *storage.PostgresDB {
	t.Helper()
	pc := StartPostgres(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := storage.OpenPostgres(ctx, pc.Config)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(db.Close)

	if err := db.CreateSchema(ctx); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}
