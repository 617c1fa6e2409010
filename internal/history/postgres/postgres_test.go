package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/testsquadco/mailauto/internal/history"
)

func TestPostgresSink_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate PostgreSQL container: %v", err)
		}
	}()

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	sink, err := New(connStr)
	if err != nil {
		t.Fatalf("Failed to create PostgreSQL sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()

	now := time.Now().UTC()
	startEvent := history.Event{
		Type:       history.EventServerStart,
		OccurredAt: now,
		Record:     history.Record{Name: "appium", PID: 12345, Endpoint: "localhost:4723", StartedAt: now},
	}
	if err := sink.Send(ctx, startEvent); err != nil {
		t.Fatalf("Failed to send start event: %v", err)
	}

	stopEvent := history.Event{
		Type:       history.EventServerStop,
		OccurredAt: now.Add(time.Minute),
		Record:     history.Record{Name: "appium", PID: 12345, Endpoint: "localhost:4723", StoppedAt: now.Add(time.Minute)},
	}
	if err := sink.Send(ctx, stopEvent); err != nil {
		t.Fatalf("Failed to send stop event: %v", err)
	}

	rows, err := sink.db.QueryContext(ctx, "SELECT COUNT(*) FROM automation_history WHERE name = $1", "appium")
	if err != nil {
		t.Fatalf("Failed to query automation_history: %v", err)
	}
	defer func() { _ = rows.Close() }()

	var count int
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			t.Fatalf("Failed to scan count: %v", err)
		}
	}
	if count != 2 {
		t.Errorf("Expected 2 events in history, got %d", count)
	}
}

func TestNewEmptyDSN(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
}
