//go:build integration

package pgvector

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/calque-ai/movierag/pkg/middleware/retrieval"
)

func startPGVector(ctx context.Context, t *testing.T) string {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatal(err)
	}
	connStr := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()
	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		t.Fatalf("failed to create vector extension: %v", err)
	}
	return connStr
}

func TestIntegrationStore(t *testing.T) {
	ctx := context.Background()
	connStr := startPGVector(ctx, t)

	client, err := New(ctx, &Config{ConnectionString: connStr, TableName: "movies_it"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	stats, err := client.Stats(ctx)
	if err != nil || stats.Count != 0 {
		t.Fatalf("Stats() on missing table = %+v, %v", stats, err)
	}
	matches, err := client.Query(ctx, retrieval.EmbeddingVector{1, 0, 0}, 3)
	if err != nil || len(matches) != 0 {
		t.Fatalf("Query() on missing table = %v, %v", matches, err)
	}

	doc := func(id string) retrieval.Document {
		return retrieval.Document{
			Content:  "Title: " + id,
			Source:   "https://www.imdb.com/title/" + id + "/",
			Metadata: map[string]any{"imdb_id": id},
		}
	}
	entries := []retrieval.IndexEntry{
		retrieval.NewIndexEntry(doc("tt3"), retrieval.EmbeddingVector{0, 1, 0}),
		retrieval.NewIndexEntry(doc("tt2"), retrieval.EmbeddingVector{1, 0, 0}),
		retrieval.NewIndexEntry(doc("tt1"), retrieval.EmbeddingVector{2, 0, 0}),
	}
	if err := client.Upsert(ctx, entries); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := client.Upsert(ctx, entries[:1]); err != nil {
		t.Fatalf("re-Upsert() error = %v", err)
	}

	stats, err = client.Stats(ctx)
	if err != nil || stats.Count != 3 || stats.Dimension != 3 {
		t.Fatalf("Stats() = %+v, %v", stats, err)
	}

	matches, err = client.Query(ctx, retrieval.EmbeddingVector{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	// tt1 and tt2 are equally distant; key order breaks the tie.
	if len(matches) != 2 || matches[0].Key != doc("tt1").Source || matches[1].Key != doc("tt2").Source {
		t.Errorf("Query() = %+v", matches)
	}
	if matches[0].Document.Metadata["imdb_id"] != "tt1" {
		t.Errorf("metadata = %v", matches[0].Document.Metadata)
	}

	found, err := client.Exists(ctx, []string{doc("tt1").Source, doc("tt9").Source})
	if err != nil || !found[doc("tt1").Source] || found[doc("tt9").Source] {
		t.Errorf("Exists() = %v, %v", found, err)
	}
}
