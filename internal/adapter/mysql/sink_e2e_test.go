//go:build e2e

package mysql_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	msql "github.com/Tiliavir/hamster-panel/internal/adapter/mysql"
	"github.com/Tiliavir/hamster-panel/internal/model"
)

func TestSyncFactsUpserts(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping in short mode")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "mysql:8.0",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_DATABASE":      "hamster",
			"MYSQL_ROOT_PASSWORD": "secret",
			"MYSQL_USER":          "test",
			"MYSQL_PASSWORD":      "pass",
		},
		WaitingFor: wait.ForListeningPort("3306/tcp").WithStartupTimeout(90 * time.Second),
	}
	mysqlC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start mysql container: %v", err)
	}
	t.Cleanup(func() { _ = mysqlC.Terminate(context.Background()) })

	host, err := mysqlC.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := mysqlC.MappedPort(ctx, "3306/tcp")
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}
	dsn := fmt.Sprintf("test:pass@tcp(%s:%s)/hamster?parseTime=true", host, port.Port())

	// The port opens before the server accepts logins.
	var sink *msql.Client
	for i := 0; i < 30; i++ {
		sink, err = msql.NewClient(ctx, dsn, zap.NewNop().Sugar())
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		t.Fatalf("mysql client: %v", err)
	}
	t.Cleanup(func() { _ = sink.Close() })

	if err := sink.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	start := time.Date(2026, 2, 27, 9, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)
	facts := []model.Fact{
		{ID: 1, Name: "Mail", Category: "Admin", Start: start, End: &end, Tags: []string{"inbox"}},
		{ID: 2, Name: "Coding", Start: end},
	}
	if err := sink.SyncFacts(ctx, facts); err != nil {
		t.Fatalf("sync: %v", err)
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("sql open: %v", err)
	}
	defer db.Close()

	count := func() int {
		var n int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM hamster_facts").Scan(&n); err != nil {
			t.Fatalf("count: %v", err)
		}
		return n
	}
	if n := count(); n != 2 {
		t.Fatalf("expected 2 rows, got %d", n)
	}

	// Closing the open fact and syncing again updates in place.
	stop := end.Add(time.Hour)
	facts[1].End = &stop
	if err := sink.Migrate(ctx); err != nil {
		t.Fatalf("migrate again: %v", err)
	}
	if err := sink.SyncFacts(ctx, facts); err != nil {
		t.Fatalf("sync 2: %v", err)
	}
	if n := count(); n != 2 {
		t.Fatalf("expected 2 rows after upsert, got %d", n)
	}
	var dur int64
	if err := db.QueryRowContext(ctx, "SELECT duration_sec FROM hamster_facts WHERE id = 2").Scan(&dur); err != nil {
		t.Fatalf("duration: %v", err)
	}
	if dur != 3600 {
		t.Errorf("duration = %d, want 3600", dur)
	}
}
