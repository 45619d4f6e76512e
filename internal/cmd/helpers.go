package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/forgelab/jobmill/internal/observability"
	"github.com/forgelab/jobmill/pkg/jobstore"
	"github.com/forgelab/jobmill/pkg/lifecycle"
	"github.com/forgelab/jobmill/pkg/queue"
)

// openStore opens the shared job database and ensures the schema is
// current. The caller closes the returned handle.
func openStore(ctx context.Context) (*sql.DB, *jobstore.Store, error) {
	db, err := jobstore.Open(ctx, jobstore.Config{Path: cfg.DBPath})
	if err != nil {
		return nil, nil, err
	}
	if err := jobstore.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, jobstore.NewStore(db), nil
}

// buildEngine wires the lifecycle engine from the resolved configuration.
func buildEngine(store *jobstore.Store) (*lifecycle.Engine, error) {
	var adapter *queue.Adapter
	if cfg.QueueProfile != "" {
		profile, err := queue.LoadProfile(cfg.QueueProfile)
		if err != nil {
			return nil, err
		}
		adapter = queue.NewAdapter(profile, observability.CLILogger)
	}

	return lifecycle.New(lifecycle.Options{
		Store:   store,
		DataDir: cfg.DataDir,
		DBPath:  cfg.DBPath,
		Logger:  observability.CLILogger,
		Queue:   adapter,
	})
}

func parseJobID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job id %q", arg)
	}
	return id, nil
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
