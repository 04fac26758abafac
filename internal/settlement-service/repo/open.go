package repo

import (
	"context"
	"fmt"

	"github.com/radieske/scoreleague/internal/shared/db"
)

// Open escolhe o backend pelo driver ("memory" | "postgres").
// No Postgres aplica o schema antes de devolver o store.
func Open(ctx context.Context, driver, dsn string) (Store, func() error, error) {
	switch driver {
	case "", "memory":
		return NewMemory(), func() error { return nil }, nil
	case "postgres":
		pg, err := db.ConnectPostgres(dsn)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx, pg); err != nil {
			_ = pg.Close()
			return nil, nil, err
		}
		return NewPostgres(pg), pg.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", driver)
}
