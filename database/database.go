package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"
	_ "modernc.org/sqlite"
)

// driverFor maps a whatsmeow store dialect to the registered database/sql driver.
func driverFor(dialect string) (string, error) {
	switch dialect {
	case "sqlite":
		return "sqlite", nil
	case "postgres":
		return "postgres", nil
	default:
		return "", fmt.Errorf("unsupported store dialect %q", dialect)
	}
}

// InitWhatsmeow membuka database kredensial sesi dan menjalankan upgrade schema whatsmeow.
func InitWhatsmeow(ctx context.Context, dialect, dsn string, log waLog.Logger) (*sqlstore.Container, error) {
	driver, err := driverFor(dialect)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping session store: %w", err)
	}

	container := sqlstore.NewWithDB(db, dialect, log)

	// Upgrade dengan context
	if err := container.Upgrade(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to upgrade session store: %w", err)
	}

	return container, nil
}
