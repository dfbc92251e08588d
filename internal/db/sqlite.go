package db

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/xxxsen/mcatalog/internal/trgm"
)

var (
	sqliteMu      sync.Mutex
	sqliteDrivers = map[string]string{}
)

// OpenSQLite opens an embedded database whose connections expose similarity(a, b)
// backed by the named metric, standing in for postgres' pg_trgm.
func OpenSQLite(dsn, metric string) (*sqlx.DB, error) {
	driverName, err := registerSQLiteDriver(metric)
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	// sqlite serialises writers anyway; one connection keeps in-memory
	// databases shared and avoids SQLITE_BUSY between the worker and handlers.
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return sqlx.NewDb(conn, DriverSQLite), nil
}

func registerSQLiteDriver(metric string) (string, error) {
	fn, err := trgm.Metric(metric)
	if err != nil {
		return "", err
	}
	key := metric
	if key == "" {
		key = trgm.MetricTrigram
	}
	sqliteMu.Lock()
	defer sqliteMu.Unlock()
	if name, ok := sqliteDrivers[key]; ok {
		return name, nil
	}
	name := fmt.Sprintf("sqlite3_mcatalog_%s", key)
	sql.Register(name, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("similarity", func(a, b string) float64 {
				return fn(a, b)
			}, true)
		},
	})
	sqliteDrivers[key] = name
	return name, nil
}
