package database

import (
	"database/sql"
	"sync"
)

// StmtCache maps a query string to its prepared statement so that hot
// queries are parsed by the driver once per process.
type StmtCache struct {
	db *sql.DB
	m  sync.Map
}

func NewStmtCache(db *sql.DB) *StmtCache {
	return &StmtCache{db: db}
}

// Prepare returns the cached statement for query, preparing it on first use.
// When two callers race on the same query the loser's statement is closed.
func (sc *StmtCache) Prepare(query string) (*sql.Stmt, error) {
	if cached, ok := sc.m.Load(query); ok {
		return cached.(*sql.Stmt), nil
	}

	stmt, err := sc.db.Prepare(query)
	if err != nil {
		return nil, err
	}

	actual, loaded := sc.m.LoadOrStore(query, stmt)
	if loaded {
		_ = stmt.Close()
	}
	return actual.(*sql.Stmt), nil
}

// Len is the number of cached statements.
func (sc *StmtCache) Len() int {
	n := 0
	sc.m.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

func (sc *StmtCache) Clear() {
	sc.m.Range(func(k, v interface{}) bool {
		_ = v.(*sql.Stmt).Close()
		sc.m.Delete(k)
		return true
	})
}
