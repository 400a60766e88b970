/*
SQLiteChainTxMgrDB implements ChainTxMgrDB.
Table is submitted_tx

Internally,

1) A nil FoundBlockNumber is stored as -1 in SQLite and restored as nil.
2) TokenId is stored as its decimal string since it may not fit an int64.
*/
package chaintxmgrdb

import (
	"database/sql"
	"errors"
	"math/big"
	"strings"

	"github.com/TEENet-io/bridge-validator/database"
	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrNilTokenId     = errors.New("token id is nil")
	ErrInvalidTokenId = errors.New("invalid token id stored")
	ErrNoStatusGiven  = errors.New("no status given")
	ErrTxHashNotFound = errors.New("tx hash not found")
)

const selectColumns = `SELECT TxHash, Ledger, Direction, Method, TokenId, SentAt, FoundBlockNumber, TxStatus FROM submitted_tx`

type SQLiteChainTxMgrDB struct {
	db    *sql.DB
	stmts *database.StmtCache
}

var _ ChainTxMgrDB = (*SQLiteChainTxMgrDB)(nil)

func NewSQLiteChainTxMgrDB(dbPath string) (*SQLiteChainTxMgrDB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// handlers and the reporter share one connection
	db.SetMaxOpenConns(1)

	storage := &SQLiteChainTxMgrDB{db: db, stmts: database.NewStmtCache(db)}
	if err := storage.init(); err != nil {
		db.Close()
		return nil, err
	}

	return storage, nil
}

// Table's row structure is according to SubmittedTx
func (s *SQLiteChainTxMgrDB) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS submitted_tx (
		TxHash BLOB PRIMARY KEY,
		Ledger TEXT,
		Direction TEXT,
		Method TEXT,
		TokenId TEXT,
		SentAt INTEGER,
		FoundBlockNumber INTEGER,
		TxStatus TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_token_id ON submitted_tx (TokenId);
	CREATE INDEX IF NOT EXISTS idx_tx_status ON submitted_tx (TxStatus);
	`
	_, err := s.db.Exec(query)
	return err
}

func (s *SQLiteChainTxMgrDB) Close() error {
	s.stmts.Clear()
	return s.db.Close()
}

func (s *SQLiteChainTxMgrDB) InsertSubmittedTx(tx *SubmittedTx) error {
	if tx.TokenId == nil {
		return ErrNilTokenId
	}

	stmt, err := s.stmts.Prepare(`
	INSERT INTO submitted_tx (TxHash, Ledger, Direction, Method, TokenId, SentAt, FoundBlockNumber, TxStatus)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?);
	`)
	if err != nil {
		return err
	}

	found := int64(-1)
	if tx.FoundBlockNumber != nil {
		found = tx.FoundBlockNumber.Int64()
	}

	_, err = stmt.Exec(tx.TxHash, tx.Ledger, tx.Direction, tx.Method, tx.TokenId.String(), tx.SentAt, found, tx.TxStatus)
	return err
}

func (s *SQLiteChainTxMgrDB) GetSubmittedTxByTxHash(txHash []byte) (*SubmittedTx, error) {
	stmt, err := s.stmts.Prepare(selectColumns + ` WHERE TxHash = ?;`)
	if err != nil {
		return nil, err
	}

	tx, err := scan(stmt.QueryRow(txHash))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return tx, err
}

func (s *SQLiteChainTxMgrDB) GetSubmittedTxByTokenId(tokenId *big.Int) ([]*SubmittedTx, error) {
	if tokenId == nil {
		return nil, ErrNilTokenId
	}

	stmt, err := s.stmts.Prepare(selectColumns + ` WHERE TokenId = ? ORDER BY SentAt, rowid;`)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(tokenId.String())
	if err != nil {
		return nil, err
	}
	return scanAll(rows)
}

func (s *SQLiteChainTxMgrDB) GetSubmittedTxByStatus(status ...MonitoredTxStatus) ([]*SubmittedTx, error) {
	if len(status) == 0 {
		return nil, ErrNoStatusGiven
	}

	query := selectColumns + ` WHERE TxStatus IN (?` + strings.Repeat(", ?", len(status)-1) + `) ORDER BY SentAt, rowid;`
	args := make([]interface{}, len(status))
	for i, st := range status {
		args[i] = st
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	return scanAll(rows)
}

func (s *SQLiteChainTxMgrDB) UpdateFound(txHash []byte, foundAt *big.Int) error {
	stmt, err := s.stmts.Prepare(`UPDATE submitted_tx SET FoundBlockNumber = ? WHERE TxHash = ?;`)
	if err != nil {
		return err
	}
	return checkAffected(stmt.Exec(foundAt.Int64(), txHash))
}

func (s *SQLiteChainTxMgrDB) UpdateTxStatus(txHash []byte, status MonitoredTxStatus) error {
	stmt, err := s.stmts.Prepare(`UPDATE submitted_tx SET TxStatus = ? WHERE TxHash = ?;`)
	if err != nil {
		return err
	}
	return checkAffected(stmt.Exec(status, txHash))
}

func checkAffected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTxHashNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scan(row scanner) (*SubmittedTx, error) {
	tx := &SubmittedTx{}
	var tokenId string
	var found int64
	err := row.Scan(&tx.TxHash, &tx.Ledger, &tx.Direction, &tx.Method, &tokenId, &tx.SentAt, &found, &tx.TxStatus)
	if err != nil {
		return nil, err
	}

	var ok bool
	tx.TokenId, ok = new(big.Int).SetString(tokenId, 10)
	if !ok {
		return nil, ErrInvalidTokenId
	}
	if found != -1 {
		tx.FoundBlockNumber = big.NewInt(found)
	}
	return tx, nil
}

func scanAll(rows *sql.Rows) ([]*SubmittedTx, error) {
	defer rows.Close()

	txs := []*SubmittedTx{}
	for rows.Next() {
		tx, err := scan(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}
