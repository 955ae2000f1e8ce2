package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"github.com/flechilla/statements/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the relational store for clients, statements, and
// transactions. Amounts are persisted as canonical decimal strings and
// summed in Go, never as binary floats.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Cascade from statements to transactions depends on this pragma.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ListStatements returns all statements, newest first.
func (r *SQLiteRepository) ListStatements(ctx context.Context) ([]core.Statement, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, statement_period, bank_name, card_name, client_id, created_at
		FROM statements
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list statements: %w", err)
	}
	defer rows.Close()

	return scanStatements(rows)
}

// ListStatementsByCard returns the statements for one bank+card identity,
// newest first.
func (r *SQLiteRepository) ListStatementsByCard(ctx context.Context, bankName, cardName string) ([]core.Statement, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, statement_period, bank_name, card_name, client_id, created_at
		FROM statements
		WHERE bank_name = ? AND card_name = ?
		ORDER BY created_at DESC, id DESC`, bankName, cardName)
	if err != nil {
		return nil, fmt.Errorf("list statements by card: %w", err)
	}
	defer rows.Close()

	return scanStatements(rows)
}

func (r *SQLiteRepository) GetStatement(ctx context.Context, id int64) (*core.Statement, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, statement_period, bank_name, card_name, client_id, created_at
		FROM statements
		WHERE id = ?`, id)

	st, err := scanStatement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("statement %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get statement %d: %w", id, err)
	}
	return st, nil
}

// ListTransactions returns a statement's transactions, largest amount
// first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, statementID int64) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, statement_id, date, description, amount, justification, category, created_at
		FROM transactions
		WHERE statement_id = ?
		ORDER BY CAST(amount AS REAL) DESC, id`, statementID)
	if err != nil {
		return nil, fmt.Errorf("list transactions for statement %d: %w", statementID, err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// SumAmount returns the exact decimal total of a statement's transactions.
// Summation happens in Go over the stored decimal strings so no precision
// is lost to SQLite's float arithmetic.
func (r *SQLiteRepository) SumAmount(ctx context.Context, statementID int64) (decimal.Decimal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT amount FROM transactions WHERE statement_id = ?`, statementID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum amounts for statement %d: %w", statementID, err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, fmt.Errorf("scan amount: %w", err)
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse stored amount %q: %w", raw, err)
		}
		total = total.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("iterate amounts: %w", err)
	}
	return total, nil
}

// ListBanks returns the distinct bank names present in the store.
func (r *SQLiteRepository) ListBanks(ctx context.Context) ([]string, error) {
	return r.listStrings(ctx,
		`SELECT bank_name FROM statements GROUP BY bank_name ORDER BY bank_name`)
}

// ListCards returns the distinct card names for a bank.
func (r *SQLiteRepository) ListCards(ctx context.Context, bankName string) ([]string, error) {
	return r.listStrings(ctx,
		`SELECT card_name FROM statements WHERE bank_name = ? GROUP BY card_name ORDER BY card_name`,
		bankName)
}

// SearchTransactions matches descriptions by substring, largest amount
// first.
func (r *SQLiteRepository) SearchTransactions(ctx context.Context, text string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, statement_id, date, description, amount, justification, category, created_at
		FROM transactions
		WHERE description LIKE '%' || ? || '%'
		ORDER BY CAST(amount AS REAL) DESC, id`, text)
	if err != nil {
		return nil, fmt.Errorf("search transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// CreateStatement persists a statement with its transactions in a single
// database transaction; a failed child insert rolls back the statement row.
func (r *SQLiteRepository) CreateStatement(ctx context.Context, p core.StatementPayload) (int64, error) {
	p.ApplyDefaults()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin statement insert: %w", err)
	}
	defer tx.Rollback()

	var clientID any
	if p.ClientID != 0 {
		clientID = p.ClientID
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO statements (statement_period, bank_name, card_name, client_id)
		VALUES (?, ?, ?, ?)`,
		p.StatementPeriod, p.BankName, p.CardName, clientID)
	if err != nil {
		return 0, fmt.Errorf("insert statement: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("statement insert id: %w", err)
	}

	for i, t := range p.Transactions {
		var justification any
		if t.Justification != "" {
			justification = t.Justification
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO transactions (statement_id, date, description, amount, justification, category)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, t.Date, t.Description, t.Amount.StringFixed(2), justification, t.Category)
		if err != nil {
			return 0, fmt.Errorf("insert transaction %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit statement insert: %w", err)
	}

	slog.InfoContext(ctx, "Statement saved",
		"id", id,
		"bank", p.BankName,
		"card", p.CardName,
		"transactions", len(p.Transactions))

	return id, nil
}

// DeleteStatement removes a statement; its transactions go with it.
func (r *SQLiteRepository) DeleteStatement(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM statements WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete statement %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete statement %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("statement %d: %w", id, core.ErrNotFound)
	}
	return nil
}

// CreateClient inserts a client; email must be unique.
func (r *SQLiteRepository) CreateClient(ctx context.Context, c core.Client) (int64, error) {
	var phone, address any
	if c.Phone != "" {
		phone = c.Phone
	}
	if c.Address != "" {
		address = c.Address
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO clients (name, email, phone, address)
		VALUES (?, ?, ?, ?)`, c.Name, c.Email, phone, address)
	if err != nil {
		return 0, fmt.Errorf("insert client: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("client insert id: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) GetClientByEmail(ctx context.Context, email string) (*core.Client, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, address, created_at
		FROM clients
		WHERE email = ?`, email)

	var (
		c              core.Client
		phone, address sql.NullString
	)
	err := row.Scan(&c.ID, &c.Name, &c.Email, &phone, &address, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client %s: %w", email, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get client by email: %w", err)
	}
	c.Phone = phone.String
	c.Address = address.String
	return &c, nil
}

// ListClients returns all clients, newest first.
func (r *SQLiteRepository) ListClients(ctx context.Context) ([]core.Client, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, email, phone, address, created_at
		FROM clients
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var clients []core.Client
	for rows.Next() {
		var (
			c              core.Client
			phone, address sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &phone, &address, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		c.Phone = phone.String
		c.Address = address.String
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (r *SQLiteRepository) listStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query strings: %w", err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan string: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStatement(row rowScanner) (*core.Statement, error) {
	var (
		st       core.Statement
		clientID sql.NullInt64
	)
	err := row.Scan(&st.ID, &st.StatementPeriod, &st.BankName, &st.CardName, &clientID, &st.CreatedAt)
	if err != nil {
		return nil, err
	}
	st.ClientID = clientID.Int64
	return &st, nil
}

func scanStatements(rows *sql.Rows) ([]core.Statement, error) {
	var statements []core.Statement
	for rows.Next() {
		st, err := scanStatement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan statement: %w", err)
		}
		statements = append(statements, *st)
	}
	return statements, rows.Err()
}

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	var txns []core.Transaction
	for rows.Next() {
		var (
			t             core.Transaction
			raw           string
			justification sql.NullString
		)
		err := rows.Scan(&t.ID, &t.StatementID, &t.Date, &t.Description, &raw, &justification, &t.Category, &t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parse stored amount %q: %w", raw, err)
		}
		t.Amount = amount
		t.Justification = justification.String
		txns = append(txns, t)
	}
	return txns, rows.Err()
}
