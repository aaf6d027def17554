// Package repositorytest provides a scripted database/sql driver that
// records the transactions and statements a store issues.
package repositorytest

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
)

// Result is the canned row set returned for a matching query.
type Result struct {
	Columns []string
	Rows    [][]driver.Value
}

type response struct {
	match  string
	result Result
}

// DB answers queries from a script. Queries with no matching response
// return no rows; execs report one affected row.
type DB struct {
	db *sql.DB

	mu        sync.Mutex
	responses []response
	log       []string
}

// New opens a scripted DB that is closed when the test ends.
func New(t *testing.T) *DB {
	t.Helper()
	d := &DB{}
	d.db = sql.OpenDB(connector{d})
	t.Cleanup(func() { d.db.Close() })
	return d
}

// DB returns the *sql.DB backed by the script.
func (d *DB) DB() *sql.DB {
	return d.db
}

// Respond answers every query containing match with result. Earlier
// responses win.
func (d *DB) Respond(match string, result Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.responses = append(d.responses, response{match, result})
}

// Log returns the recorded entries in order: "begin <isolation>
// readonly=<bool>", "query <sql>", "exec <sql>", "commit" and "rollback".
// SQL whitespace is collapsed to single spaces.
func (d *DB) Log() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.log...)
}

func (d *DB) record(entry string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log = append(d.log, entry)
}

func (d *DB) lookup(query string) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.responses {
		if strings.Contains(query, r.match) {
			return r.result
		}
	}
	return Result{}
}

type connector struct{ d *DB }

func (c connector) Connect(context.Context) (driver.Conn, error) {
	return &conn{d: c.d}, nil
}

func (c connector) Driver() driver.Driver {
	return scriptDriver{}
}

type scriptDriver struct{}

func (scriptDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("repositorytest: open through New")
}

type conn struct{ d *DB }

func (c *conn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("repositorytest: prepared statements are not scripted")
}

func (c *conn) Close() error { return nil }

func (c *conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *conn) BeginTx(_ context.Context, opts driver.TxOptions) (driver.Tx, error) {
	c.d.record(fmt.Sprintf("begin %s readonly=%t", sql.IsolationLevel(opts.Isolation), opts.ReadOnly))
	return tx{c.d}, nil
}

func (c *conn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	query = strings.Join(strings.Fields(query), " ")
	c.d.record("query " + query)
	res := c.d.lookup(query)
	return &rows{columns: res.Columns, data: res.Rows}, nil
}

func (c *conn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	c.d.record("exec " + strings.Join(strings.Fields(query), " "))
	return driver.RowsAffected(1), nil
}

type tx struct{ d *DB }

func (t tx) Commit() error {
	t.d.record("commit")
	return nil
}

func (t tx) Rollback() error {
	t.d.record("rollback")
	return nil
}

type rows struct {
	columns []string
	data    [][]driver.Value
	next    int
}

func (r *rows) Columns() []string { return r.columns }

func (r *rows) Close() error { return nil }

func (r *rows) Next(dest []driver.Value) error {
	if r.next >= len(r.data) {
		return io.EOF
	}
	copy(dest, r.data[r.next])
	r.next++
	return nil
}
