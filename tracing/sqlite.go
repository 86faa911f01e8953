package tracing

import (
	"database/sql"
	"fmt"
	"os"
	"sync"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// SQLiteSink is a trace sink that stores trace lines in a SQLite database.
// Lines are buffered and written in batches. The buffer is flushed when the
// program exits through atexit.
type SQLiteSink struct {
	*sql.DB
	statement *sql.Stmt

	lock      sync.Mutex
	separator string
	dbName    string
	pending   []traceLine
	nextSeq   int64
	batchSize int
}

type traceLine struct {
	seq      int64
	modelURI string
	message  string
}

// NewSQLiteSink creates a sink that writes into a new database file named
// after path. An empty path generates a unique name. Lines are split on the
// separator into model URI and message columns.
func NewSQLiteSink(path, separator string) *SQLiteSink {
	s := &SQLiteSink{
		dbName:    path,
		separator: separator,
		batchSize: 100000,
	}

	s.createDatabase()
	s.init()

	atexit.Register(func() { s.Flush() })

	return s
}

// NewSQLiteSinkWithDB creates a sink over an existing database.
func NewSQLiteSinkWithDB(db *sql.DB, separator string) *SQLiteSink {
	s := &SQLiteSink{
		DB:        db,
		separator: separator,
		batchSize: 100000,
	}

	s.init()

	atexit.Register(func() { s.Flush() })

	return s
}

// WithBatchSize sets how many lines are buffered before they are written.
func (s *SQLiteSink) WithBatchSize(n int) *SQLiteSink {
	if n < 1 {
		panic("batch size must be positive")
	}

	s.batchSize = n

	return s
}

func (s *SQLiteSink) createDatabase() {
	if s.dbName == "" {
		s.dbName = "devs_trace_" + xid.New().String()
	}

	filename := s.dbName + ".sqlite3"

	_, err := os.Stat(filename)
	if err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	fmt.Fprintf(os.Stderr, "Trace is collected in database: %s\n", filename)

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	// BEGIN and COMMIT must run on the connection that does the inserts.
	db.SetMaxOpenConns(1)

	s.DB = db
}

func (s *SQLiteSink) init() {
	s.mustExecute(`
		create table if not exists trace
		(
			seq       integer      not null,
			model_uri varchar(200) not null,
			message   text         not null
		);
	`)

	s.mustExecute(`
		create index if not exists trace_model_uri_index
			on trace (model_uri);
	`)

	stmt, err := s.Prepare(
		`insert into trace(seq, model_uri, message) values (?, ?, ?)`)
	if err != nil {
		panic(err)
	}

	s.statement = stmt
}

// Trace buffers the line and writes the buffer when it is full.
func (s *SQLiteSink) Trace(line string) {
	uri, message, ok := SplitLine(line, s.separator)
	if !ok {
		message = line
		uri = ""
	}

	s.lock.Lock()
	s.pending = append(s.pending, traceLine{
		seq:      s.nextSeq,
		modelURI: uri,
		message:  message,
	})
	s.nextSeq++
	full := len(s.pending) >= s.batchSize
	s.lock.Unlock()

	if full {
		s.Flush()
	}
}

// Flush writes all the buffered lines to the database.
func (s *SQLiteSink) Flush() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if len(s.pending) == 0 {
		return
	}

	s.mustExecute("BEGIN TRANSACTION")
	defer s.mustExecute("COMMIT TRANSACTION")

	for _, l := range s.pending {
		_, err := s.statement.Exec(l.seq, l.modelURI, l.message)
		if err != nil {
			panic(err)
		}
	}

	s.pending = nil
}

// Messages returns, in trace order, the stored messages of the model. It
// only sees lines that have been flushed.
func (s *SQLiteSink) Messages(modelURI string) ([]string, error) {
	rows, err := s.Query(
		`select message from trace where model_uri = ? order by seq`,
		modelURI)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}

		messages = append(messages, m)
	}

	return messages, rows.Err()
}

func (s *SQLiteSink) mustExecute(query string) sql.Result {
	res, err := s.Exec(query)
	if err != nil {
		fmt.Printf("Failed to execute: %s\n", query)
		panic(err)
	}

	return res
}
