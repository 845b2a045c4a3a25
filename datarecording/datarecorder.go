// Package datarecording stores simulation results in SQLite tables. Each
// table is described by a sample struct whose fields become its columns.
package datarecording

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/structs"
	"go.uber.org/zap"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// DataRecorder buffers rows in memory and writes them to a database in
// batches.
type DataRecorder interface {
	// CreateTable creates a new table whose columns are the fields of the
	// sample entry.
	CreateTable(tableName string, sampleEntry any)

	// InsertData buffers an entry for a table that already exists.
	InsertData(tableName string, entry any)

	// ListTables returns the names of all created tables, sorted.
	ListTables() []string

	// Flush writes all the buffered entries into the database.
	Flush()

	// Close flushes and closes the database.
	Close()

	// Discard drops the buffered entries, closes the database and removes
	// the file the recorder created. Recordings of failed runs are
	// discarded so that the same name can be used again.
	Discard()
}

const defaultBatchSize = 100000

// FileSuffix is appended to the path given to New.
const FileSuffix = ".sqlite3"

// New creates a DataRecorder that writes into path + FileSuffix. An empty
// path picks a unique file name. Existing files are never overwritten. The
// recorder flushes itself when the program exits through atexit.
func New(path string, logger *zap.Logger) (DataRecorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if path == "" {
		path = "csim_recording_" + xid.New().String()
	}

	filename := path + FileSuffix
	if _, err := os.Stat(filename); err == nil {
		return nil, fmt.Errorf("%s: %w", filename, fs.ErrExist)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, err
	}

	logger.Info("database created for recording", zap.String("file", filename))

	r := newRecorder(db, logger)
	r.filename = filename

	atexit.Register(r.Flush)

	return r, nil
}

// NewWithDB creates a DataRecorder that writes into an open database. The
// caller owns the database file.
func NewWithDB(db *sql.DB) DataRecorder {
	return newRecorder(db, zap.NewNop())
}

func newRecorder(db *sql.DB, logger *zap.Logger) *sqliteRecorder {
	return &sqliteRecorder{
		db:        db,
		batchSize: defaultBatchSize,
		tables:    make(map[string]*table),
		logger:    logger,
	}
}

type table struct {
	entryType reflect.Type
	pending   []any
}

// sqliteRecorder keeps one buffer per table and writes all of them in a
// single transaction once batchSize entries are pending.
type sqliteRecorder struct {
	db       *sql.DB
	filename string
	logger   *zap.Logger

	tables    map[string]*table
	batchSize int
	pending   int
	closed    bool
}

func isColumnKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

func checkColumns(entry any) error {
	entryType := reflect.TypeOf(entry)
	if entryType == nil || entryType.Kind() != reflect.Struct {
		return errors.New("entry must be a struct")
	}

	for i := 0; i < entryType.NumField(); i++ {
		field := entryType.Field(i)

		if !isColumnKind(field.Type.Kind()) {
			return fmt.Errorf("field %s of kind %s cannot be recorded",
				field.Name, field.Type.Kind())
		}
	}

	return nil
}

func (r *sqliteRecorder) CreateTable(tableName string, sampleEntry any) {
	if err := checkColumns(sampleEntry); err != nil {
		panic(err)
	}

	if _, exists := r.tables[tableName]; exists {
		panic(fmt.Sprintf("table %s already exists", tableName))
	}

	columns := strings.Join(structs.Names(sampleEntry), ",\n\t")
	r.mustExec("CREATE TABLE " + tableName + " (\n\t" + columns + "\n);")

	r.tables[tableName] = &table{entryType: reflect.TypeOf(sampleEntry)}
}

func (r *sqliteRecorder) InsertData(tableName string, entry any) {
	t, exists := r.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != t.entryType {
		panic(fmt.Sprintf("entry of type %T does not match table %s",
			entry, tableName))
	}

	t.pending = append(t.pending, entry)

	r.pending++
	if r.pending >= r.batchSize {
		r.Flush()
	}
}

func (r *sqliteRecorder) ListTables() []string {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (r *sqliteRecorder) Flush() {
	if r.pending == 0 || r.closed {
		return
	}

	r.mustExec("BEGIN TRANSACTION")
	defer r.mustExec("COMMIT TRANSACTION")

	for name, t := range r.tables {
		if len(t.pending) == 0 {
			continue
		}

		r.insertRows(name, t.pending)
		t.pending = nil
	}

	r.pending = 0
}

func (r *sqliteRecorder) insertRows(tableName string, entries []any) {
	placeholders := strings.TrimSuffix(
		strings.Repeat("?, ", len(structs.Names(entries[0]))), ", ")

	stmt, err := r.db.Prepare(
		"INSERT INTO " + tableName + " VALUES (" + placeholders + ")")
	if err != nil {
		panic(err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		row := reflect.ValueOf(entry)

		values := make([]any, row.NumField())
		for i := range values {
			values[i] = row.Field(i).Interface()
		}

		if _, err := stmt.Exec(values...); err != nil {
			panic(err)
		}
	}
}

func (r *sqliteRecorder) Close() {
	if r.closed {
		return
	}

	r.Flush()
	r.closeDB()
}

func (r *sqliteRecorder) Discard() {
	if r.closed {
		return
	}

	for _, t := range r.tables {
		t.pending = nil
	}
	r.pending = 0

	r.closeDB()

	if r.filename == "" {
		return
	}

	err := os.Remove(r.filename)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		r.logger.Warn("cannot remove recording",
			zap.String("file", r.filename),
			zap.Error(err))

		return
	}

	r.logger.Info("recording discarded", zap.String("file", r.filename))
}

func (r *sqliteRecorder) closeDB() {
	r.closed = true

	if err := r.db.Close(); err != nil {
		r.logger.Error("failed to close recording database", zap.Error(err))
	}
}

func (r *sqliteRecorder) mustExec(query string) {
	if _, err := r.db.Exec(query); err != nil {
		r.logger.Error("failed to execute", zap.String("query", query))
		panic(err)
	}
}
