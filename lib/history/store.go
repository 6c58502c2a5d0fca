// Package history keeps a record of every check-in run.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

type Outcome string

const (
	OutcomeSubmitted       Outcome = "submitted"
	OutcomeAlreadyAnswered Outcome = "already_answered"
	OutcomeFailed          Outcome = "failed"
)

// Config selects where history is kept: a local sqlite file, or a remote
// libsql database when Url is set.
type Config struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

func wrapOpenDB(err error) error {
	return fmt.Errorf("open history db: %w", err)
}

// OpenDB opens the configured database and makes sure the schema exists.
func OpenDB(config Config) (*sql.DB, error) {
	db, local, err := openDriver(config)
	if err != nil {
		return nil, wrapOpenDB(err)
	}
	err = initialize(db, local)
	if err != nil {
		db.Close()
		return nil, wrapOpenDB(err)
	}
	return db, nil
}

// openDriver returns the handle for the configured database, local is true
// for sqlite files.
func openDriver(config Config) (db *sql.DB, local bool, err error) {
	if config.Url != "" {
		dsn, err := url.Parse(config.Url)
		if err != nil {
			return nil, false, err
		}
		if config.AuthToken != "" {
			query := dsn.Query()
			query.Set("authToken", config.AuthToken)
			dsn.RawQuery = query.Encode()
		}
		db, err = sql.Open("libsql", dsn.String())
		return db, false, err
	}

	path := config.File
	if path == "" {
		path = "history.db"
	}
	if path != ":memory:" {
		err = os.MkdirAll(filepath.Dir(path), 0777)
		if err != nil {
			return nil, true, err
		}
	}
	db, err = sql.Open("sqlite", path)
	if err != nil {
		return nil, true, err
	}
	// a single connection keeps sqlite writes from contending, and keeps
	// :memory: databases alive across queries
	db.SetMaxOpenConns(1)
	return db, true, nil
}

func initialize(db *sql.DB, local bool) error {
	if local {
		_, err := db.Exec("PRAGMA journal_mode=WAL")
		if err != nil {
			return err
		}
	}
	_, err := db.Exec(Schema)
	return err
}

type Run struct {
	ID              string
	StartedAt       time.Time
	FinishedAt      time.Time
	StudentId       string
	QuestionnaireId string
	Title           string
	Outcome         Outcome
	Attempts        int
	Error           string
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) Store {
	return Store{db: db}
}

func (s Store) Record(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(
		ctx,
		`insert into run(
			id, started_at, finished_at, student_id, questionnaire_id,
			title, outcome, attempts, error
		) values (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.Unix(),
		run.FinishedAt.Unix(),
		run.StudentId,
		run.QuestionnaireId,
		run.Title,
		string(run.Outcome),
		run.Attempts,
		run.Error,
	)
	return err
}

// Recent returns up to limit runs, latest first.
func (s Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`select
			id, started_at, finished_at, student_id, questionnaire_id,
			title, outcome, attempts, error
		from run
		order by started_at desc, rowid desc
		limit ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var startedAt, finishedAt int64
		var outcome string
		err = rows.Scan(
			&run.ID,
			&startedAt,
			&finishedAt,
			&run.StudentId,
			&run.QuestionnaireId,
			&run.Title,
			&outcome,
			&run.Attempts,
			&run.Error,
		)
		if err != nil {
			return nil, err
		}
		run.StartedAt = time.Unix(startedAt, 0)
		run.FinishedAt = time.Unix(finishedAt, 0)
		run.Outcome = Outcome(outcome)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
