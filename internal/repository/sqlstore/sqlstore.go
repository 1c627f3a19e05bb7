// Package sqlstore implements the repository interfaces on database/sql for
// both the sqlite and postgres drivers.
package sqlstore

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/garnizeh/mockinterview/internal/db"
	"github.com/garnizeh/mockinterview/pkg/repository"
)

// Store implements repository interfaces using the internal DB wrapper.
type Store struct {
	conn   *db.DB
	logger *slog.Logger
}

// Ensure Store implements the public interfaces.
var (
	_ repository.UserRepo      = (*Store)(nil)
	_ repository.ProfileRepo   = (*Store)(nil)
	_ repository.InterviewRepo = (*Store)(nil)
	_ repository.QuestionRepo  = (*Store)(nil)
	_ repository.ResponseRepo  = (*Store)(nil)
	_ repository.SchemaRepo    = (*Store)(nil)
	_ repository.TemplateRepo  = (*Store)(nil)
)

func New(conn *db.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Store{conn: conn, logger: logger}
}

// isUniqueViolation recognises unique-key failures from either driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return true
		}
		return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE")
	}
	return false
}

func encodeList(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func decodeList(s string) []string {
	out := []string{}
	if s == "" {
		return out
	}
	_ = json.Unmarshal([]byte(s), &out)
	return out
}
