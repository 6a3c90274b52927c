package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/storyspeak/storyspeak/internal/audio"
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

const schema = `
	CREATE TABLE IF NOT EXISTS attempts (
		id TEXT PRIMARY KEY,
		storyId TEXT NOT NULL,
		language TEXT NOT NULL,
		accuracy INTEGER NOT NULL,
		fluency INTEGER NOT NULL,
		completeness INTEGER NOT NULL,
		overall INTEGER NOT NULL,
		recordingUri TEXT NOT NULL DEFAULT '',
		createdAt REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_attempts_created ON attempts(createdAt);
`

// Attempt is one scored practice recording
type Attempt struct {
	ID           string                   `json:"id"`
	StoryID      string                   `json:"story_id"`
	Language     audio.Language           `json:"language"`
	Score        audio.PronunciationScore `json:"score"`
	RecordingURI string                   `json:"recording_uri,omitempty"`
	CreatedAt    time.Time                `json:"created_at"`
}

// LanguageSummary aggregates the attempts in one language
type LanguageSummary struct {
	Language audio.Language `json:"language"`
	Attempts int            `json:"attempts"`
	Average  float64        `json:"average"`
	Best     int            `json:"best"`
}

// Store persists practice attempts in SQLite
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path
func Open(path string) (*Store, error) {
	dsn := MemoryPath
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// every pooled connection to :memory: would see its own empty database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add records an attempt, assigning an ID and timestamp when missing
func (s *Store) Add(ctx context.Context, a Attempt) (Attempt, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attempts (id, storyId, language, accuracy, fluency, completeness, overall, recordingUri, createdAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.StoryID, string(a.Language), a.Score.Accuracy, a.Score.Fluency,
		a.Score.Completeness, a.Score.Overall, a.RecordingURI, unixFromTime(a.CreatedAt))
	if err != nil {
		return Attempt{}, fmt.Errorf("insert attempt: %w", err)
	}
	return a, nil
}

// Recent returns up to n attempts, newest first. It returns none when n <= 0.
func (s *Store) Recent(ctx context.Context, n int) ([]Attempt, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, storyId, language, accuracy, fluency, completeness, overall, recordingUri, createdAt
		FROM attempts
		ORDER BY createdAt DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		var lang string
		var createdAt float64
		if err := rows.Scan(&a.ID, &a.StoryID, &lang, &a.Score.Accuracy, &a.Score.Fluency,
			&a.Score.Completeness, &a.Score.Overall, &a.RecordingURI, &createdAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Language = audio.Language(lang)
		a.CreatedAt = timeFromUnix(createdAt)
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// Summary returns per-language statistics ordered by language
func (s *Store) Summary(ctx context.Context) ([]LanguageSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT language, COUNT(*), AVG(overall), MAX(overall)
		FROM attempts
		GROUP BY language
		ORDER BY language ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	var summaries []LanguageSummary
	for rows.Next() {
		var ls LanguageSummary
		var lang string
		if err := rows.Scan(&lang, &ls.Attempts, &ls.Average, &ls.Best); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		ls.Language = audio.Language(lang)
		summaries = append(summaries, ls)
	}
	return summaries, rows.Err()
}

// Streak returns the number of consecutive calendar days, in now's location,
// with at least one attempt. The run may end today or yesterday.
func (s *Store) Streak(ctx context.Context, now time.Time) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT createdAt FROM attempts ORDER BY createdAt DESC`)
	if err != nil {
		return 0, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var createdAt float64
		if err := rows.Scan(&createdAt); err != nil {
			return 0, fmt.Errorf("scan attempt: %w", err)
		}
		day := startOfDay(timeFromUnix(createdAt).In(now.Location()))
		if len(days) == 0 || !days[len(days)-1].Equal(day) {
			days = append(days, day)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	return countStreak(days, startOfDay(now)), nil
}

// countStreak counts consecutive days in days (newest first, distinct)
func countStreak(days []time.Time, today time.Time) int {
	if len(days) == 0 {
		return 0
	}

	expected := today
	// a run that ended yesterday is still alive until today ends
	if days[0].Before(today) {
		expected = today.AddDate(0, 0, -1)
	}

	streak := 0
	for _, d := range days {
		if d.After(expected) {
			continue
		}
		if !d.Equal(expected) {
			break
		}
		streak++
		expected = expected.AddDate(0, 0, -1)
	}
	return streak
}

// Get returns a single attempt
func (s *Store) Get(ctx context.Context, id string) (*Attempt, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, storyId, language, accuracy, fluency, completeness, overall, recordingUri, createdAt
		FROM attempts WHERE id = ?
	`, id)

	var a Attempt
	var lang string
	var createdAt float64
	if err := row.Scan(&a.ID, &a.StoryID, &lang, &a.Score.Accuracy, &a.Score.Fluency,
		&a.Score.Completeness, &a.Score.Overall, &a.RecordingURI, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan attempt: %w", err)
	}
	a.Language = audio.Language(lang)
	a.CreatedAt = timeFromUnix(createdAt)
	return &a, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
