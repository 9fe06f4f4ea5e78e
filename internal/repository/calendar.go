package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/soupcal/internal/model"
)

// SoupsPerDay is how many soups a valid calendar row carries.
const SoupsPerDay = 2

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// CalendarRepository wraps the soup_calendar table and its view.
type CalendarRepository struct {
	pool  *pgxpool.Pool
	today func() time.Time
}

// NewCalendarRepository constructs a repository. Display text is rendered
// relative to today in location.
func NewCalendarRepository(pool *pgxpool.Pool, location *time.Location) *CalendarRepository {
	if location == nil {
		location = time.UTC
	}
	return &CalendarRepository{
		pool:  pool,
		today: func() time.Time { return time.Now().In(location) },
	}
}

// partitionRows splits rows into those with exactly SoupsPerDay soups and
// the rest.
func partitionRows(rows []model.CalendarRow) (valid, rejected []model.CalendarRow) {
	for _, row := range rows {
		if len(row.Soups) == SoupsPerDay {
			valid = append(valid, row)
			continue
		}
		rejected = append(rejected, row)
	}
	return valid, rejected
}

// UpsertCalendarRows replaces the soups of every day in rows. Rows without
// exactly two soups are skipped and counted as rejected. All writes happen
// in one transaction.
func (r *CalendarRepository) UpsertCalendarRows(ctx context.Context, rows []model.CalendarRow, user string) (*model.ImportResult, error) {
	valid, rejected := partitionRows(rows)
	result := &model.ImportResult{Rejected: len(rejected)}
	if len(valid) == 0 {
		return result, nil
	}
	if user == "" {
		user = "system"
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, row := range valid {
		day := model.Date(row.Day)
		if _, err := tx.Exec(ctx, `DELETE FROM soup_calendar WHERE day=$1`, day); err != nil {
			return nil, fmt.Errorf("delete day %s: %w", day.Format("2006-01-02"), err)
		}
		for _, soup := range row.Soups {
			if _, err := tx.Exec(ctx, `
				INSERT INTO soup_calendar (day, soup, created_by) VALUES ($1,$2,$3)
			`, day, soup, user); err != nil {
				return nil, fmt.Errorf("insert soup: %w", err)
			}
			result.Rows++
		}
		if result.StartDate.IsZero() || day.Before(result.StartDate) {
			result.StartDate = day
		}
		if day.After(result.EndDate) {
			result.EndDate = day
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit upsert: %w", err)
	}
	return result, nil
}

// GetSoupsForDay returns the calendar entry for day, or nil when there is
// none.
func (r *CalendarRepository) GetSoupsForDay(ctx context.Context, day time.Time) (*model.SoupDay, error) {
	var (
		stored time.Time
		soups  []string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT day, soups FROM soup_calendar_view WHERE day=$1
	`, model.Date(day)).Scan(&stored, &soups)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select soup day: %w", err)
	}
	return model.NewSoupDay(stored, soups, r.today()), nil
}

// GetSoupsForWeek returns the Sunday to Saturday week containing day.
func (r *CalendarRepository) GetSoupsForWeek(ctx context.Context, day time.Time) (*model.SoupWeek, error) {
	start, end := model.WeekBounds(day)
	rows, err := r.pool.Query(ctx, `
		SELECT day, soups FROM soup_calendar_view
		WHERE day BETWEEN $1 AND $2
		ORDER BY day
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("select soup week: %w", err)
	}
	defer rows.Close()

	today := r.today()
	var days []model.SoupDay
	for rows.Next() {
		var (
			d     time.Time
			soups []string
		)
		if err := rows.Scan(&d, &soups); err != nil {
			return nil, fmt.Errorf("scan soup week: %w", err)
		}
		days = append(days, *model.NewSoupDay(d, soups, today))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate soup week: %w", err)
	}
	return model.NewSoupWeek(start, end, days, today), nil
}

// SearchSoup finds soups on or after from whose name contains term,
// ordered by day and then by where in the name the term appears.
func (r *CalendarRepository) SearchSoup(ctx context.Context, term string, from time.Time, limit int) ([]model.SoupMatch, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []model.SoupMatch{}, nil
	}
	return r.querySoups(ctx, `
		SELECT day, soup FROM soup_calendar
		WHERE day >= $1 AND strpos(lower(soup), lower($2)) > 0
		ORDER BY day, strpos(lower(soup), lower($2)), id
		LIMIT $3
	`, model.Date(from), term, limit)
}

// SearchSoupOnDay finds soups served on day whose name contains term.
func (r *CalendarRepository) SearchSoupOnDay(ctx context.Context, term string, day time.Time) ([]model.SoupMatch, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []model.SoupMatch{}, nil
	}
	return r.querySoups(ctx, `
		SELECT day, soup FROM soup_calendar
		WHERE day = $1 AND strpos(lower(soup), lower($2)) > 0
		ORDER BY strpos(lower(soup), lower($2)), id
	`, model.Date(day), term)
}

// AllSoups lists every soup from the given day on, for the search index.
func (r *CalendarRepository) AllSoups(ctx context.Context, from time.Time) ([]model.SoupMatch, error) {
	return r.querySoups(ctx, `
		SELECT day, soup FROM soup_calendar WHERE day >= $1 ORDER BY day, id
	`, model.Date(from))
}

func (r *CalendarRepository) querySoups(ctx context.Context, sql string, args ...any) ([]model.SoupMatch, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select soups: %w", err)
	}
	defer rows.Close()
	out := []model.SoupMatch{}
	for rows.Next() {
		var m model.SoupMatch
		if err := rows.Scan(&m.Day, &m.Soup); err != nil {
			return nil, fmt.Errorf("scan soup: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate soups: %w", err)
	}
	return out, nil
}
