package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a
// fallback when Meilisearch is down.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

const personVector = `to_tsvector('simple', p.name || ' ' || p.surname || ' ' || p.birth_place || ' ' || p.death_place || ' ' || p.occupation)`

// Search executes a UNION ALL query over persons and notes using
// plainto_tsquery and ts_rank, with ts_headline for snippets. Place
// hits come out of the persons table as well since raw place strings
// live on person rows.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('simple', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultPerson || q.FilterType == ResultPlace {
		where := personVector + " @@ " + tsQuery
		if q.FilterTreeID != "" {
			where += fmt.Sprintf(" AND p.tree_id = $%d", argN)
			args = append(args, q.FilterTreeID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'person'::text AS type, p.tree_id || ':' || p.person_id AS id, p.name AS title,
				ts_headline('simple', p.birth_place || ' ' || p.occupation, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				p.tree_id, p.person_id,
				ts_rank(%s, %s) AS rank
			FROM persons p
			WHERE %s`, tsQuery, personVector, tsQuery, where))
	}

	if q.FilterType == "" || q.FilterType == ResultNote {
		where := "to_tsvector('simple', n.body) @@ " + tsQuery
		if q.FilterTreeID != "" {
			where += fmt.Sprintf(" AND n.tree_id = $%d", argN)
			args = append(args, q.FilterTreeID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'note'::text AS type, n.id, 'note'::text AS title,
				ts_headline('simple', n.body, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				n.tree_id, n.person_id,
				ts_rank(to_tsvector('simple', n.body), %s) AS rank
			FROM notes n
			WHERE %s`, tsQuery, tsQuery, where))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, tree_id, person_id
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.TreeID, &r.PersonID); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadTreeRecords returns all searchable records for one tree, used
// when reindexing into Meilisearch after an import.
func (p *PgFTS) LoadTreeRecords(ctx context.Context, treeID string) ([]PersonRecord, []NoteRecord, error) {
	personRows, err := p.db.QueryContext(ctx, `
		SELECT tree_id, person_id, name, surname, birth_place, death_place, occupation
		FROM persons
		WHERE tree_id = $1
	`, treeID)
	if err != nil {
		return nil, nil, fmt.Errorf("load persons: %w", err)
	}
	defer personRows.Close()

	persons := make([]PersonRecord, 0)
	for personRows.Next() {
		var r PersonRecord
		if err := personRows.Scan(&r.TreeID, &r.PersonID, &r.Name, &r.Surname, &r.BirthPlace, &r.DeathPlace, &r.Occupation); err != nil {
			return nil, nil, fmt.Errorf("scan person: %w", err)
		}
		r.ID = r.TreeID + ":" + r.PersonID
		persons = append(persons, r)
	}
	if err := personRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate persons: %w", err)
	}

	noteRows, err := p.db.QueryContext(ctx, `
		SELECT id, tree_id, person_id, body
		FROM notes
		WHERE tree_id = $1
	`, treeID)
	if err != nil {
		return nil, nil, fmt.Errorf("load notes: %w", err)
	}
	defer noteRows.Close()

	notes := make([]NoteRecord, 0)
	for noteRows.Next() {
		var n NoteRecord
		if err := noteRows.Scan(&n.ID, &n.TreeID, &n.PersonID, &n.Body); err != nil {
			return nil, nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := noteRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate notes: %w", err)
	}

	return persons, notes, nil
}
