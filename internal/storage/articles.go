package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/newspulse/newspulse/internal/news"
)

const articleColumns = `id, title, content, summary, url, source, source_id, author,
	published_at, fetched_at, category, category_score, status, metadata_json`

// CreateArticle inserts a new article row. The uniqueness constraints on url
// and (source, source_id) are the final arbiter against concurrent producers:
// a violation surfaces as ErrDuplicate, never as a generic failure.
func (s *Store) CreateArticle(a news.Article) error {
	metaJSON, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	fetchedAt := a.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}

	_, err = s.db.Exec(`
		INSERT INTO articles (id, title, content, summary, url, source, source_id, author,
			published_at, fetched_at, category, category_score, status, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Title, a.Content, a.Summary, a.URL, a.Source, a.SourceID, a.Author,
		a.PublishedAt.UTC().Format(time.RFC3339), fetchedAt.Format(time.RFC3339),
		nullableCategory(a.Category), nullableFloat(a.CategoryScore),
		string(a.Status), string(metaJSON),
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetArticle returns the article with the given id.
func (s *Store) GetArticle(id string) (news.Article, error) {
	row := s.db.QueryRow(`SELECT `+articleColumns+` FROM articles WHERE id = ?`, id)
	return scanArticle(row)
}

// FindBySourceID returns the article matching the natural key (source, sourceID).
func (s *Store) FindBySourceID(source, sourceID string) (news.Article, error) {
	row := s.db.QueryRow(`SELECT `+articleColumns+` FROM articles WHERE source = ? AND source_id = ?`,
		source, sourceID)
	return scanArticle(row)
}

// FindByURL returns the article with the given url.
func (s *Store) FindByURL(url string) (news.Article, error) {
	row := s.db.QueryRow(`SELECT `+articleColumns+` FROM articles WHERE url = ?`, url)
	return scanArticle(row)
}

// ApplyClassification sets category, score, status COMPLETED, and the
// enriched metadata in a single atomic update. One successful classification
// attempt mutates the row exactly once.
func (s *Store) ApplyClassification(id string, category news.Category, score float64, meta news.Metadata) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	res, err := s.db.Exec(`
		UPDATE articles
		SET category = ?, category_score = ?, status = ?, metadata_json = ?
		WHERE id = ?`,
		string(category), score, string(news.StatusCompleted), string(metaJSON), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetClassificationStatus updates only the status column. Used by the
// exhausted-retries hook (-> FAILED) and the retry command (-> PENDING).
func (s *Store) SetClassificationStatus(id string, status news.ClassificationStatus) error {
	res, err := s.db.Exec(`UPDATE articles SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByStatus returns up to limit articles in the given classification state,
// oldest first so operational sweeps make forward progress.
func (s *Store) ListByStatus(status news.ClassificationStatus, limit int) ([]news.Article, error) {
	rows, err := s.db.Query(`
		SELECT `+articleColumns+` FROM articles
		WHERE status = ? ORDER BY fetched_at ASC LIMIT ?`, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectArticles(rows)
}

// FixPendingWithCategory repairs the recoverable anomaly of PENDING rows that
// already carry a category: they are promoted to COMPLETED with category and
// score untouched. Returns the number of rows repaired.
func (s *Store) FixPendingWithCategory() (int64, error) {
	res, err := s.db.Exec(`
		UPDATE articles SET status = ?
		WHERE status = ? AND category IS NOT NULL`,
		string(news.StatusCompleted), string(news.StatusPending))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListArticles returns a filtered page ordered by recency.
func (s *Store) ListArticles(f ArticleFilter, limit, offset int) ([]news.Article, error) {
	where, args := filterClause(f)
	query := `SELECT ` + articleColumns + ` FROM articles` + where +
		` ORDER BY published_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectArticles(rows)
}

// CountArticles counts rows matching the same predicate ListArticles uses.
func (s *Store) CountArticles(f ArticleFilter) (int, error) {
	where, args := filterClause(f)
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM articles`+where, args...).Scan(&count)
	return count, err
}

// CategoryCounts groups classified articles by category. Categories with no
// articles are absent from the map; the search service zero-fills them.
func (s *Store) CategoryCounts() (map[news.Category]int, error) {
	rows, err := s.db.Query(`
		SELECT category, COUNT(*) FROM articles
		WHERE category IS NOT NULL GROUP BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[news.Category]int)
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, err
		}
		counts[news.Category(category)] = count
	}
	return counts, rows.Err()
}

// Candidate is an article matched by the lexical predicate, carried together
// with its stored embedding (nil when none exists) for in-process ranking.
type Candidate struct {
	Article   news.Article
	Embedding []float32
}

// SearchCandidates returns every article whose title or content matches the
// query case-insensitively and that passes the filters. Ranking, counting,
// and pagination all happen over this one result set so the total can never
// drift from the page under concurrent writes.
func (s *Store) SearchCandidates(query string, f ArticleFilter) ([]Candidate, error) {
	where, args := filterClause(f)
	needle := strings.ToLower(query)

	predicate := `(instr(lower(a.title), ?) > 0 OR instr(lower(a.content), ?) > 0)`
	if where == "" {
		where = " WHERE " + predicate
	} else {
		where = strings.Replace(where, " WHERE ", " WHERE "+predicate+" AND ", 1)
	}
	args = append([]interface{}{needle, needle}, args...)

	rows, err := s.db.Query(`
		SELECT `+prefixedArticleColumns()+`, e.embedding
		FROM articles a
		LEFT JOIN article_embeddings e ON e.article_id = a.id`+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		a, blob, err := scanArticleWithBlob(rows)
		if err != nil {
			return nil, err
		}
		c := Candidate{Article: a}
		if len(blob) > 0 {
			vec, err := decodeFloat32s(blob)
			if err != nil {
				return nil, fmt.Errorf("decoding embedding for %s: %w", a.ID, err)
			}
			c.Embedding = vec
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// filterClause builds the shared WHERE clause for filtered article queries.
// Predicates reference the "a" alias-free column names, which also resolve
// against the aliased table in SearchCandidates.
func filterClause(f ArticleFilter) (string, []interface{}) {
	var predicates []string
	var args []interface{}

	if f.Category != "" {
		predicates = append(predicates, "category = ?")
		args = append(args, f.Category)
	}
	if f.Source != "" {
		predicates = append(predicates, "source = ?")
		args = append(args, f.Source)
	}
	if !f.From.IsZero() {
		predicates = append(predicates, "published_at >= ?")
		args = append(args, f.From.UTC().Format(time.RFC3339))
	}
	if !f.To.IsZero() {
		predicates = append(predicates, "published_at <= ?")
		args = append(args, f.To.UTC().Format(time.RFC3339))
	}

	if len(predicates) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(predicates, " AND "), args
}

func prefixedArticleColumns() string {
	cols := strings.Split(articleColumns, ",")
	for i, c := range cols {
		cols[i] = "a." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArticle(row rowScanner) (news.Article, error) {
	a, _, err := scanArticleFields(row, false)
	return a, err
}

func scanArticleWithBlob(row rowScanner) (news.Article, []byte, error) {
	return scanArticleFields(row, true)
}

func scanArticleFields(row rowScanner, withBlob bool) (news.Article, []byte, error) {
	var a news.Article
	var publishedAt, fetchedAt, metaJSON string
	var category sql.NullString
	var score sql.NullFloat64
	var status string
	var blob []byte

	dest := []interface{}{
		&a.ID, &a.Title, &a.Content, &a.Summary, &a.URL, &a.Source, &a.SourceID, &a.Author,
		&publishedAt, &fetchedAt, &category, &score, &status, &metaJSON,
	}
	if withBlob {
		dest = append(dest, &blob)
	}

	err := row.Scan(dest...)
	if err == sql.ErrNoRows {
		return news.Article{}, nil, ErrNotFound
	}
	if err != nil {
		return news.Article{}, nil, err
	}

	if a.PublishedAt, err = time.Parse(time.RFC3339, publishedAt); err != nil {
		return news.Article{}, nil, fmt.Errorf("parsing published_at for %s: %w", a.ID, err)
	}
	if a.FetchedAt, err = time.Parse(time.RFC3339, fetchedAt); err != nil {
		return news.Article{}, nil, fmt.Errorf("parsing fetched_at for %s: %w", a.ID, err)
	}
	if category.Valid {
		c := news.Category(category.String)
		a.Category = &c
	}
	if score.Valid {
		v := score.Float64
		a.CategoryScore = &v
	}
	a.Status = news.ClassificationStatus(status)
	if err := json.Unmarshal([]byte(metaJSON), &a.Metadata); err != nil {
		return news.Article{}, nil, fmt.Errorf("unmarshaling metadata for %s: %w", a.ID, err)
	}

	return a, blob, nil
}

func collectArticles(rows *sql.Rows) ([]news.Article, error) {
	var articles []news.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func nullableCategory(c *news.Category) interface{} {
	if c == nil {
		return nil
	}
	return string(*c)
}

func nullableFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}
