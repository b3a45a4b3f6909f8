package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/lexrag/internal/core/domain"
)

// SourceRepository is a read-only adapter over the Document Store that the
// ingestion pipeline maintains. It also serves as the secondary
// keyword-only retrieval collaborator when the primary index is down.
type SourceRepository struct {
	db         *sql.DB
	httpClient *http.Client
}

func NewSourceRepository(db *sql.DB) *SourceRepository {
	return &SourceRepository{
		db:         db,
		httpClient: &http.Client{Timeout: 3 * time.Second},
	}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *SourceRepository) GetSource(ctx context.Context, documentID string) (*domain.SourceDocument, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, title, content, kind, issuing_body, issued_at, locator, updated_at
FROM documents
WHERE id = $1
`, documentID)

	var doc domain.SourceDocument
	var issuedAt sql.NullTime
	err := row.Scan(
		&doc.DocumentID, &doc.Title, &doc.Content, &doc.Kind,
		&doc.Authority.IssuingBody, &issuedAt, &doc.Authority.Locator, &doc.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.WrapError(domain.ErrSourceNotFound, "get source", domain.Errorf("id=%s", documentID))
	}
	if err != nil {
		return nil, fmt.Errorf("select source: %w", err)
	}
	if issuedAt.Valid {
		doc.Authority.IssuedAt = issuedAt.Time
	}
	doc.Freshness = domain.FreshnessForAge(doc.Authority.IssuedAt, time.Now())
	return &doc, nil
}

// VerifySource checks that the document exists and that its locator is
// still reachable. Non-HTTP locators count as accessible when the store
// row exists; the check is lightweight, not an integrity audit.
func (r *SourceRepository) VerifySource(ctx context.Context, documentID string) (*domain.SourceVerification, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT locator, issued_at FROM documents WHERE id = $1
`, documentID)

	var locator string
	var issuedAt sql.NullTime
	err := row.Scan(&locator, &issuedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.WrapError(domain.ErrSourceNotFound, "verify source", domain.Errorf("id=%s", documentID))
	}
	if err != nil {
		return nil, fmt.Errorf("select locator: %w", err)
	}

	verification := &domain.SourceVerification{
		DocumentID:   documentID,
		Accessible:   true,
		LastVerified: time.Now().UTC(),
	}
	if issuedAt.Valid {
		verification.Freshness = domain.FreshnessForAge(issuedAt.Time, time.Now())
	} else {
		verification.Freshness = domain.FreshnessForAge(time.Time{}, time.Now())
	}

	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		verification.Accessible = r.probeLocator(ctx, locator)
	}
	return verification, nil
}

func (r *SourceRepository) probeLocator(ctx context.Context, locator string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, locator, nil)
	if err != nil {
		return false
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 400
}

// SearchKeyword is the degraded-mode lexical search over the store's full
// text. Rank is squashed into [0,1) so downstream ordering rules apply
// unchanged.
func (r *SourceRepository) SearchKeyword(ctx context.Context, queryText string, limit int) ([]domain.RetrievedDocument, error) {
	if limit <= 0 {
		limit = 5
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, title, left(content, 600), kind, issuing_body, issued_at, locator,
       ts_rank(search_tsv, websearch_to_tsquery('english', $1)) AS rank
FROM documents
WHERE search_tsv @@ websearch_to_tsquery('english', $1)
ORDER BY rank DESC, id ASC
LIMIT $2
`, queryText, limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "keyword search", err)
	}
	defer rows.Close()

	now := time.Now()
	var out []domain.RetrievedDocument
	for rows.Next() {
		var doc domain.RetrievedDocument
		var issuedAt sql.NullTime
		var rank float64
		if err := rows.Scan(
			&doc.DocumentID, &doc.Title, &doc.Snippet, &doc.Kind,
			&doc.Authority.IssuingBody, &issuedAt, &doc.Authority.Locator, &rank,
		); err != nil {
			return nil, fmt.Errorf("scan keyword row: %w", err)
		}
		if issuedAt.Valid {
			doc.Authority.IssuedAt = issuedAt.Time
		}
		doc.Relevance = rank / (rank + 1)
		doc.Freshness = domain.FreshnessForAge(doc.Authority.IssuedAt, now)
		doc.ContentRef = doc.Authority.Locator
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "keyword search", err)
	}
	return out, nil
}
