package pgdb

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/core/publication"
)

const publicationColumns = `p.id, p.author_id, p.author, p.title, p.abstract, p.tags, p.type, p.file_url, p.size, p.downloads, p.created_at`

var publicationOrderColumns = map[string]string{
	"title":      "p.title",
	"downloads":  "p.downloads",
	"created_at": "p.created_at",
}

type publicationRow struct {
	ID        string         `db:"id"`
	AuthorID  string         `db:"author_id"`
	Author    string         `db:"author"`
	Title     string         `db:"title"`
	Abstract  string         `db:"abstract"`
	Tags      pq.StringArray `db:"tags"`
	Type      string         `db:"type"`
	FileURL   string         `db:"file_url"`
	Size      int64          `db:"size"`
	Downloads int            `db:"downloads"`
	CreatedAt time.Time      `db:"created_at"`
}

func (r publicationRow) publication() publication.Publication {
	p := publication.Publication{
		ID:        r.ID,
		AuthorID:  r.AuthorID,
		Author:    r.Author,
		Title:     r.Title,
		Abstract:  r.Abstract,
		Tags:      []string(r.Tags),
		Type:      r.Type,
		FileURL:   r.FileURL,
		Size:      r.Size,
		Downloads: r.Downloads,
		CreatedAt: r.CreatedAt.UTC(),
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return p
}

type publicationRepository struct {
	db *sqlx.DB
}

var _ publication.Repository = (*publicationRepository)(nil) // interface compliance check

func NewPublicationRepository(db *sqlx.DB) publication.Repository {
	return &publicationRepository{db: db}
}

func (repo *publicationRepository) CreatePublication(ctx context.Context, p publication.Publication) (publication.Publication, error) {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	q := `INSERT INTO publication (id, author_id, author, title, abstract, tags, type, file_url, size, downloads, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := executor(ctx, repo.db).ExecContext(ctx, q,
		p.ID, p.AuthorID, p.Author, p.Title, p.Abstract, pq.Array(tags), p.Type, p.FileURL, p.Size, p.Downloads, p.CreatedAt.UTC())
	if err != nil {
		return publication.Publication{}, errors.Wrap(err, "inserting publication")
	}
	return p, nil
}

func (repo *publicationRepository) QueryPublications(ctx context.Context, filter *publication.QueryFilter, ordering []core.DBOrdering) ([]publication.Publication, error) {
	var w where
	if filter != nil {
		if filter.Search != "" {
			pattern := likePattern(filter.Search)
			w.add("p.title ILIKE ? OR p.abstract ILIKE ? OR EXISTS (SELECT 1 FROM UNNEST(p.tags) tag WHERE tag ILIKE ?)",
				pattern, pattern, pattern)
		}
		if filter.Type != "" {
			w.add("p.type = ?", filter.Type)
		}
		if filter.AuthorID != "" {
			w.add("p.author_id = ?", filter.AuthorID)
		}
	}

	ex := executor(ctx, repo.db)
	q := `SELECT ` + publicationColumns + ` FROM publication p` + w.String() +
		orderClause(ordering, publicationOrderColumns, core.DBOrdering{Field: "created_at"})

	var rows []publicationRow
	if err := sqlx.SelectContext(ctx, ex, &rows, ex.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying publications")
	}
	ps := make([]publication.Publication, 0, len(rows))
	for _, r := range rows {
		ps = append(ps, r.publication())
	}
	return ps, nil
}

func (repo *publicationRepository) GetPublication(ctx context.Context, id string) (publication.Publication, error) {
	var row publicationRow
	q := `SELECT ` + publicationColumns + ` FROM publication p WHERE p.id = $1`
	if err := sqlx.GetContext(ctx, executor(ctx, repo.db), &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return publication.Publication{}, publication.ErrNotFound
		}
		return publication.Publication{}, errors.Wrap(err, "finding publication")
	}
	return row.publication(), nil
}

func (repo *publicationRepository) DeletePublication(ctx context.Context, id string) error {
	res, err := executor(ctx, repo.db).ExecContext(ctx, `DELETE FROM publication WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting publication")
	}
	return mustAffect(res, publication.ErrNotFound)
}
