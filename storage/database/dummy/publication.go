package dummydb

import (
	"context"
	"strings"

	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/core/publication"
)

type publicationRepository struct {
	db *DB
}

var _ publication.Repository = (*publicationRepository)(nil) // interface compliance check

func NewPublicationRepository(db *DB) publication.Repository {
	return &publicationRepository{db: db}
}

func (repo *publicationRepository) t() *publicationTable { return repo.db.publication }

func (repo *publicationRepository) CreatePublication(ctx context.Context, p publication.Publication) (publication.Publication, error) {
	tbl := repo.t()
	tbl.Lock()
	defer tbl.Unlock()

	cp := p
	cp.Tags = append([]string{}, p.Tags...)
	tbl.table[p.ID] = &cp
	onRollback(ctx, func() {
		tbl.Lock()
		defer tbl.Unlock()
		delete(tbl.table, p.ID)
	})
	return p, nil
}

func (repo *publicationRepository) QueryPublications(ctx context.Context, filter *publication.QueryFilter, ordering []core.DBOrdering) ([]publication.Publication, error) {
	tbl := repo.t()
	tbl.RLock()
	defer tbl.RUnlock()

	var ps []publication.Publication
	for _, p := range tbl.table {
		if filter.Match(*p) {
			ps = append(ps, *p)
		}
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	orderBy(ps, ordering, map[string]func(i, j int) int{
		"title":      func(i, j int) int { return strings.Compare(ps[i].Title, ps[j].Title) },
		"downloads":  func(i, j int) int { return ps[i].Downloads - ps[j].Downloads },
		"created_at": func(i, j int) int { return compareTimes(ps[i].CreatedAt, ps[j].CreatedAt) },
	})
	return ps, nil
}

func (repo *publicationRepository) GetPublication(ctx context.Context, id string) (publication.Publication, error) {
	tbl := repo.t()
	tbl.RLock()
	defer tbl.RUnlock()

	if p, ok := tbl.table[id]; ok {
		return *p, nil
	}
	return publication.Publication{}, publication.ErrNotFound
}

func (repo *publicationRepository) DeletePublication(ctx context.Context, id string) error {
	tbl := repo.t()
	tbl.Lock()
	defer tbl.Unlock()

	if _, ok := tbl.table[id]; !ok {
		return publication.ErrNotFound
	}
	delete(tbl.table, id)
	return nil
}
