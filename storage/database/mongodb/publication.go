package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/core/publication"
)

var publicationSortFields = map[string]string{
	"title":      "title",
	"downloads":  "downloads",
	"created_at": "created_at",
}

type publicationDoc struct {
	ID        string    `bson:"_id"`
	AuthorID  string    `bson:"author_id"`
	Author    string    `bson:"author"`
	Title     string    `bson:"title"`
	Abstract  string    `bson:"abstract"`
	Tags      []string  `bson:"tags"`
	Type      string    `bson:"type"`
	FileURL   string    `bson:"file_url"`
	Size      int64     `bson:"size"`
	Downloads int       `bson:"downloads"`
	CreatedAt time.Time `bson:"created_at"`
}

func (d publicationDoc) publication() publication.Publication {
	p := publication.Publication(d)
	p.CreatedAt = utc(d.CreatedAt)
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return p
}

type publicationRepository struct {
	col *mongo.Collection
}

var _ publication.Repository = (*publicationRepository)(nil) // interface compliance check

func NewPublicationRepository(db *DB) publication.Repository {
	return &publicationRepository{col: db.col(colPublications)}
}

func (repo *publicationRepository) CreatePublication(ctx context.Context, p publication.Publication) (publication.Publication, error) {
	d := publicationDoc(p)
	d.CreatedAt = d.CreatedAt.UTC()
	if d.Tags == nil {
		d.Tags = []string{}
	}
	if _, err := repo.col.InsertOne(ctx, d); err != nil {
		return publication.Publication{}, errors.Wrap(err, "inserting publication")
	}
	return p, nil
}

func (repo *publicationRepository) QueryPublications(ctx context.Context, filter *publication.QueryFilter, ordering []core.DBOrdering) ([]publication.Publication, error) {
	q := bson.M{}
	if filter != nil {
		if filter.Search != "" {
			re := contains(filter.Search)
			q["$or"] = bson.A{bson.M{"title": re}, bson.M{"abstract": re}, bson.M{"tags": re}}
		}
		if filter.Type != "" {
			q["type"] = filter.Type
		}
		if filter.AuthorID != "" {
			q["author_id"] = filter.AuthorID
		}
	}

	opts := options.Find().SetSort(sortBy(ordering, publicationSortFields, core.DBOrdering{Field: "created_at"}))
	cur, err := repo.col.Find(ctx, q, opts)
	if err != nil {
		return nil, errors.Wrap(err, "querying publications")
	}
	var docs []publicationDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding publications")
	}
	ps := make([]publication.Publication, 0, len(docs))
	for _, d := range docs {
		ps = append(ps, d.publication())
	}
	return ps, nil
}

func (repo *publicationRepository) GetPublication(ctx context.Context, id string) (publication.Publication, error) {
	var d publicationDoc
	if err := repo.col.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if err == mongo.ErrNoDocuments {
			return publication.Publication{}, publication.ErrNotFound
		}
		return publication.Publication{}, errors.Wrap(err, "finding publication")
	}
	return d.publication(), nil
}

func (repo *publicationRepository) DeletePublication(ctx context.Context, id string) error {
	res, err := repo.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "deleting publication")
	}
	if res.DeletedCount == 0 {
		return publication.ErrNotFound
	}
	return nil
}
