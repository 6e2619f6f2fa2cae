package publication

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/core/user"
)

// Types
const (
	TypeThesis  = "Thesis"
	TypePaper   = "Paper"
	TypeJournal = "Journal"
	TypeArticle = "Article"
)

var (
	ErrNotFound  = core.NewNotFoundError("publication not found")
	ErrNotAuthor = core.NewPermissionError("only the author can delete this publication")
)

type (
	Publication struct {
		ID        string    `json:"id"`
		AuthorID  string    `json:"author_id"`
		Author    string    `json:"author"`
		Title     string    `json:"title"`
		Abstract  string    `json:"abstract"`
		Tags      []string  `json:"tags"`
		Type      string    `json:"type"`
		FileURL   string    `json:"file_url"`
		Size      int64     `json:"size"`
		Downloads int       `json:"downloads"`
		CreatedAt time.Time `json:"created_at"` // UTC
	}

	NewPublication struct {
		Title    string   `json:"title" validate:"required,notblank"`
		Abstract string   `json:"abstract"`
		Tags     []string `json:"tags"`
		Type     string   `json:"type" validate:"required,oneof=Thesis Paper Journal Article"`
		FileURL  string   `json:"file_url" validate:"required,url"`
		Size     int64    `json:"size" validate:"gte=0,lte=1099511627776"`
	}

	QueryFilter struct {
		Search   string `query:"search"`
		Type     string `query:"type"`
		AuthorID string `query:"author_id"`
	}

	Repository interface {
		CreatePublication(ctx context.Context, p Publication) (Publication, error)
		QueryPublications(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Publication, error)
		GetPublication(ctx context.Context, id string) (Publication, error)
		DeletePublication(ctx context.Context, id string) error
	}

	// StorageCharger adds bytes to a user's storage counter.
	StorageCharger interface {
		ChargeStorage(ctx context.Context, ownerID string, byteDelta int64) error
	}

	Service interface {
		Upload(ctx context.Context, actor user.User, np NewPublication) (Publication, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Publication, error)
		Get(ctx context.Context, id string) (Publication, error)
		Delete(ctx context.Context, actor user.User, id string) error
	}

	service struct {
		repo    Repository
		storage StorageCharger
		tx      core.Transactor
		metrics core.Recorder
	}
)

func (np *NewPublication) Validate(validate *validator.Validate) error {
	np.Title = core.CleanString(np.Title)
	np.Abstract = core.CleanString(np.Abstract)
	np.Tags = core.CleanStrings(np.Tags, true /* lower */)
	np.FileURL = core.CleanString(np.FileURL)
	return validate.Struct(np)
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Type = core.CleanString(qf.Type)
	qf.AuthorID = core.CleanString(qf.AuthorID)
}

// Match reports whether p satisfies every set field of the filter. Search also looks at tags.
func (qf *QueryFilter) Match(p Publication) bool {
	if qf == nil {
		return true
	}
	if qf.Search != "" {
		s := strings.ToLower(qf.Search)
		hit := strings.Contains(strings.ToLower(p.Title), s) || strings.Contains(strings.ToLower(p.Abstract), s)
		for _, t := range p.Tags {
			hit = hit || strings.Contains(t, s)
		}
		if !hit {
			return false
		}
	}
	if qf.Type != "" && p.Type != qf.Type {
		return false
	}
	if qf.AuthorID != "" && p.AuthorID != qf.AuthorID {
		return false
	}
	return true
}

var _ Service = (*service)(nil)

func NewService(repo Repository, storage StorageCharger, tx core.Transactor, metrics core.Recorder) Service {
	if tx == nil {
		tx = core.NoTx
	}
	if metrics == nil {
		metrics = core.NopRecorder
	}
	return &service{repo: repo, storage: storage, tx: tx, metrics: metrics}
}

// Upload stores the record and charges its size to the author in one transaction.
func (svc *service) Upload(ctx context.Context, actor user.User, np NewPublication) (Publication, error) {
	p := Publication{
		ID:        uuid.New().String(),
		AuthorID:  actor.ID,
		Author:    actor.Name,
		Title:     np.Title,
		Abstract:  np.Abstract,
		Tags:      np.Tags,
		Type:      np.Type,
		FileURL:   np.FileURL,
		Size:      np.Size,
		CreatedAt: core.NowFunc(),
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}

	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if p, err = svc.repo.CreatePublication(ctx, p); err != nil {
			return errors.Wrap(err, "creating publication")
		}
		return svc.storage.ChargeStorage(ctx, actor.ID, np.Size)
	})
	if err != nil {
		return Publication{}, err
	}
	svc.metrics.StorageCharged(core.ChargePublication, np.Size)
	return p, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Publication, error) {
	ps, err := svc.repo.QueryPublications(ctx, filter, ordering)
	return ps, errors.Wrap(err, "querying publications")
}

func (svc *service) Get(ctx context.Context, id string) (Publication, error) {
	return svc.repo.GetPublication(ctx, id)
}

// Delete removes the record. The storage charged at upload is not given back.
func (svc *service) Delete(ctx context.Context, actor user.User, id string) error {
	p, err := svc.repo.GetPublication(ctx, id)
	if err != nil {
		return err
	}
	if p.AuthorID != actor.ID && !actor.IsAdmin() {
		return ErrNotAuthor
	}
	return errors.Wrap(svc.repo.DeletePublication(ctx, id), "deleting publication")
}
