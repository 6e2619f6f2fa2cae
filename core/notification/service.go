package notification

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/core/user"
)

var (
	ErrNotFound = core.NewNotFoundError("notification not found")

	lookupBatchSize   = 50
	lookupConcurrency = 4
	emailTemplate     = "notification"
)

func init() {
	core.MustRegisterEmailTemplate(emailTemplate,
		"{{.Data.Message}}\n\n{{.FrontendBaseURL}}/{{.Data.ActionLink}}\n",
		`<p>{{.Data.Message}}</p><p><a href="{{.FrontendBaseURL}}/{{.Data.ActionLink}}">Open</a></p>`,
	)
}

type (
	// Recipients resolves user IDs for the email mirror.
	Recipients interface {
		GetByIDs(ctx context.Context, ids ...string) ([]user.User, error)
	}

	Dispatcher interface {
		// Notify appends one notification for userID.
		Notify(ctx context.Context, userID string, d Draft) error
		// Broadcast appends one notification per user in a single batch. No users, no records.
		Broadcast(ctx context.Context, userIDs []string, d Draft) error
		Query(ctx context.Context, userID string) ([]Notification, error)
		MarkRead(ctx context.Context, actor user.User, id string) (Notification, error)
	}

	dispatcher struct {
		repo       Repository
		recipients Recipients
		mailSvc    core.EmailService
		mirror     bool
		logger     core.Logger
		metrics    core.Recorder
	}
)

var _ Dispatcher = (*dispatcher)(nil)

func NewDispatcher(
	repo Repository,
	recipients Recipients,
	mailSvc core.EmailService,
	conf *core.Config,
	logger core.Logger,
	metrics core.Recorder,
) Dispatcher {
	if metrics == nil {
		metrics = core.NopRecorder
	}
	return &dispatcher{
		repo:       repo,
		recipients: recipients,
		mailSvc:    mailSvc,
		mirror:     conf.EmailNotifications && mailSvc != nil && recipients != nil,
		logger:     logger,
		metrics:    metrics,
	}
}

func (d *dispatcher) Notify(ctx context.Context, userID string, draft Draft) error {
	return d.Broadcast(ctx, []string{userID}, draft)
}

func (d *dispatcher) Broadcast(ctx context.Context, userIDs []string, draft Draft) error {
	if len(userIDs) == 0 {
		return nil
	}

	now := core.NowFunc()
	records := make([]Notification, 0, len(userIDs))
	for _, uid := range userIDs {
		records = append(records, Notification{
			ID:         uuid.New().String(),
			UserID:     uid,
			Title:      draft.Title,
			Message:    draft.Message,
			Type:       draft.Type,
			ActionLink: draft.ActionLink,
			CreatedAt:  now,
		})
	}

	if err := d.repo.CreateNotifications(ctx, records...); err != nil {
		d.metrics.NotificationFailed(draft.Type)
		err = errors.Wrap(err, "creating notifications")
		d.logger.Error(err.Error(), err, map[string]interface{}{"type": draft.Type, "recipients": len(userIDs)})
		return err
	}
	d.metrics.NotificationsDispatched(draft.Type, len(records))

	if d.mirror {
		if err := d.mirrorToEmail(ctx, userIDs, draft); err != nil {
			d.logger.Warn("mirroring notifications to email", err)
		}
	}
	return nil
}

// mirrorToEmail looks the recipients up in batches, concurrently, then hands one message
// per active recipient to the mail service.
func (d *dispatcher) mirrorToEmail(ctx context.Context, userIDs []string, draft Draft) error {
	batches := make([][]string, 0, len(userIDs)/lookupBatchSize+1)
	for start := 0; start < len(userIDs); start += lookupBatchSize {
		end := start + lookupBatchSize
		if end > len(userIDs) {
			end = len(userIDs)
		}
		batches = append(batches, userIDs[start:end])
	}

	found := make([][]user.User, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			users, err := d.recipients.GetByIDs(gctx, batch...)
			if err != nil {
				return errors.Wrap(err, fmt.Sprintf("looking up recipients batch %d", i))
			}
			found[i] = users
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var msgs []*core.EmailMessage
	for _, users := range found {
		for _, usr := range users {
			if !usr.IsActive() || usr.Email == "" {
				continue
			}
			msgs = append(msgs, &core.EmailMessage{
				To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
				Subject:      draft.Title,
				TemplateName: emailTemplate,
				TemplateData: draft,
			})
		}
	}
	if len(msgs) > 0 {
		d.mailSvc.SendMessages(msgs...)
	}
	return nil
}

func (d *dispatcher) Query(ctx context.Context, userID string) ([]Notification, error) {
	ns, err := d.repo.QueryNotifications(ctx, userID)
	return ns, errors.Wrap(err, "querying notifications")
}

func (d *dispatcher) MarkRead(ctx context.Context, actor user.User, id string) (Notification, error) {
	n, err := d.repo.GetNotification(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	// someone else's notification does not exist as far as actor is concerned
	if n.UserID != actor.ID {
		return Notification{}, ErrNotFound
	}
	if n.Read {
		return n, nil
	}
	if err := d.repo.MarkRead(ctx, id); err != nil {
		return Notification{}, errors.Wrap(err, "marking notification read")
	}
	n.Read = true
	return n, nil
}
