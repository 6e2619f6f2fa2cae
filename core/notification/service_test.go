package notification_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/core/notification"
	"github.com/danielortegac/qlase/core/user"
	"github.com/danielortegac/qlase/tests"
)

var (
	ctx   = context.Background()
	draft = notification.Draft{
		Title:      "Assignment graded",
		Message:    "Your essay was graded.",
		Type:       notification.TypeGrade,
		ActionLink: "course-1",
	}
)

func TestDispatcher_Broadcast(t *testing.T) {
	env := testutil.NewEnv(t)

	require.NoError(t, env.Notifications.Broadcast(ctx, nil, draft))
	assert.Zero(t, env.DB.CountNotifications())

	ids := []string{"u1", "u2", "u3"}
	require.NoError(t, env.Notifications.Broadcast(ctx, ids, draft))
	assert.Equal(t, 3, env.DB.CountNotifications(notification.TypeGrade))

	for _, id := range ids {
		ns, err := env.Notifications.Query(ctx, id)
		require.NoError(t, err)
		require.Len(t, ns, 1)
		assert.Equal(t, id, ns[0].UserID)
		assert.Equal(t, draft.Message, ns[0].Message)
		assert.False(t, ns[0].Read)
	}
	assert.Empty(t, env.Mail.SentMessages(), "email mirror is off by default")
}

func TestDispatcher_Broadcast_failure(t *testing.T) {
	env := testutil.NewEnv(t)
	env.NotificationRepo.Fail.Store(true)

	err := env.Notifications.Notify(ctx, "u1", draft)
	assert.Equal(t, testutil.ErrInjected, errors.Cause(err))
	assert.Zero(t, env.DB.CountNotifications())
}

func TestDispatcher_Query_newestFirst(t *testing.T) {
	env := testutil.NewEnv(t)
	start := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	origNow := core.NowFunc
	defer func() { core.NowFunc = origNow }()

	for i := 0; i < 3; i++ {
		now := start.Add(time.Duration(i) * time.Hour)
		core.NowFunc = func() time.Time { return now }
		d := draft
		d.Title = fmt.Sprintf("n%d", i)
		require.NoError(t, env.Notifications.Notify(ctx, "u1", d))
	}

	ns, err := env.Notifications.Query(ctx, "u1")
	require.NoError(t, err)
	var titles []string
	for _, n := range ns {
		titles = append(titles, n.Title)
	}
	assert.Equal(t, []string{"n2", "n1", "n0"}, titles)
}

func TestDispatcher_MarkRead(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := testutil.CreateStudent(t, env.UserRepo, "Owner", "owner@example.com")
	other := testutil.CreateStudent(t, env.UserRepo, "Other", "other@example.com")

	require.NoError(t, env.Notifications.Notify(ctx, owner.ID, draft))
	ns, err := env.Notifications.Query(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, ns, 1)

	_, err = env.Notifications.MarkRead(ctx, other, ns[0].ID)
	assert.Equal(t, notification.ErrNotFound, err)

	n, err := env.Notifications.MarkRead(ctx, owner, ns[0].ID)
	require.NoError(t, err)
	assert.True(t, n.Read)

	n, err = env.Notifications.MarkRead(ctx, owner, ns[0].ID)
	require.NoError(t, err)
	assert.True(t, n.Read, "marking twice is harmless")

	_, err = env.Notifications.MarkRead(ctx, owner, "missing")
	assert.True(t, core.IsNotFound(err))
}

func TestDispatcher_emailMirror(t *testing.T) {
	env := testutil.NewEnv(t, func(conf *core.Config) { conf.EmailNotifications = true })

	var ids []string
	for i := 0; i < 120; i++ {
		usr := testutil.CreateStudent(t, env.UserRepo, fmt.Sprintf("Student %d", i), fmt.Sprintf("s%03d@example.com", i))
		ids = append(ids, usr.ID)
	}
	invited := testutil.CreateUser(t, env.UserRepo, "Invited", "invited@example.com", "", []string{user.RoleStudent}, user.StatusInvited)
	ids = append(ids, invited.ID, "deleted-user")

	require.NoError(t, env.Notifications.Broadcast(ctx, ids, draft))
	assert.Equal(t, len(ids), env.DB.CountNotifications(), "records are written for everyone")

	sent := env.Mail.SentMessages()
	require.Len(t, sent, 120, "emails only go to active accounts")
	seen := make(map[string]bool)
	for _, msg := range sent {
		require.Len(t, msg.To, 1)
		seen[msg.To[0].Address] = true
		assert.Equal(t, draft.Title, msg.Subject)
		assert.Contains(t, msg.TextContent, draft.Message)
		assert.Contains(t, msg.HTMLContent, env.Conf.FrontendBaseURL+"/course-1")
	}
	assert.Len(t, seen, 120)
	assert.False(t, seen["invited@example.com"])
}
