package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/core/user"
	"github.com/danielortegac/qlase/tests"
)

func TestOpen(t *testing.T) {
	conf := core.NewTestConfig()
	logger := testutil.NewLogger(conf)

	t.Run("memory", func(t *testing.T) {
		store, err := Open(context.Background(), conf, logger)
		require.NoError(t, err)
		assert.Nil(t, store.SQL)

		usr := testutil.CreateStudent(t, store.Users, "Ada", "ada@test.cd")
		got, err := store.Users.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
		require.NoError(t, err)
		assert.Equal(t, usr.Email, got.Email)
		assert.NoError(t, store.Close(context.Background()))
	})

	t.Run("unknown engine", func(t *testing.T) {
		bad := *conf
		bad.Database.Engine = "cassandra"
		_, err := Open(context.Background(), &bad, logger)
		assert.EqualError(t, err, `unknown database engine "cassandra"`)
	})
}
