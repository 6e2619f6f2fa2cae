package database

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/fs"
)

func TestDSN(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Database.Host = "db.local"
	conf.Database.Port = 5433
	conf.Database.User = "app"
	conf.Database.Password = "p@ss"
	conf.Database.AdminUser = "root"
	conf.Database.AdminPassword = "r00t"
	conf.Database.Timeout = 1500 * time.Millisecond

	tests := []struct {
		name       string
		admin      bool
		disableTLS bool
		wantUser   string
		wantSSL    string
	}{
		{name: "app user", wantUser: "app", wantSSL: "require"},
		{name: "admin", admin: true, wantUser: "root", wantSSL: "require"},
		{name: "no tls", disableTLS: true, wantUser: "app", wantSSL: "disable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf.Database.DisableTLS = tt.disableTLS
			u, err := url.Parse(DSN("qlase", tt.admin, conf))
			require.NoError(t, err)

			assert.Equal(t, "postgres", u.Scheme)
			assert.Equal(t, "db.local:5433", u.Host)
			assert.Equal(t, "/qlase", u.Path)
			assert.Equal(t, tt.wantUser, u.User.Username())
			assert.Equal(t, tt.wantSSL, u.Query().Get("sslmode"))
			assert.Equal(t, "utc", u.Query().Get("timezone"))
			assert.Equal(t, "1", u.Query().Get("connect_timeout"))
		})
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := appfs.FS.ReadDir(migrationsDir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
	for _, e := range entries {
		assert.Regexp(t, `^\d{14}_\w+\.sql$`, e.Name())
	}
}
