package echoapi_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/core/notification"
	"github.com/danielortegac/qlase/core/publication"
	"github.com/danielortegac/qlase/core/user"
	"github.com/danielortegac/qlase/tests"
)

func Test_publicationApi(t *testing.T) {
	app := setup(t)
	ada := testutil.CreateTeacher(t, app.UserRepo, "Ada", "ada@test.cd")
	bob := testutil.CreateStudent(t, app.UserRepo, "Bob", "bob@test.cd")
	admin := testutil.CreateUser(t, app.UserRepo, "Admin", "admin@test.cd", "", []string{user.RoleAdmin}, user.StatusActive)
	adaToken := getToken(t, app.Conf, ada)
	bobToken := getToken(t, app.Conf, bob)

	upload := func(t *testing.T, token string, np publication.NewPublication) publication.Publication {
		t.Helper()
		rec := app.do(t, httpTest{method: http.MethodPost, path: "/v1/publications", body: marchallObj(t, np), token: token, wantCode: http.StatusCreated})
		var p publication.Publication
		unmarshal(t, rec, &p)
		return p
	}

	t.Run("upload validation", func(t *testing.T) {
		tests := []httpTest{
			{name: "no token", body: marchallObj(t, publication.NewPublication{}), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
			{
				name:     "missing fields",
				body:     marchallObj(t, publication.NewPublication{Type: publication.TypePaper, FileURL: "https://files.test/p.pdf"}),
				token:    adaToken,
				wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, map[string]string{"title": "this field is required"}),
			},
			{
				name:     "unknown type",
				body:     marchallObj(t, publication.NewPublication{Title: "On Graphs", Type: "Poem", FileURL: "https://files.test/p.pdf"}),
				token:    adaToken,
				wantCode: http.StatusBadRequest,
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				tt.method, tt.path = http.MethodPost, "/v1/publications"
				app.do(t, tt)
			})
		}
	})

	graphs := upload(t, adaToken, publication.NewPublication{
		Title:   " On Graphs ",
		Tags:    []string{"Math", " graphs "},
		Type:    publication.TypePaper,
		FileURL: "https://files.test/graphs.pdf",
		Size:    2048,
	})
	assert.Equal(t, "On Graphs", graphs.Title)
	assert.Equal(t, []string{"math", "graphs"}, graphs.Tags)
	assert.Equal(t, ada.ID, graphs.AuthorID)
	assert.Equal(t, "Ada", graphs.Author)
	origNow := core.NowFunc
	t.Cleanup(func() { core.NowFunc = origNow })
	later := time.Now().Add(time.Minute).UTC()
	core.NowFunc = func() time.Time { return later }
	thesis := upload(t, bobToken, publication.NewPublication{
		Title:   "Soil Erosion",
		Type:    publication.TypeThesis,
		FileURL: "https://files.test/soil.pdf",
		Size:    100,
	})

	// each author pays for their own upload
	assert.EqualValues(t, 2048, app.Reload(t, ada).StorageUsed)
	assert.EqualValues(t, 100, app.Reload(t, bob).StorageUsed)

	t.Run("query", func(t *testing.T) {
		tests := []struct {
			name  string
			query string
			want  []string
		}{
			{name: "newest first", query: "", want: []string{thesis.ID, graphs.ID}},
			{name: "by title", query: "?ordering=title", want: []string{graphs.ID, thesis.ID}},
			{name: "by tag", query: "?search=GRAPH", want: []string{graphs.ID}},
			{name: "by type", query: "?type=Thesis", want: []string{thesis.ID}},
			{name: "by author", query: "?author_id=" + ada.ID, want: []string{graphs.ID}},
			{name: "no match", query: "?search=zzz", want: []string{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := app.do(t, httpTest{method: http.MethodGet, path: "/v1/publications" + tt.query, token: bobToken, wantCode: http.StatusOK})
				var got []publication.Publication
				unmarshal(t, rec, &got)
				ids := make([]string, 0, len(got))
				for _, p := range got {
					ids = append(ids, p.ID)
				}
				assert.Equal(t, tt.want, ids)
			})
		}
	})

	t.Run("detail", func(t *testing.T) {
		notFound := marchallObj(t, httpErr{Error: publication.ErrNotFound.Error()})
		tests := []httpTest{
			{name: "get", method: http.MethodGet, path: "/v1/publications/" + graphs.ID, token: bobToken, wantCode: http.StatusOK},
			{name: "get unknown", method: http.MethodGet, path: "/v1/publications/nope", token: bobToken, wantCode: http.StatusNotFound, wantData: notFound},
			{
				name:     "delete by someone else",
				method:   http.MethodDelete,
				path:     "/v1/publications/" + graphs.ID,
				token:    bobToken,
				wantCode: http.StatusForbidden,
				wantData: marchallObj(t, httpErr{Error: publication.ErrNotAuthor.Error()}),
			},
			{name: "delete by author", method: http.MethodDelete, path: "/v1/publications/" + graphs.ID, token: adaToken, wantCode: http.StatusNoContent},
			{name: "gone", method: http.MethodGet, path: "/v1/publications/" + graphs.ID, token: adaToken, wantCode: http.StatusNotFound, wantData: notFound},
			{name: "delete by admin", method: http.MethodDelete, path: "/v1/publications/" + thesis.ID, token: getToken(t, app.Conf, admin), wantCode: http.StatusNoContent},
			{name: "delete unknown", method: http.MethodDelete, path: "/v1/publications/" + thesis.ID, token: bobToken, wantCode: http.StatusNotFound, wantData: notFound},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				app.do(t, tt)
			})
		}

		// storage is never given back
		assert.EqualValues(t, 2048, app.Reload(t, ada).StorageUsed)
	})
}

func Test_notificationApi(t *testing.T) {
	app := setup(t)
	ada := testutil.CreateStudent(t, app.UserRepo, "Ada", "ada@test.cd")
	bob := testutil.CreateStudent(t, app.UserRepo, "Bob", "bob@test.cd")
	adaToken := getToken(t, app.Conf, ada)

	app.do(t, httpTest{method: http.MethodGet, path: "/v1/notifications", token: adaToken, wantCode: http.StatusOK, wantData: []byte(`[]`)})

	require.NoError(t, app.Notifications.Notify(context.Background(), ada.ID, notification.Draft{Title: "Hi", Message: "Welcome", Type: notification.TypeSystem}))
	require.NoError(t, app.Notifications.Notify(context.Background(), bob.ID, notification.Draft{Title: "Hi", Message: "Welcome", Type: notification.TypeSystem}))

	rec := app.do(t, httpTest{method: http.MethodGet, path: "/v1/notifications", token: adaToken, wantCode: http.StatusOK})
	var ns []notification.Notification
	unmarshal(t, rec, &ns)
	require.Len(t, ns, 1)
	assert.Equal(t, ada.ID, ns[0].UserID)
	assert.False(t, ns[0].Read)

	path := "/v1/notifications/" + ns[0].ID + "/read"
	notFound := marchallObj(t, httpErr{Error: notification.ErrNotFound.Error()})
	tests := []httpTest{
		{name: "no token", path: path, wantCode: http.StatusUnauthorized},
		{name: "unknown", path: "/v1/notifications/nope/read", token: adaToken, wantCode: http.StatusNotFound, wantData: notFound},
		{name: "someone else's", path: path, token: getToken(t, app.Conf, bob), wantCode: http.StatusNotFound, wantData: notFound},
		{name: "ok", path: path, token: adaToken, wantCode: http.StatusOK},
		{name: "twice", path: path, token: adaToken, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodPost
			app.do(t, tt)
		})
	}

	rec = app.do(t, httpTest{method: http.MethodGet, path: "/v1/notifications", token: adaToken, wantCode: http.StatusOK})
	unmarshal(t, rec, &ns)
	require.Len(t, ns, 1)
	assert.True(t, ns[0].Read)
}
