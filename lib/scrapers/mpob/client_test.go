package mpob

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"palmstat-backend/lib/telemetry"

	"github.com/stretchr/testify/require"
)

const loginPage = `<html><head>
<script type="application/json" class="joomla-script-options new">{"csrf.token":"a1b2c3","system.paths":{"root":""}}</script>
</head><body>
<form action="/index.php/component/users/?task=user.login" method="post" class="com-users-login__form form-validate">
  <input type="text" name="username">
  <input type="password" name="password">
  <input type="hidden" name="remember" value="yes">
</form>
</body></html>`

type portal struct {
	*httptest.Server
	posted url.Values
}

func newPortal(t *testing.T, password string) *portal {
	p := &portal{}
	mux := http.NewServeMux()
	mux.HandleFunc("/index.php/component/users/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "anonymous"})
		w.Write([]byte(loginPage))
	})
	mux.HandleFunc("/index.php/component/users/", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		p.posted = r.PostForm
		if r.PostForm.Get("password") != password {
			w.Write([]byte(loginPage))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "member"})
		w.Write([]byte(`<html><body>welcome</body></html>`))
	})
	mux.HandleFunc("/index.php/export", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("session")
		if err != nil || cookie.Value != "member" {
			w.Write([]byte(loginPage))
			return
		}
		w.Write([]byte(`<html><body>
			<ul class="mod-articlescategory category-module mod-list"><li><ul>
				<li><a href="/index.php/export/dest-2024">Export of Palm Oil by Destinations 2024</a></li>
			</ul></li></ul>
			<iframe src="../../frames/export/dest2024.html"></iframe>
		</body></html>`))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Close)
	return p
}

func TestLoginAndFetch(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/mpob")
	defer cleanup()

	server := newPortal(t, "secret")
	client, err := NewClient(ClientOptions{BaseUrl: server.URL, Username: "alice", Password: "secret"})
	require.NoError(t, err)

	ctx := context.Background()
	page, err := client.Fetch(ctx, "/index.php/export")
	require.NoError(t, err)
	require.True(t, page.RequiresLogin())

	require.NoError(t, client.Login(ctx))
	require.Equal(t, "alice", server.posted.Get("username"))
	require.Equal(t, "1", server.posted.Get("a1b2c3"))
	require.Equal(t, "yes", server.posted.Get("remember"))
	require.Contains(t, server.posted, "return")

	page, err = client.Fetch(ctx, "/index.php/export")
	require.NoError(t, err)
	require.False(t, page.RequiresLogin())

	links, err := page.Links(ctx, "ul.mod-articlescategory.category-module.mod-list > li > ul > li > a")
	require.NoError(t, err)
	require.Equal(t, []Link{{
		Title: "Export of Palm Oil by Destinations 2024",
		URL:   server.URL + "/index.php/export/dest-2024",
	}}, links)

	frame, err := page.FrameURL()
	require.NoError(t, err)
	require.Equal(t, server.URL+"/index.php/frames/export/dest2024.html", frame)
}

func TestLoginRejected(t *testing.T) {
	server := newPortal(t, "secret")
	client, err := NewClient(ClientOptions{BaseUrl: server.URL, Username: "alice", Password: "wrong"})
	require.NoError(t, err)

	err = client.Login(context.Background())
	require.ErrorIs(t, err, ErrAuthenticationFailure)
}

func TestLoginWithoutToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><form class="com-users-login__form"></form></body></html>`))
	}))
	defer server.Close()

	client, err := NewClient(ClientOptions{BaseUrl: server.URL})
	require.NoError(t, err)
	err = client.Login(context.Background())
	require.ErrorIs(t, err, ErrAuthenticationFailure)
}

func TestFetchErrorStatus(t *testing.T) {
	server := newPortal(t, "secret")
	client, err := NewClient(ClientOptions{BaseUrl: server.URL})
	require.NoError(t, err)

	_, err = client.Fetch(context.Background(), "/missing")
	require.ErrorContains(t, err, "404")
}

func TestFrameURLMissing(t *testing.T) {
	base, _ := url.Parse("https://example.test/a/b")
	_, err := Page{URL: base, HTML: "<html></html>"}.FrameURL()
	require.ErrorIs(t, err, ErrNoFrame)
}
