package githubprovider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infrabay/opscore/internal/ids"
	"github.com/infrabay/opscore/internal/toolregistry"
)

type fakeStore struct {
	token *oauth2.Token
}

func (f *fakeStore) SaveToken(ctx context.Context, orgID string, token *oauth2.Token) (Connection, error) {
	f.token = token
	return Connection{ID: "conn-1"}, nil
}

func (f *fakeStore) LoadToken(ctx context.Context, orgID string) (*oauth2.Token, error) {
	return f.token, nil
}

func TestRepoListNeverLeaksAccessTokenInResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "Bearer gho_supersecret", req.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"full_name":"acme/widgets","private":true}]`))
	}))
	defer server.Close()

	store := &fakeStore{token: &oauth2.Token{AccessToken: "gho_supersecret", TokenType: "Bearer"}}
	deps := Deps{
		OAuthConfig: &oauth2.Config{},
		Store:       store,
		HTTPClient:  server.Client(),
		ReposURL:    server.URL,
	}

	r := toolregistry.NewRegistry()
	require.NoError(t, Register(r, deps))

	msg := r.Execute(context.Background(), toolregistry.ToolContext{OrgID: ids.OrgID("org-1")}, "githubprovider.github_repo_list", []byte(`{}`), "tu-1")
	require.Nil(t, msg.Error)
	assert.NotContains(t, string(msg.Result), "gho_supersecret")
	assert.Contains(t, string(msg.Result), "acme/widgets")
}
