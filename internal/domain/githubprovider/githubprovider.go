// Package githubprovider implements github_provider_connect and
// github_repo_list over a golang.org/x/oauth2 config. Connect exchanges an
// authorization code for a token and stores it masked; repo_list uses the
// stored token to call the GitHub REST API.
package githubprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/infrabay/opscore/internal/domain"
	"github.com/infrabay/opscore/internal/safety"
	"github.com/infrabay/opscore/internal/toolregistry"
)

const reposURL = "https://api.github.com/user/repos"

// Connection is the persisted OAuth connection; the access token is never
// returned in full.
type Connection struct {
	ID          string
	AccessToken safety.Secret[string]
}

// ConnectionView is the tool-facing projection of a Connection.
type ConnectionView struct {
	ID          string        `json:"id"`
	AccessToken safety.Masked `json:"accessToken"`
}

// Store persists OAuth connections for an organization.
type Store interface {
	SaveToken(ctx context.Context, orgID string, token *oauth2.Token) (Connection, error)
	LoadToken(ctx context.Context, orgID string) (*oauth2.Token, error)
}

// Repo is a single GitHub repository summary returned by github_repo_list.
type Repo struct {
	FullName string `json:"full_name"`
	Private  bool   `json:"private"`
}

// Deps holds the dependencies Register closes over.
type Deps struct {
	OAuthConfig *oauth2.Config
	Store       Store
	HTTPClient  *http.Client
	// ReposURL overrides the GitHub repos endpoint; empty defaults to the
	// real API and only needs setting in tests against a local server.
	ReposURL string
}

// Register adds github_provider_connect and github_repo_list to r.
func Register(r *toolregistry.Registry, deps Deps) error {
	if deps.HTTPClient == nil {
		deps.HTTPClient = http.DefaultClient
	}
	if deps.ReposURL == "" {
		deps.ReposURL = reposURL
	}

	connectSpec := domain.Spec("githubprovider.github_provider_connect", "githubprovider.githubprovider", "Exchange a GitHub OAuth authorization code for an access token",
		`{"type":"object","required":["code"],"properties":{"code":{"type":"string"}}}`,
		domain.RequiresApproval("medium"))
	if err := r.Register(connectSpec, deps.connect); err != nil {
		return err
	}

	listSpec := domain.Spec("githubprovider.github_repo_list", "githubprovider.githubprovider", "List repositories visible to the connected GitHub account",
		`{"type":"object","properties":{}}`, domain.ReadOnly)
	return r.Register(listSpec, deps.repoList)
}

type connectPayload struct {
	Code string `json:"code"`
}

func (d Deps) connect(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	var p connectPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, err
	}
	token, err := d.OAuthConfig.Exchange(ctx, p.Code)
	if err != nil {
		return nil, nil, fmt.Errorf("exchange code: %w", err)
	}
	conn, err := d.Store.SaveToken(ctx, string(tc.OrgID), token)
	if err != nil {
		return nil, nil, err
	}
	b, err := json.Marshal(ConnectionView{ID: conn.ID, AccessToken: safety.Mask(conn.AccessToken)})
	return b, nil, err
}

func (d Deps) repoList(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	token, err := d.Store.LoadToken(ctx, string(tc.OrgID))
	if err != nil {
		return nil, nil, err
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, d.HTTPClient)
	client := d.OAuthConfig.Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.ReposURL, nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("list repos: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("github repo list: unexpected status %d", resp.StatusCode)
	}

	var repos []Repo
	if err := json.NewDecoder(resp.Body).Decode(&repos); err != nil {
		return nil, nil, fmt.Errorf("decode repos: %w", err)
	}
	b, err := json.Marshal(struct {
		Repos []Repo `json:"repos"`
	}{Repos: repos})
	return b, nil, err
}
