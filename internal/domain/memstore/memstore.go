// Package memstore provides single-node, in-memory implementations of the
// small per-domain Store/Scheduler interfaces (project, registry,
// notification, port, user, sshkey, schedule) that internal/domain packages
// declare locally rather than sharing with the Mongo-backed conversation/
// execution/run stores (C13). A deployment that needs durability across
// restarts swaps these for its own Mongo- or SQL-backed adapters; the
// interfaces are small enough that doing so needs no change to the domain
// packages themselves.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/infrabay/opscore/internal/domain/deployer"
	"github.com/infrabay/opscore/internal/domain/githubprovider"
	"github.com/infrabay/opscore/internal/domain/mount"
	"github.com/infrabay/opscore/internal/domain/notification"
	"github.com/infrabay/opscore/internal/domain/port"
	"github.com/infrabay/opscore/internal/domain/project"
	"github.com/infrabay/opscore/internal/domain/registry"
	"github.com/infrabay/opscore/internal/domain/schedule"
	"github.com/infrabay/opscore/internal/domain/sshkey"
	"github.com/infrabay/opscore/internal/domain/user"
	"github.com/infrabay/opscore/internal/safety"
)

// Projects implements project.Store. Seed with SeedProject for deployments
// that want a fixed catalog instead of growing one at runtime (project.Store
// has no Create method — the tool surface is read-only).
type Projects struct {
	mu    sync.RWMutex
	byOrg map[string][]project.Project
}

func NewProjects() *Projects {
	return &Projects{byOrg: make(map[string][]project.Project)}
}

func (p *Projects) Seed(orgID string, projects ...project.Project) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byOrg[orgID] = append(p.byOrg[orgID], projects...)
}

func (p *Projects) List(_ context.Context, orgID string) ([]project.Project, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]project.Project, len(p.byOrg[orgID]))
	copy(out, p.byOrg[orgID])
	return out, nil
}

func (p *Projects) Get(_ context.Context, orgID, projectID string) (project.Project, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, pr := range p.byOrg[orgID] {
		if pr.ID == projectID {
			return pr, true, nil
		}
	}
	return project.Project{}, false, nil
}

// Registries implements registry.Store.
type Registries struct {
	mu    sync.RWMutex
	byOrg map[string][]registry.Credential
}

func NewRegistries() *Registries {
	return &Registries{byOrg: make(map[string][]registry.Credential)}
}

func (r *Registries) Create(_ context.Context, orgID, url, username, password string) (registry.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cred := registry.Credential{
		ID:       uuid.NewString(),
		URL:      url,
		Username: username,
		Password: safety.NewSecret(password),
	}
	r.byOrg[orgID] = append(r.byOrg[orgID], cred)
	return cred, nil
}

func (r *Registries) List(_ context.Context, orgID string) ([]registry.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]registry.Credential, len(r.byOrg[orgID]))
	copy(out, r.byOrg[orgID])
	return out, nil
}

// Notifications implements notification.Store.
type Notifications struct {
	mu    sync.RWMutex
	byOrg map[string][]notification.Notification
}

func NewNotifications() *Notifications {
	return &Notifications{byOrg: make(map[string][]notification.Notification)}
}

func (n *Notifications) Create(_ context.Context, orgID string, channel notification.Channel, target string) (notification.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	rec := notification.Notification{
		ID:      uuid.NewString(),
		Channel: channel,
		Target:  safety.NewSecret(target),
	}
	n.byOrg[orgID] = append(n.byOrg[orgID], rec)
	return rec, nil
}

func (n *Notifications) List(_ context.Context, orgID string) ([]notification.Notification, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]notification.Notification, len(n.byOrg[orgID]))
	copy(out, n.byOrg[orgID])
	return out, nil
}

// Ports implements port.Store.
type Ports struct {
	mu    sync.Mutex
	byOrg map[string][]port.Binding
}

func NewPorts() *Ports {
	return &Ports{byOrg: make(map[string][]port.Binding)}
}

func (p *Ports) Expose(_ context.Context, orgID string, b port.Binding) (port.Binding, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byOrg[orgID] = append(p.byOrg[orgID], b)
	return b, nil
}

func (p *Ports) Close(_ context.Context, orgID, applicationID string, hostPort int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	bindings := p.byOrg[orgID]
	for i, b := range bindings {
		if b.ApplicationID == applicationID && b.HostPort == hostPort {
			p.byOrg[orgID] = append(bindings[:i], bindings[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("memstore: no port binding for application %q host port %d", applicationID, hostPort)
}

// Users implements user.Store.
type Users struct {
	mu    sync.Mutex
	byOrg map[string][]user.Membership
}

func NewUsers() *Users {
	return &Users{byOrg: make(map[string][]user.Membership)}
}

func (u *Users) Invite(_ context.Context, orgID, email, role string) (user.Membership, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	m := user.Membership{UserID: uuid.NewString(), Email: email, Role: role}
	u.byOrg[orgID] = append(u.byOrg[orgID], m)
	return m, nil
}

func (u *Users) Remove(_ context.Context, orgID, userID string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	members := u.byOrg[orgID]
	for i, m := range members {
		if m.UserID == userID {
			u.byOrg[orgID] = append(members[:i], members[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("memstore: no membership for user %q", userID)
}

// SSHKeys implements sshkey.Store.
type SSHKeys struct {
	mu   sync.RWMutex
	keys map[string]map[string]sshkey.KeyPair
}

func NewSSHKeys() *SSHKeys {
	return &SSHKeys{keys: make(map[string]map[string]sshkey.KeyPair)}
}

func (s *SSHKeys) Save(_ context.Context, orgID string, kp sshkey.KeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys[orgID] == nil {
		s.keys[orgID] = make(map[string]sshkey.KeyPair)
	}
	s.keys[orgID][kp.ID] = kp
	return nil
}

func (s *SSHKeys) Load(_ context.Context, orgID, keyID string) (sshkey.KeyPair, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kp, ok := s.keys[orgID][keyID]
	return kp, ok, nil
}

// Schedules implements schedule.Scheduler by keeping jobs in memory. Run
// only checks that the job exists: it does not invoke the job's tool, and no
// job ever fires on its cron expression.
type Schedules struct {
	mu   sync.Mutex
	jobs map[string]map[string]schedule.Job
}

func NewSchedules() *Schedules {
	return &Schedules{jobs: make(map[string]map[string]schedule.Job)}
}

func (s *Schedules) Create(_ context.Context, orgID string, job schedule.Job) (schedule.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if s.jobs[orgID] == nil {
		s.jobs[orgID] = make(map[string]schedule.Job)
	}
	s.jobs[orgID][job.ID] = job
	return job, nil
}

func (s *Schedules) Update(_ context.Context, orgID string, job schedule.Job) (schedule.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[orgID][job.ID]; !ok {
		return schedule.Job{}, fmt.Errorf("memstore: no job %q", job.ID)
	}
	s.jobs[orgID][job.ID] = job
	return job, nil
}

func (s *Schedules) Remove(_ context.Context, orgID, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[orgID][jobID]; !ok {
		return fmt.Errorf("memstore: no job %q", jobID)
	}
	delete(s.jobs[orgID], jobID)
	return nil
}

func (s *Schedules) Run(_ context.Context, orgID, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[orgID][jobID]; !ok {
		return fmt.Errorf("memstore: no job %q", jobID)
	}
	return nil
}

// GitHubConnections implements githubprovider.Store.
type GitHubConnections struct {
	mu     sync.RWMutex
	tokens map[string]*oauth2.Token
}

func NewGitHubConnections() *GitHubConnections {
	return &GitHubConnections{tokens: make(map[string]*oauth2.Token)}
}

func (g *GitHubConnections) SaveToken(_ context.Context, orgID string, token *oauth2.Token) (githubprovider.Connection, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tokens[orgID] = token
	return githubprovider.Connection{
		ID:          orgID,
		AccessToken: safety.NewSecret(token.AccessToken),
	}, nil
}

func (g *GitHubConnections) LoadToken(_ context.Context, orgID string) (*oauth2.Token, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	token, ok := g.tokens[orgID]
	if !ok {
		return nil, fmt.Errorf("memstore: no github connection for org %q", orgID)
	}
	return token, nil
}

// MountAllowlist implements mount.AllowlistSource with a static, org-scoped
// set of allowed host-path prefixes configured at startup.
type MountAllowlist struct {
	mu       sync.Mutex
	prefixes map[string][]string
	mounts   map[string][]mount.Mount
}

func NewMountAllowlist() *MountAllowlist {
	return &MountAllowlist{prefixes: make(map[string][]string), mounts: make(map[string][]mount.Mount)}
}

func (m *MountAllowlist) Allow(orgID string, prefixes ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefixes[orgID] = append(m.prefixes[orgID], prefixes...)
}

func (m *MountAllowlist) AllowedPrefixes(_ context.Context, orgID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prefixes[orgID]))
	copy(out, m.prefixes[orgID])
	return out, nil
}

func (m *MountAllowlist) CreateMount(_ context.Context, orgID string, mnt mount.Mount) (mount.Mount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mnt.ID == "" {
		mnt.ID = uuid.NewString()
	}
	m.mounts[orgID] = append(m.mounts[orgID], mnt)
	return mnt, nil
}

// AddAllowedPrefixes appends prefixes to orgID's allowlist. This backs the
// org_bind_mount_allowlist_update tool, the remediation step a
// BindMountRejected error suggests retrying with.
func (m *MountAllowlist) AddAllowedPrefixes(_ context.Context, orgID string, prefixes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefixes[orgID] = append(m.prefixes[orgID], prefixes...)
	return nil
}

// StaticCustomerLookup implements stripe.CustomerLookup by returning a fixed
// Stripe customer id for every organization. A multi-tenant deployment
// replaces this with a lookup against its own organization record.
type StaticCustomerLookup struct {
	byOrg map[string]string
}

func NewStaticCustomerLookup(byOrg map[string]string) *StaticCustomerLookup {
	return &StaticCustomerLookup{byOrg: byOrg}
}

func (s *StaticCustomerLookup) StripeCustomerID(_ context.Context, orgID string) (string, error) {
	id, ok := s.byOrg[orgID]
	if !ok {
		return "", fmt.Errorf("memstore: no stripe customer configured for org %q", orgID)
	}
	return id, nil
}

// Deployments implements deployer.Deployer by recording a deployment row
// per trigger and flipping it to error on MarkError — no external
// orchestrator, no log shipping, just enough bookkeeping for the tools that
// trigger a deployment to hand callers a stable id to subscribe against.
// A real deployment swaps this for an adapter over its own job runner.
type Deployments struct {
	mu   sync.Mutex
	byID map[string]deployer.Deployment
}

func NewDeployments() *Deployments {
	return &Deployments{byID: make(map[string]deployer.Deployment)}
}

func (d *Deployments) Deploy(_ context.Context, applicationID string) (deployer.Deployment, error) {
	return d.trigger(applicationID)
}

func (d *Deployments) Redeploy(_ context.Context, _, serviceID string) (deployer.Deployment, error) {
	return d.trigger(serviceID)
}

func (d *Deployments) StartRestore(_ context.Context, applicationID string) (deployer.Deployment, error) {
	return d.trigger(applicationID)
}

func (d *Deployments) trigger(applicationID string) (deployer.Deployment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dep := deployer.Deployment{ID: uuid.NewString(), ApplicationID: applicationID, Status: deployer.StatusDeploying}
	d.byID[dep.ID] = dep
	return dep, nil
}

func (d *Deployments) MarkError(_ context.Context, deploymentID string, _ error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	dep, ok := d.byID[deploymentID]
	if !ok {
		return fmt.Errorf("memstore: no deployment %q", deploymentID)
	}
	dep.Status = deployer.StatusError
	d.byID[deploymentID] = dep
	return nil
}
