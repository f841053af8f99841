package schedule

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infrabay/opscore/internal/ids"
	"github.com/infrabay/opscore/internal/toolregistry"
)

type fakeScheduler struct {
	jobs map[string]Job
	ran  []string
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{jobs: map[string]Job{}}
}

func (f *fakeScheduler) Create(ctx context.Context, orgID string, job Job) (Job, error) {
	job.ID = "job-1"
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeScheduler) Update(ctx context.Context, orgID string, job Job) (Job, error) {
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeScheduler) Remove(ctx context.Context, orgID, jobID string) error {
	delete(f.jobs, jobID)
	return nil
}

func (f *fakeScheduler) Run(ctx context.Context, orgID, jobID string) error {
	f.ran = append(f.ran, jobID)
	return nil
}

func newRegistry(t *testing.T, scheduler Scheduler) *toolregistry.Registry {
	t.Helper()
	r := toolregistry.NewRegistry()
	require.NoError(t, Register(r, Deps{Scheduler: scheduler}))
	return r
}

func TestScheduleCreateRegistersJob(t *testing.T) {
	scheduler := newFakeScheduler()
	r := newRegistry(t, scheduler)

	msg := r.Execute(context.Background(), toolregistry.ToolContext{OrgID: ids.OrgID("org-1")}, "schedule.schedule_create",
		[]byte(`{"name":"nightly-backup","cronExpr":"0 2 * * *","tool":"backup.backup_create"}`), "tu-1")
	require.Nil(t, msg.Error)
	assert.Contains(t, scheduler.jobs, "job-1")
}

func TestScheduleRunNowTriggersJob(t *testing.T) {
	scheduler := newFakeScheduler()
	r := newRegistry(t, scheduler)

	msg := r.Execute(context.Background(), toolregistry.ToolContext{OrgID: ids.OrgID("org-1")}, "schedule.schedule_run_now",
		[]byte(`{"jobId":"job-1"}`), "tu-1")
	require.Nil(t, msg.Error)
	assert.Equal(t, []string{"job-1"}, scheduler.ran)
}
