// Package schedule implements schedule_create and schedule_run_now,
// dispatching through the Scheduler interface so a self-hosted deployment
// (a local cron-style goroutine scheduler) and a cloud deployment (a
// hosted jobs service) select different implementations at config time
// without this package knowing which one is wired.
package schedule

import (
	"context"
	"encoding/json"

	"github.com/infrabay/opscore/internal/domain"
	"github.com/infrabay/opscore/internal/toolregistry"
)

// Job describes a single scheduled invocation of a tool.
type Job struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	CronExpr string         `json:"cronExpr"`
	Tool     string         `json:"tool"`
	Payload  map[string]any `json:"payload"`
}

// Scheduler abstracts job registration behind local-cron and hosted-jobs
// implementations.
type Scheduler interface {
	Create(ctx context.Context, orgID string, job Job) (Job, error)
	Update(ctx context.Context, orgID string, job Job) (Job, error)
	Remove(ctx context.Context, orgID, jobID string) error
	Run(ctx context.Context, orgID, jobID string) error
}

// Deps holds the dependencies Register closes over.
type Deps struct {
	Scheduler Scheduler
}

// Register adds schedule_create and schedule_run_now to r.
func Register(r *toolregistry.Registry, deps Deps) error {
	createSpec := domain.Spec("schedule.schedule_create", "schedule.schedule", "Create a scheduled invocation of a tool on a cron expression",
		`{"type":"object","required":["name","cronExpr","tool"],"properties":{"name":{"type":"string"},"cronExpr":{"type":"string"},"tool":{"type":"string"},"payload":{"type":"object"}}}`,
		domain.RequiresApproval("medium"))
	if err := r.Register(createSpec, deps.create); err != nil {
		return err
	}

	runSpec := domain.Spec("schedule.schedule_run_now", "schedule.schedule", "Immediately trigger a scheduled job out of cycle",
		`{"type":"object","required":["jobId"],"properties":{"jobId":{"type":"string"}}}`,
		domain.RequiresApproval("medium"))
	return r.Register(runSpec, deps.runNow)
}

func (d Deps) create(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, nil, err
	}
	created, err := d.Scheduler.Create(ctx, string(tc.OrgID), job)
	if err != nil {
		return nil, nil, err
	}
	b, err := json.Marshal(created)
	return b, nil, err
}

type runNowPayload struct {
	JobID string `json:"jobId"`
}

func (d Deps) runNow(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	var p runNowPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, err
	}
	if err := d.Scheduler.Run(ctx, string(tc.OrgID), p.JobID); err != nil {
		return nil, nil, err
	}
	b, err := json.Marshal(struct {
		Triggered bool `json:"triggered"`
	}{Triggered: true})
	return b, nil, err
}
