// Package deployer declares the capability interface that application_deploy,
// mount_create (on apply=true), and backup_restore all trigger against: an
// external deployment orchestrator that the core does not await completion
// of (§5's "does not await completion unless the tool's contract says so").
// Each call returns a Deployment record immediately; log streaming and final
// status happen out of band against Deployment.ID.
package deployer

import "context"

// Status is the lifecycle of a triggered deployment as observed by the
// core. The deployer itself may track richer states; these are the ones a
// tool result or a deployment record needs to report.
type Status string

const (
	StatusDeploying Status = "deploying"
	StatusRunning   Status = "running"
	StatusError     Status = "error"
)

// Deployment is the record a tool hands back to the caller so a client can
// subscribe to its log stream and final status out of band.
type Deployment struct {
	ID            string `json:"id"`
	ApplicationID string `json:"applicationId"`
	Status        Status `json:"status"`
}

// Deployer triggers deployment-shaped side effects against the external
// deployer without awaiting completion.
type Deployer interface {
	// Deploy starts a fresh deployment of applicationID and returns
	// immediately with the new Deployment in StatusDeploying.
	Deploy(ctx context.Context, applicationID string) (Deployment, error)
	// Redeploy restarts the owning service's current deployment — used by
	// mount_create when apply=true after a mount change.
	Redeploy(ctx context.Context, serviceType, serviceID string) (Deployment, error)
	// StartRestore opens a deployment record for a backup_restore run so its
	// progress can be log-streamed the same way a regular deploy is; the
	// caller still performs the restore itself and reports the outcome via
	// MarkError on failure.
	StartRestore(ctx context.Context, applicationID string) (Deployment, error)
	// MarkError transitions an existing deployment to StatusError, e.g. when
	// a backup_restore's download or restore step fails after the
	// deployment record was already created.
	MarkError(ctx context.Context, deploymentID string, cause error) error
}
