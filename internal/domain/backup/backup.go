// Package backup implements backup_create, backup_restore, and backup_list
// over an S3-compatible object store via aws-sdk-go-v2/service/s3.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/infrabay/opscore/internal/domain"
	"github.com/infrabay/opscore/internal/domain/deployer"
	"github.com/infrabay/opscore/internal/safety"
	"github.com/infrabay/opscore/internal/toolregistry"
	"github.com/infrabay/opscore/internal/tools"
)

const confirmBackupRestore = "CONFIRM_BACKUP_RESTORE"

// S3Client mirrors the subset of the AWS S3 client this package needs, so
// callers can pass either the real client or a mock in tests.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Deps holds the dependencies Register closes over.
type Deps struct {
	Client S3Client
	Bucket string
	// Restore performs the actual restore given the application ID and
	// the backup's downloaded bytes; the storage/application-specific
	// restore mechanics live outside this package.
	Restore func(ctx context.Context, applicationID string, data []byte) error
	// Deployer opens the deployment record backup_restore's log stream
	// attaches to, and marks it failed if the restore errors out after the
	// record was created.
	Deployer deployer.Deployer
}

// Register adds backup_create, backup_restore, and backup_list to r.
func Register(r *toolregistry.Registry, deps Deps) error {
	createSpec := domain.Spec("backup.backup_create", "backup.backup", "Create an application backup and upload it to object storage",
		`{"type":"object","required":["applicationId","data"],"properties":{"applicationId":{"type":"string"},"data":{"type":"string","contentEncoding":"base64"}}}`,
		domain.RequiresApproval(tools.RiskMedium))
	if err := r.Register(createSpec, deps.create); err != nil {
		return err
	}

	restoreSpec := domain.Spec("backup.backup_restore", "backup.backup", "Download a backup from object storage and restore it to an application",
		fmt.Sprintf(`{"type":"object","required":["applicationId","objectKey","confirm"],"properties":{"applicationId":{"type":"string"},"objectKey":{"type":"string"},"confirm":{"type":"string","const":%q}}}`, confirmBackupRestore),
		domain.RequiresConfirm(tools.RiskHigh, confirmBackupRestore))
	if err := r.Register(restoreSpec, deps.restore); err != nil {
		return err
	}

	listSpec := domain.Spec("backup.backup_list", "backup.backup", "List backups stored for an application",
		`{"type":"object","required":["applicationId"],"properties":{"applicationId":{"type":"string"}}}`, domain.ReadOnly)
	return r.Register(listSpec, deps.list)
}

type createPayload struct {
	ApplicationID string `json:"applicationId"`
	Data          []byte `json:"data"`
}

func (d Deps) create(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	var p createPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, err
	}
	key := objectKey(string(tc.OrgID), p.ApplicationID)

	if _, err := d.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(d.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(p.Data),
	}); err != nil {
		return nil, nil, fmt.Errorf("upload backup: %w", err)
	}

	b, err := json.Marshal(struct {
		ObjectKey string `json:"objectKey"`
	}{ObjectKey: key})
	return b, nil, err
}

type restorePayload struct {
	ApplicationID string `json:"applicationId"`
	ObjectKey     string `json:"objectKey"`
	Confirm       string `json:"confirm"`
}

func (d Deps) restore(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	var p restorePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, err
	}
	if err := safety.RequireConfirmLiteral(confirmBackupRestore, p.Confirm); err != nil {
		return nil, nil, err
	}

	// Open the deployment record before touching the object store so a
	// client can attach to its log stream immediately; any failure from
	// here on marks it error rather than just returning a Go error.
	dep, err := d.Deployer.StartRestore(ctx, p.ApplicationID)
	if err != nil {
		return nil, nil, fmt.Errorf("start restore deployment: %w", err)
	}

	out, err := d.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.Bucket),
		Key:    aws.String(p.ObjectKey),
	})
	if err != nil {
		d.markFailed(ctx, dep.ID, err)
		return nil, nil, fmt.Errorf("download backup: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		d.markFailed(ctx, dep.ID, err)
		return nil, nil, fmt.Errorf("read backup body: %w", err)
	}
	if err := d.Restore(ctx, p.ApplicationID, data); err != nil {
		d.markFailed(ctx, dep.ID, err)
		return nil, nil, fmt.Errorf("restore backup: %w", err)
	}

	b, err := json.Marshal(struct {
		Restored     bool   `json:"restored"`
		DeploymentID string `json:"deploymentId"`
	}{Restored: true, DeploymentID: dep.ID})
	return b, nil, err
}

// markFailed transitions the restore's deployment record to error. It
// swallows its own error: the restore failure is already being reported to
// the caller, and a failed status update shouldn't mask it.
func (d Deps) markFailed(ctx context.Context, deploymentID string, cause error) {
	_ = d.Deployer.MarkError(ctx, deploymentID, cause)
}

type listPayload struct {
	ApplicationID string `json:"applicationId"`
}

func (d Deps) list(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	var p listPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, err
	}
	prefix := prefixFor(string(tc.OrgID), p.ApplicationID)

	out, err := d.Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(d.Bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("list backups: %w", err)
	}

	keys := make([]string, 0, len(out.Contents))
	for _, obj := range out.Contents {
		if obj.Key != nil {
			keys = append(keys, *obj.Key)
		}
	}
	b, err := json.Marshal(struct {
		ObjectKeys []string `json:"objectKeys"`
	}{ObjectKeys: keys})
	return b, nil, err
}

func prefixFor(orgID, applicationID string) string {
	return fmt.Sprintf("backups/%s/%s/", orgID, applicationID)
}

func objectKey(orgID, applicationID string) string {
	return fmt.Sprintf("%s%d.tar", prefixFor(orgID, applicationID), timeNowUnix())
}

// timeNowUnix is a seam so tests can stub out wall-clock time without this
// package importing a clock abstraction of its own.
var timeNowUnix = func() int64 { return time.Now().Unix() }
