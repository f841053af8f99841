// Package volumebackup implements volume_backup_create and
// volume_backup_restore. Unlike a one-shot application backup, a volume
// backup is cron-scheduled: create registers a recurring job through the
// schedule.Scheduler interface instead of uploading immediately. The job
// names the tool volumebackup.volume_backup_upload, which this package does
// not register; no code in this module performs the upload.
package volumebackup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/infrabay/opscore/internal/domain"
	"github.com/infrabay/opscore/internal/domain/schedule"
	"github.com/infrabay/opscore/internal/safety"
	"github.com/infrabay/opscore/internal/toolregistry"
	"github.com/infrabay/opscore/internal/tools"
)

const confirmVolumeRestore = "CONFIRM_VOLUME_BACKUP_RESTORE"

// S3Client mirrors the subset of the AWS S3 client this package needs.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Deps holds the dependencies Register closes over.
type Deps struct {
	Scheduler schedule.Scheduler
	S3Client  S3Client
	Bucket    string
	// RestoreVolume writes data onto the target volume; the volume-mount
	// mechanics are the caller's concern.
	RestoreVolume func(ctx context.Context, volumeID string, data []byte) error
}

// Register adds volume_backup_create and volume_backup_restore to r.
func Register(r *toolregistry.Registry, deps Deps) error {
	createSpec := domain.Spec("volumebackup.volume_backup_create", "volumebackup.volumebackup", "Register a recurring backup schedule for a volume",
		`{"type":"object","required":["volumeId","cronExpr"],"properties":{"volumeId":{"type":"string"},"cronExpr":{"type":"string"}}}`,
		domain.RequiresApproval(tools.RiskMedium))
	if err := r.Register(createSpec, deps.create); err != nil {
		return err
	}

	restoreSpec := domain.Spec("volumebackup.volume_backup_restore", "volumebackup.volumebackup", "Restore a volume from a previously uploaded backup object",
		fmt.Sprintf(`{"type":"object","required":["volumeId","objectKey","confirm"],"properties":{"volumeId":{"type":"string"},"objectKey":{"type":"string"},"confirm":{"type":"string","const":%q}}}`, confirmVolumeRestore),
		domain.RequiresConfirm(tools.RiskHigh, confirmVolumeRestore))
	return r.Register(restoreSpec, deps.restore)
}

type createPayload struct {
	VolumeID string `json:"volumeId"`
	CronExpr string `json:"cronExpr"`
}

func (d Deps) create(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	var p createPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, err
	}
	job, err := d.Scheduler.Create(ctx, string(tc.OrgID), schedule.Job{
		Name:     "volume-backup:" + p.VolumeID,
		CronExpr: p.CronExpr,
		Tool:     "volumebackup.volume_backup_upload",
		Payload:  map[string]any{"volumeId": p.VolumeID, "bucket": d.Bucket},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("schedule volume backup: %w", err)
	}
	b, err := json.Marshal(job)
	return b, nil, err
}

type restorePayload struct {
	VolumeID  string `json:"volumeId"`
	ObjectKey string `json:"objectKey"`
	Confirm   string `json:"confirm"`
}

func (d Deps) restore(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	var p restorePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, err
	}
	if err := safety.RequireConfirmLiteral(confirmVolumeRestore, p.Confirm); err != nil {
		return nil, nil, err
	}

	out, err := d.S3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.Bucket),
		Key:    aws.String(p.ObjectKey),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("download volume backup: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read volume backup body: %w", err)
	}
	if err := d.RestoreVolume(ctx, p.VolumeID, data); err != nil {
		return nil, nil, fmt.Errorf("restore volume %s: %w", p.VolumeID, err)
	}

	b, err := json.Marshal(struct {
		Restored bool `json:"restored"`
	}{Restored: true})
	return b, nil, err
}
