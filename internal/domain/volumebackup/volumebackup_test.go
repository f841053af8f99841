package volumebackup

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infrabay/opscore/internal/domain/schedule"
	"github.com/infrabay/opscore/internal/ids"
	"github.com/infrabay/opscore/internal/toolregistry"
)

type fakeScheduler struct {
	jobs map[string]schedule.Job
}

func newFakeScheduler() *fakeScheduler { return &fakeScheduler{jobs: map[string]schedule.Job{}} }

func (f *fakeScheduler) Create(ctx context.Context, orgID string, job schedule.Job) (schedule.Job, error) {
	job.ID = "job-1"
	f.jobs[job.ID] = job
	return job, nil
}
func (f *fakeScheduler) Update(ctx context.Context, orgID string, job schedule.Job) (schedule.Job, error) {
	f.jobs[job.ID] = job
	return job, nil
}
func (f *fakeScheduler) Remove(ctx context.Context, orgID, jobID string) error {
	delete(f.jobs, jobID)
	return nil
}
func (f *fakeScheduler) Run(ctx context.Context, orgID, jobID string) error { return nil }

type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(f.objects[aws.ToString(params.Key)]))}, nil
}

func newRegistry(t *testing.T, scheduler schedule.Scheduler, client S3Client, restore func(context.Context, string, []byte) error) *toolregistry.Registry {
	t.Helper()
	r := toolregistry.NewRegistry()
	require.NoError(t, Register(r, Deps{Scheduler: scheduler, S3Client: client, Bucket: "volume-backups", RestoreVolume: restore}))
	return r
}

func TestVolumeBackupCreateSchedulesRecurringJob(t *testing.T) {
	scheduler := newFakeScheduler()
	r := newRegistry(t, scheduler, &fakeS3{objects: map[string][]byte{}}, nil)

	msg := r.Execute(context.Background(), toolregistry.ToolContext{OrgID: ids.OrgID("org-1")}, "volumebackup.volume_backup_create",
		[]byte(`{"volumeId":"vol-1","cronExpr":"0 3 * * *"}`), "tu-1")
	require.Nil(t, msg.Error)
	require.Contains(t, scheduler.jobs, "job-1")
	assert.Equal(t, "0 3 * * *", scheduler.jobs["job-1"].CronExpr)
}

func TestVolumeBackupRestoreRequiresConfirmLiteral(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{"vol-1.tar": []byte("data")}}
	restored := false
	r := newRegistry(t, newFakeScheduler(), client, func(ctx context.Context, volumeID string, data []byte) error {
		restored = true
		return nil
	})

	msg := r.Execute(context.Background(), toolregistry.ToolContext{OrgID: ids.OrgID("org-1")}, "volumebackup.volume_backup_restore",
		[]byte(`{"volumeId":"vol-1","objectKey":"vol-1.tar","confirm":"wrong"}`), "tu-1")
	require.NotNil(t, msg.Error)
	assert.False(t, restored)
}

func TestVolumeBackupRestoreRestoresData(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{"vol-1.tar": []byte("data")}}
	var gotData []byte
	r := newRegistry(t, newFakeScheduler(), client, func(ctx context.Context, volumeID string, data []byte) error {
		gotData = data
		return nil
	})

	msg := r.Execute(context.Background(), toolregistry.ToolContext{OrgID: ids.OrgID("org-1")}, "volumebackup.volume_backup_restore",
		[]byte(`{"volumeId":"vol-1","objectKey":"vol-1.tar","confirm":"CONFIRM_VOLUME_BACKUP_RESTORE"}`), "tu-1")
	require.Nil(t, msg.Error)
	assert.Equal(t, []byte("data"), gotData)
}
