package backup

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infrabay/opscore/internal/domain/deployer"
	"github.com/infrabay/opscore/internal/ids"
	"github.com/infrabay/opscore/internal/toolregistry"
)

type fakeDeployer struct {
	started []string
	errored []string
}

func (f *fakeDeployer) Deploy(context.Context, string) (deployer.Deployment, error) {
	return deployer.Deployment{}, nil
}
func (f *fakeDeployer) Redeploy(context.Context, string, string) (deployer.Deployment, error) {
	return deployer.Deployment{}, nil
}
func (f *fakeDeployer) StartRestore(_ context.Context, applicationID string) (deployer.Deployment, error) {
	id := "dep-" + applicationID
	f.started = append(f.started, id)
	return deployer.Deployment{ID: id, ApplicationID: applicationID, Status: deployer.StatusDeploying}, nil
}
func (f *fakeDeployer) MarkError(_ context.Context, deploymentID string, _ error) error {
	f.errored = append(f.errored, deploymentID)
	return nil
}

type fakeS3 struct {
	objects map[string][]byte
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(params.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, assert.AnError
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{}
	for k := range f.objects {
		key := k
		out.Contents = append(out.Contents, types.Object{Key: &key})
	}
	return out, nil
}

func newRegistry(t *testing.T, client S3Client, restore func(ctx context.Context, applicationID string, data []byte) error) *toolregistry.Registry {
	return newRegistryWithDeployer(t, client, restore, &fakeDeployer{})
}

func newRegistryWithDeployer(t *testing.T, client S3Client, restore func(ctx context.Context, applicationID string, data []byte) error, dep deployer.Deployer) *toolregistry.Registry {
	t.Helper()
	r := toolregistry.NewRegistry()
	require.NoError(t, Register(r, Deps{Client: client, Bucket: "backups", Restore: restore, Deployer: dep}))
	return r
}

func TestBackupCreateUploadsToBucket(t *testing.T) {
	client := newFakeS3()
	r := newRegistry(t, client, nil)

	msg := r.Execute(context.Background(), toolregistry.ToolContext{OrgID: ids.OrgID("org-1")}, "backup.backup_create",
		[]byte(`{"applicationId":"app-1","data":"aGVsbG8="}`), "tu-1")
	require.Nil(t, msg.Error)
	assert.Len(t, client.objects, 1)
}

func TestBackupRestoreRequiresConfirmLiteral(t *testing.T) {
	client := newFakeS3()
	restored := false
	r := newRegistry(t, client, func(ctx context.Context, applicationID string, data []byte) error {
		restored = true
		return nil
	})

	msg := r.Execute(context.Background(), toolregistry.ToolContext{OrgID: ids.OrgID("org-1")}, "backup.backup_restore",
		[]byte(`{"applicationId":"app-1","objectKey":"backups/org-1/app-1/1.tar","confirm":"wrong"}`), "tu-1")
	require.NotNil(t, msg.Error)
	assert.False(t, restored)
}

func TestBackupRestoreDownloadsAndRestores(t *testing.T) {
	client := newFakeS3()
	client.objects["backups/org-1/app-1/1.tar"] = []byte("payload")
	var gotData []byte
	r := newRegistry(t, client, func(ctx context.Context, applicationID string, data []byte) error {
		gotData = data
		return nil
	})

	msg := r.Execute(context.Background(), toolregistry.ToolContext{OrgID: ids.OrgID("org-1")}, "backup.backup_restore",
		[]byte(`{"applicationId":"app-1","objectKey":"backups/org-1/app-1/1.tar","confirm":"CONFIRM_BACKUP_RESTORE"}`), "tu-1")
	require.Nil(t, msg.Error)
	assert.Equal(t, []byte("payload"), gotData)
}

func TestBackupRestoreOpensDeploymentRecord(t *testing.T) {
	client := newFakeS3()
	client.objects["backups/org-1/app-1/1.tar"] = []byte("payload")
	dep := &fakeDeployer{}
	r := newRegistryWithDeployer(t, client, func(ctx context.Context, applicationID string, data []byte) error {
		return nil
	}, dep)

	msg := r.Execute(context.Background(), toolregistry.ToolContext{OrgID: ids.OrgID("org-1")}, "backup.backup_restore",
		[]byte(`{"applicationId":"app-1","objectKey":"backups/org-1/app-1/1.tar","confirm":"CONFIRM_BACKUP_RESTORE"}`), "tu-1")
	require.Nil(t, msg.Error)
	assert.Contains(t, string(msg.Result), "deploymentId")
	assert.Equal(t, []string{"dep-app-1"}, dep.started)
	assert.Empty(t, dep.errored)
}

func TestBackupRestoreMarksDeploymentErrorOnFailure(t *testing.T) {
	client := newFakeS3()
	dep := &fakeDeployer{}
	r := newRegistryWithDeployer(t, client, nil, dep)

	msg := r.Execute(context.Background(), toolregistry.ToolContext{OrgID: ids.OrgID("org-1")}, "backup.backup_restore",
		[]byte(`{"applicationId":"app-1","objectKey":"missing.tar","confirm":"CONFIRM_BACKUP_RESTORE"}`), "tu-1")
	require.NotNil(t, msg.Error)
	assert.Equal(t, []string{"dep-app-1"}, dep.errored)
}

func TestBackupListReturnsObjectKeys(t *testing.T) {
	client := newFakeS3()
	client.objects["backups/org-1/app-1/1.tar"] = []byte("payload")
	r := newRegistry(t, client, nil)

	msg := r.Execute(context.Background(), toolregistry.ToolContext{OrgID: ids.OrgID("org-1")}, "backup.backup_list",
		[]byte(`{"applicationId":"app-1"}`), "tu-1")
	require.Nil(t, msg.Error)
	assert.Contains(t, string(msg.Result), "backups/org-1/app-1/1.tar")
}
