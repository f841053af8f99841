package sshkey

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infrabay/opscore/internal/ids"
	"github.com/infrabay/opscore/internal/toolregistry"
)

type fakeStore struct {
	keys map[string]KeyPair
}

func newFakeStore() *fakeStore { return &fakeStore{keys: map[string]KeyPair{}} }

func (f *fakeStore) Save(ctx context.Context, orgID string, kp KeyPair) error {
	f.keys[kp.ID] = kp
	return nil
}

func (f *fakeStore) Load(ctx context.Context, orgID, keyID string) (KeyPair, bool, error) {
	kp, ok := f.keys[keyID]
	return kp, ok, nil
}

func newRegistry(t *testing.T, store Store) *toolregistry.Registry {
	t.Helper()
	r := toolregistry.NewRegistry()
	require.NoError(t, Register(r, Deps{Store: store}))
	return r
}

func TestGenerateNeverReturnsPrivateKeyMaterial(t *testing.T) {
	store := newFakeStore()
	r := newRegistry(t, store)

	msg := r.Execute(context.Background(), toolregistry.ToolContext{OrgID: ids.OrgID("org-1")}, "sshkey.ssh_key_generate",
		[]byte(`{"keyId":"key-1"}`), "tu-1")
	require.Nil(t, msg.Error)
	assert.NotContains(t, string(msg.Result), "PRIVATE KEY")
	assert.Contains(t, string(msg.Result), "ssh-ed25519")

	kp, ok := store.keys["key-1"]
	require.True(t, ok)
	assert.True(t, kp.PrivateKeyPEM.Present())
}

func TestRevealRequiresConfirmLiteral(t *testing.T) {
	store := newFakeStore()
	r := newRegistry(t, store)
	r.Execute(context.Background(), toolregistry.ToolContext{OrgID: ids.OrgID("org-1")}, "sshkey.ssh_key_generate", []byte(`{"keyId":"key-1"}`), "tu-1")

	msg := r.Execute(context.Background(), toolregistry.ToolContext{OrgID: ids.OrgID("org-1")}, "sshkey.ssh_key_reveal",
		[]byte(`{"keyId":"key-1","confirm":"wrong"}`), "tu-2")
	require.NotNil(t, msg.Error)
}

func TestRevealReturnsPrivateKeyOnceConfirmed(t *testing.T) {
	store := newFakeStore()
	r := newRegistry(t, store)
	r.Execute(context.Background(), toolregistry.ToolContext{OrgID: ids.OrgID("org-1")}, "sshkey.ssh_key_generate", []byte(`{"keyId":"key-1"}`), "tu-1")

	msg := r.Execute(context.Background(), toolregistry.ToolContext{OrgID: ids.OrgID("org-1")}, "sshkey.ssh_key_reveal",
		[]byte(`{"keyId":"key-1","confirm":"CONFIRM_SSH_KEY_REVEAL"}`), "tu-2")
	require.Nil(t, msg.Error)
	assert.Contains(t, string(msg.Result), "PRIVATE KEY")
}
