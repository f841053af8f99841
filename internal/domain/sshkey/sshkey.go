// Package sshkey implements ssh_key_generate and ssh_key_reveal.
// ssh_key_reveal is the dedicated reveal tool for the ed25519 private key:
// confirm-gated and always requiring approval, since the private key is
// the one field a Secret wraps that a tool is allowed to unmask on
// purpose.
package sshkey

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/ssh"

	"github.com/infrabay/opscore/internal/domain"
	"github.com/infrabay/opscore/internal/safety"
	"github.com/infrabay/opscore/internal/toolregistry"
	"github.com/infrabay/opscore/internal/tools"
)

const confirmReveal = "CONFIRM_SSH_KEY_REVEAL"

// KeyPair is the persisted record. PrivateKeyPEM is wrapped as a secret so
// only ssh_key_reveal can unmask it.
type KeyPair struct {
	ID            string
	PublicKey     string
	PrivateKeyPEM safety.Secret[string]
}

// Store persists generated key pairs.
type Store interface {
	Save(ctx context.Context, orgID string, kp KeyPair) error
	Load(ctx context.Context, orgID, keyID string) (KeyPair, bool, error)
}

// Deps holds the dependencies Register closes over.
type Deps struct {
	Store Store
}

// Register adds ssh_key_generate and ssh_key_reveal to r.
func Register(r *toolregistry.Registry, deps Deps) error {
	generateSpec := domain.Spec("sshkey.ssh_key_generate", "sshkey.sshkey", "Generate a new ed25519 SSH key pair",
		`{"type":"object","required":["keyId"],"properties":{"keyId":{"type":"string"}}}`,
		domain.RequiresApproval(tools.RiskMedium))
	if err := r.Register(generateSpec, deps.generate); err != nil {
		return err
	}

	revealSpec := domain.Spec("sshkey.ssh_key_reveal", "sshkey.sshkey", "Reveal the private key material for a generated SSH key",
		fmt.Sprintf(`{"type":"object","required":["keyId","confirm"],"properties":{"keyId":{"type":"string"},"confirm":{"type":"string","const":%q}}}`, confirmReveal),
		domain.RequiresConfirm(tools.RiskHigh, confirmReveal))
	return r.Register(revealSpec, deps.reveal)
}

type generatePayload struct {
	KeyID string `json:"keyId"`
}

func (d Deps) generate(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	var p generatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, err
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, nil, fmt.Errorf("derive ssh public key: %w", err)
	}
	pemBlock, err := ssh.MarshalPrivateKey(priv, p.KeyID)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal ssh private key: %w", err)
	}

	kp := KeyPair{
		ID:            p.KeyID,
		PublicKey:     string(ssh.MarshalAuthorizedKey(sshPub)),
		PrivateKeyPEM: safety.NewSecret(string(pem.EncodeToMemory(pemBlock))),
	}
	if err := d.Store.Save(ctx, string(tc.OrgID), kp); err != nil {
		return nil, nil, err
	}

	b, err := json.Marshal(struct {
		ID        string `json:"id"`
		PublicKey string `json:"publicKey"`
	}{ID: kp.ID, PublicKey: kp.PublicKey})
	return b, nil, err
}

type revealPayload struct {
	KeyID   string `json:"keyId"`
	Confirm string `json:"confirm"`
}

func (d Deps) reveal(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	var p revealPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, err
	}
	if err := safety.RequireConfirmLiteral(confirmReveal, p.Confirm); err != nil {
		return nil, nil, err
	}

	kp, ok, err := d.Store.Load(ctx, string(tc.OrgID), p.KeyID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("ssh key %q not found", p.KeyID)
	}

	b, err := json.Marshal(struct {
		ID            string `json:"id"`
		PrivateKeyPEM string `json:"privateKeyPem"`
	}{ID: kp.ID, PrivateKeyPEM: kp.PrivateKeyPEM.Reveal()})
	return b, nil, err
}
