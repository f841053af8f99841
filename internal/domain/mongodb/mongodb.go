// Package mongodb implements mongo_command_run: runs a single
// database.RunCommand against a target Mongo database, restricted to a
// read-only allowlist of command names (the Mongo analogue of the SQL
// classifier's read-only check, since RunCommand has no uniform verb to
// parse the way a SQL statement does).
package mongodb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"github.com/infrabay/opscore/internal/domain"
	"github.com/infrabay/opscore/internal/safety"
	"github.com/infrabay/opscore/internal/toolregistry"
)

// allowedCommands is the fixed allowlist of read-only Mongo commands this
// tool may run. Anything else (createUser, drop, shutdown, ...) is
// rejected before the command ever reaches the driver.
var allowedCommands = map[string]struct{}{
	"find":            {},
	"count":           {},
	"distinct":        {},
	"aggregate":       {},
	"listCollections": {},
	"dbStats":         {},
	"collStats":       {},
	"ping":            {},
}

// Deps holds the dependencies Register closes over. OrgID is the
// organization this client belongs to; every call is checked against it with
// safety.RequireResourceOrg since a single *mongodriver.Client here targets
// one deployment database rather than a multi-tenant pool.
type Deps struct {
	Client         *mongodriver.Client
	DefaultTimeout time.Duration
	OrgID          string
}

// Register adds mongo_command_run to r.
func Register(r *toolregistry.Registry, deps Deps) error {
	if deps.DefaultTimeout <= 0 {
		deps.DefaultTimeout = 15 * time.Second
	}
	spec := domain.Spec("mongodb.mongo_command_run", "mongodb.mongodb", "Run a read-only Mongo database command",
		`{"type":"object","required":["database","command"],"properties":{"database":{"type":"string"},"command":{"type":"object"}}}`,
		domain.ReadOnly)
	return r.Register(spec, deps.run)
}

type runPayload struct {
	Database string         `json:"database"`
	Command  map[string]any `json:"command"`
}

func (d Deps) run(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	if err := safety.RequireResourceOrg(string(tc.OrgID), d.OrgID); err != nil {
		return nil, nil, err
	}
	var p runPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, err
	}
	name, err := commandName(p.Command)
	if err != nil {
		return nil, nil, err
	}
	if _, ok := allowedCommands[name]; !ok {
		return nil, nil, fmt.Errorf("mongo_command_run: command %q is not on the read-only allowlist", name)
	}

	ctx, cancel := context.WithTimeout(ctx, d.DefaultTimeout)
	defer cancel()

	var out bson.M
	if err := d.Client.Database(p.Database).RunCommand(ctx, p.Command).Decode(&out); err != nil {
		return nil, nil, fmt.Errorf("run command %q: %w", name, err)
	}
	b, err := json.Marshal(out)
	return b, nil, err
}

// commandName returns the first key of a Mongo command document. The
// driver (and the server) treat the first field of the command document as
// its name regardless of map iteration order elsewhere, so payloads must
// carry exactly the fields the command needs plus its name first;
// json.Unmarshal into a Go map loses field order, so callers intending a
// specific command should keep the document to a single top-level key
// beyond its arguments where possible.
func commandName(cmd map[string]any) (string, error) {
	for k := range cmd {
		return k, nil
	}
	return "", fmt.Errorf("mongo_command_run: command document is empty")
}
