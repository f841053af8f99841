// Command server wires every component of the tool-execution core into a
// single process: the tool registry (C1/C2) with every domain toolset
// registered, the chat streaming pipeline (C7), the agent execution loop
// (C8), and the HTTP surface (internal/httpapi) mounting both. Startup and
// graceful shutdown follow the teacher's example/cmd/assistant pattern: an
// error channel shared between the signal handler and the server goroutine,
// and a context.WithTimeout bound on Shutdown.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	dockerclient "github.com/docker/docker/client"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"
	"goa.design/clue/log"
	"golang.org/x/oauth2"

	"github.com/infrabay/opscore/internal/agentloop"
	"github.com/infrabay/opscore/internal/agentloop/engine/inmem"
	memoryinmem "github.com/infrabay/opscore/internal/agentloop/memory/inmem"
	runinmem "github.com/infrabay/opscore/internal/agentloop/run/inmem"
	"github.com/infrabay/opscore/internal/agentloop/stream"
	"github.com/infrabay/opscore/internal/approvalbus"
	"github.com/infrabay/opscore/internal/chatstream"
	"github.com/infrabay/opscore/internal/config"
	convstoreinmem "github.com/infrabay/opscore/internal/convstore/inmem"
	"github.com/infrabay/opscore/internal/domain/application"
	"github.com/infrabay/opscore/internal/domain/backup"
	"github.com/infrabay/opscore/internal/domain/compose"
	"github.com/infrabay/opscore/internal/domain/githubprovider"
	"github.com/infrabay/opscore/internal/domain/mariadb"
	"github.com/infrabay/opscore/internal/domain/memstore"
	"github.com/infrabay/opscore/internal/domain/mongodb"
	"github.com/infrabay/opscore/internal/domain/mount"
	"github.com/infrabay/opscore/internal/domain/mysql"
	"github.com/infrabay/opscore/internal/domain/notification"
	"github.com/infrabay/opscore/internal/domain/port"
	"github.com/infrabay/opscore/internal/domain/postgres"
	"github.com/infrabay/opscore/internal/domain/project"
	"github.com/infrabay/opscore/internal/domain/redisdb"
	"github.com/infrabay/opscore/internal/domain/registry"
	"github.com/infrabay/opscore/internal/domain/schedule"
	domainstripe "github.com/infrabay/opscore/internal/domain/stripe"
	"github.com/infrabay/opscore/internal/domain/sshkey"
	"github.com/infrabay/opscore/internal/domain/swarm"
	"github.com/infrabay/opscore/internal/domain/user"
	"github.com/infrabay/opscore/internal/domain/volumebackup"
	execstoreinmem "github.com/infrabay/opscore/internal/execstore/inmem"
	"github.com/infrabay/opscore/internal/httpapi"
	"github.com/infrabay/opscore/internal/ids"
	"github.com/infrabay/opscore/internal/llm/anthropic"
	"github.com/infrabay/opscore/internal/llm/model"
	"github.com/infrabay/opscore/internal/policy"
	"github.com/infrabay/opscore/internal/telemetry"
	"github.com/infrabay/opscore/internal/toolregistry"
)

func main() {
	var (
		configPathF = flag.String("config", "", "path to a YAML config overlay (optional)")
		debugF      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *debugF {
		ctx = log.Context(ctx, log.WithDebug())
	}

	cfg, err := config.Load(*configPathF)
	if err != nil {
		log.Fatal(ctx, err)
	}

	toolReg := toolregistry.NewRegistry()
	if err := registerDomainTools(ctx, toolReg, cfg); err != nil {
		log.Fatal(ctx, fmt.Errorf("register domain tools: %w", err))
	}

	conversations := convstoreinmem.New()
	executions := execstoreinmem.New()
	approvals := approvalbus.NewInMemory()

	chatPipeline := &chatstream.Pipeline{
		Registry:      toolReg,
		Conversations: conversations,
		Executions:    executions,
		Approvals:     approvals,
		Models:        buildModelResolver(cfg),
	}

	runtime := buildAgentRuntime(ctx)
	if err := agentloop.RegisterToolRegistry(runtime, toolReg, func(string) ids.OrgID { return ids.OrgID(cfg.OrgID) }); err != nil {
		log.Fatal(ctx, fmt.Errorf("bridge domain tools into agent runtime: %w", err))
	}

	server := &httpapi.Server{
		Chat:          chatPipeline,
		Runtime:       runtime,
		Registry:      toolReg,
		Conversations: conversations,
		Logger:        telemetry.NewClueLogger(),
	}

	handler := log.HTTP(ctx)(server.NewHandler())

	errc := make(chan error, 1)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(ctx)

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler, ReadHeaderTimeout: cfg.Server.RequestTimeout}
	wg.Add(1)
	go func() {
		defer wg.Done()
		go func() {
			log.Printf(ctx, "HTTP server listening on %q", cfg.Server.Addr)
			errc <- srv.ListenAndServe()
		}()

		<-ctx.Done()
		log.Printf(ctx, "shutting down HTTP server at %q", cfg.Server.Addr)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf(ctx, "failed to shutdown: %v", err)
		}
	}()

	log.Printf(ctx, "exiting (%v)", <-errc)
	cancel()
	wg.Wait()
	log.Printf(ctx, "exited")
}

// buildModelResolver resolves every agent to the single LM provider
// configured at startup. A deployment that routes different agents to
// different providers replaces this with a per-agent lookup table.
func buildModelResolver(cfg *config.Config) chatstream.ModelResolver {
	var client model.Client
	if cfg.LM.Provider == "anthropic" {
		if c, err := anthropic.NewFromAPIKey(cfg.LM.AnthropicKey, cfg.LM.Model); err == nil {
			client = c
		}
	}
	return func(ids.AgentID) (model.Client, error) {
		if client == nil {
			return nil, fmt.Errorf("no model client configured for provider %q", cfg.LM.Provider)
		}
		return client, nil
	}
}

// noopStreamSink discards every planner/tool/assistant event published to
// the runtime's default Stream sink; per-run observers attach dynamically
// via Runtime.SubscribeRun (see internal/httpapi's sseSink) instead of
// through this always-on default.
type noopStreamSink struct{}

func (noopStreamSink) Send(context.Context, stream.Event) error { return nil }
func (noopStreamSink) Close(context.Context) error               { return nil }

// buildAgentRuntime constructs the execution loop runtime (C8) with an
// in-memory engine/memory/run-store triple suitable for a single-node
// deployment.
func buildAgentRuntime(ctx context.Context) *agentloop.Runtime {
	policyEngine, err := policy.New(policy.Options{Label: "basic"})
	if err != nil {
		log.Fatal(ctx, fmt.Errorf("build policy engine: %w", err))
	}

	return agentloop.New(
		agentloop.WithEngine(inmem.New()),
		agentloop.WithMemoryStore(memoryinmem.New()),
		agentloop.WithRunStore(runinmem.New()),
		agentloop.WithPolicy(policyEngine),
		agentloop.WithStream(noopStreamSink{}),
		agentloop.WithLogger(telemetry.NewClueLogger()),
		agentloop.WithMetrics(telemetry.NewClueMetrics()),
		agentloop.WithTracer(telemetry.NewClueTracer()),
	)
}

// registerDomainTools wires every internal/domain package's toolset into r,
// constructing the real client for each external system (Docker, the three
// SQL dialects, Mongo, Redis, Stripe, GitHub OAuth, S3) from cfg. A domain
// with no connection string or credentials configured is skipped silently; a
// domain whose backing client fails to construct is skipped with a warning.
// Neither aborts startup, since most deployments only exercise a handful of
// these tools.
func registerDomainTools(ctx context.Context, r *toolregistry.Registry, cfg *config.Config) error {
	// deployments backs every tool that triggers an async deployment
	// (application_deploy, mount_create's on-apply redeploy, and
	// backup_restore's log-streamed restore record) with one shared id
	// space, so a client can subscribe to any of them by the same kind of
	// handle.
	deployments := memstore.NewDeployments()

	if docker, err := dockerclient.NewClientWithOpts(dockerclient.FromEnv, dockerclient.WithAPIVersionNegotiation()); err != nil {
		log.Warn(ctx, "docker client unavailable", log.KV{K: "err", V: err})
	} else {
		if err := application.Register(r, application.Deps{Docker: docker, Deployer: deployments}); err != nil {
			return err
		}
		if err := compose.Register(r, compose.Deps{Docker: docker}); err != nil {
			return err
		}
		if err := swarm.Register(r, swarm.Deps{Docker: docker}); err != nil {
			return err
		}
	}

	mountAllowlist := memstore.NewMountAllowlist()
	if err := mount.Register(r, mount.Deps{Source: mountAllowlist, Deployer: deployments}); err != nil {
		return err
	}

	if cfg.Mongo.URI != "" {
		mongoClient, err := mongo.Connect(ctx, mongooptions.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			log.Warn(ctx, "mongo client unavailable", log.KV{K: "err", V: err})
		} else if err := mongodb.Register(r, mongodb.Deps{Client: mongoClient, DefaultTimeout: cfg.Mongo.Timeout, OrgID: cfg.OrgID}); err != nil {
			return err
		}
	}

	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err := redisdb.Register(r, redisdb.Deps{Client: redisClient, OrgID: cfg.OrgID}); err != nil {
			return err
		}
	}

	if cfg.MariaDB.DSN != "" {
		db, err := sql.Open("mysql", cfg.MariaDB.DSN)
		if err != nil {
			log.Warn(ctx, "mariadb connection unavailable", log.KV{K: "err", V: err})
		} else if err := mariadb.Register(r, mariadb.Deps{
			DB:              db,
			QueryTimeout:    cfg.MariaDB.QueryTimeout,
			DefaultRowLimit: cfg.MariaDB.DefaultRowLimit,
			OrgID:           cfg.OrgID,
		}); err != nil {
			return err
		}
	}

	if cfg.MySQL.DSN != "" {
		db, err := sql.Open("mysql", cfg.MySQL.DSN)
		if err != nil {
			log.Warn(ctx, "mysql connection unavailable", log.KV{K: "err", V: err})
		} else if err := mysql.Register(r, mysql.Deps{
			DB: db,
			Config: mysql.Config{
				QueryTimeout:    cfg.MySQL.QueryTimeout,
				DefaultRowLimit: cfg.MySQL.DefaultRowLimit,
			},
			OrgID: cfg.OrgID,
		}); err != nil {
			return err
		}
	}

	if cfg.Postgres.DSN != "" {
		db, err := sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			log.Warn(ctx, "postgres connection unavailable", log.KV{K: "err", V: err})
		} else if err := postgres.Register(r, postgres.Deps{
			DB: db,
			Config: postgres.Config{
				QueryTimeout:    cfg.Postgres.QueryTimeout,
				DefaultRowLimit: cfg.Postgres.DefaultRowLimit,
			},
			OrgID: cfg.OrgID,
		}); err != nil {
			return err
		}
	}

	if s3Client, err := buildS3Client(ctx, cfg); err != nil {
		log.Warn(ctx, "s3 client unavailable", log.KV{K: "err", V: err})
	} else {
		if err := backup.Register(r, backup.Deps{
			Client:   s3Client,
			Bucket:   cfg.S3.Bucket,
			Deployer: deployments,
			Restore: func(context.Context, string, []byte) error {
				return fmt.Errorf("backup restore requires a deployment-provided restore mechanism")
			},
		}); err != nil {
			return err
		}
		if err := volumebackup.Register(r, volumebackup.Deps{
			Scheduler: memstore.NewSchedules(),
			S3Client:  s3Client,
			RestoreVolume: func(context.Context, string, []byte) error {
				return fmt.Errorf("volume restore requires a deployment-provided mount mechanism")
			},
		}); err != nil {
			return err
		}
	}

	if err := schedule.Register(r, schedule.Deps{Scheduler: memstore.NewSchedules()}); err != nil {
		return err
	}
	if err := project.Register(r, project.Deps{Store: memstore.NewProjects()}); err != nil {
		return err
	}
	if err := registry.Register(r, registry.Deps{Store: memstore.NewRegistries()}); err != nil {
		return err
	}
	if err := notification.Register(r, notification.Deps{Store: memstore.NewNotifications()}); err != nil {
		return err
	}
	if err := port.Register(r, port.Deps{Store: memstore.NewPorts()}); err != nil {
		return err
	}
	if err := user.Register(r, user.Deps{Store: memstore.NewUsers()}); err != nil {
		return err
	}
	if err := sshkey.Register(r, sshkey.Deps{Store: memstore.NewSSHKeys()}); err != nil {
		return err
	}

	if cfg.GitHub.ClientID != "" {
		oauthCfg := &oauth2.Config{
			ClientID:     cfg.GitHub.ClientID,
			ClientSecret: cfg.GitHub.ClientSecret,
			Endpoint:     githubOAuthEndpoint,
		}
		if err := githubprovider.Register(r, githubprovider.Deps{
			OAuthConfig: oauthCfg,
			Store:       memstore.NewGitHubConnections(),
		}); err != nil {
			return err
		}
	}

	if cfg.Stripe.SecretKey != "" {
		stripe.Key = cfg.Stripe.SecretKey
		if err := domainstripe.Register(r, domainstripe.Deps{
			Customers:             memstore.NewStaticCustomerLookup(nil),
			CreateCheckoutSession: checkoutsession.New,
			CreatePortalSession:   portalsession.New,
		}); err != nil {
			return err
		}
	}

	return nil
}

// buildS3Client constructs the shared AWS SDK v2 S3 client used by both the
// backup and volume-backup toolsets.
func buildS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	if cfg.S3.Bucket == "" {
		return nil, fmt.Errorf("no S3 bucket configured")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3.Region))
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg), nil
}

var githubOAuthEndpoint = oauth2.Endpoint{
	AuthURL:  "https://github.com/login/oauth/authorize",
	TokenURL: "https://github.com/login/oauth/access_token",
}
