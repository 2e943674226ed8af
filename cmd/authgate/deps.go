package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	"github.com/vango-dev/authgate/internal/config"
	"github.com/vango-dev/authgate/internal/errors"
	"github.com/vango-dev/authgate/pkg/authclient"
	"github.com/vango-dev/authgate/pkg/domainrouter"
	"github.com/vango-dev/authgate/pkg/expiry"
	"github.com/vango-dev/authgate/pkg/httpclient"
	"github.com/vango-dev/authgate/pkg/metrics"
	"github.com/vango-dev/authgate/pkg/navigate"
	"github.com/vango-dev/authgate/pkg/security"
	"github.com/vango-dev/authgate/pkg/tokenstore"
	"github.com/vango-dev/authgate/pkg/tokenstore/redisstore"
)

// openStore builds the token store for the configured backend.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*tokenstore.Store, error) {
	backend, err := openBackend(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	logger.Debug("token store opened", "backend", cfg.Store.Backend)
	return tokenstore.New(backend, tokenstore.WithLogger(logger.With("component", "tokenstore"))), nil
}

func openBackend(ctx context.Context, sc config.StoreConfig) (tokenstore.Backend, error) {
	switch sc.Backend {
	case config.BackendMemory:
		return tokenstore.NewMemoryBackend(), nil

	case config.BackendFile:
		b, err := tokenstore.NewFileBackend(sc.File.Path)
		if err != nil {
			return nil, errors.New("A070").WithField("store.file.path").Wrap(err)
		}
		return b, nil

	case config.BackendS3:
		return tokenstore.NewS3Backend(newS3Client(sc.S3), sc.S3.Bucket, sc.S3.Prefix+sc.ClientID+".json"), nil

	case config.BackendRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     sc.Redis.Addr,
			Password: sc.Redis.Password,
			DB:       sc.Redis.DB,
		})
		if err := pingRedis(ctx, client, sc.Redis.ConnectTimeout); err != nil {
			client.Close()
			return nil, errors.New("A071").
				WithField("store.redis.addr").
				WithDetailf("redis at %s did not answer within %s", sc.Redis.Addr, sc.Redis.ConnectTimeout).
				Wrap(err)
		}
		return &ownedRedis{
			Backend: redisstore.New(client, sc.ClientID,
				redisstore.WithPrefix(sc.Redis.Prefix),
				redisstore.WithTTL(sc.Redis.TTL)),
			client: client,
		}, nil
	}
	return nil, errors.New("A014").WithField("store.backend").WithDetailf("unknown backend %q", sc.Backend)
}

// ownedRedis closes the Redis client the CLI created along with the backend.
type ownedRedis struct {
	*redisstore.Backend
	client *goredis.Client
}

func (o *ownedRedis) Close() error {
	err := o.Backend.Close()
	if cerr := o.client.Close(); err == nil {
		err = cerr
	}
	return err
}

// pingRedis retries PING with exponential backoff until timeout.
func pingRedis(ctx context.Context, client *goredis.Client, timeout time.Duration) error {
	backoff := retry.WithMaxDuration(timeout, retry.NewExponential(100*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

// newS3Client builds an S3 client from the standard AWS environment
// variables. Endpoint and path-style support S3-compatible stores.
func newS3Client(sc config.S3StoreConfig) *s3.Client {
	region := sc.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}
	creds := aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		id, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
		if id == "" || secret == "" {
			return aws.Credentials{}, fmt.Errorf("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")
		}
		return aws.Credentials{
			AccessKeyID:     id,
			SecretAccessKey: secret,
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			Source:          "environment",
		}, nil
	})
	return s3.New(s3.Options{
		Region:       region,
		Credentials:  aws.NewCredentialsCache(creds),
		UsePathStyle: sc.PathStyle,
		BaseEndpoint: optional(sc.Endpoint),
	})
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}

// newAuthClient builds the Auth Service client with tracing, metrics and
// request logging installed.
func newAuthClient(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (*authclient.Client, *httpclient.Client, error) {
	hc, err := httpclient.New(cfg.Auth.URL,
		httpclient.WithTimeout(cfg.Auth.Timeout),
		httpclient.WithLogger(logger.With("component", "httpclient")))
	if err != nil {
		return nil, nil, errors.New("A012").WithField("auth.url").Wrap(err)
	}
	hc.Use("tracing", httpclient.Tracing())
	hc.Use("metrics", httpclient.Instrument(m))
	hc.Use("logging", httpclient.Logging(logger.With("component", "httpclient")))

	client := authclient.New(hc, authclient.WithLogger(logger.With("component", "authclient")))
	return client, hc, nil
}

// newRouter builds the domain/device router.
func newRouter(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (*domainrouter.Router, error) {
	table, err := cfg.RouteTable()
	if err != nil {
		return nil, errors.New("A013").WithField("routes").Wrap(err)
	}
	opts := []domainrouter.Option{
		domainrouter.WithMobileMaxWidth(cfg.Router.MobileMaxWidth),
		domainrouter.WithMetrics(m),
		domainrouter.WithLogger(logger.With("component", "domainrouter")),
	}
	if cfg.Router.MobileUserAgent != "" {
		re, err := compileUserAgent(cfg.Router.MobileUserAgent)
		if err != nil {
			return nil, err
		}
		opts = append(opts, domainrouter.WithMobileUserAgent(re))
	}
	return domainrouter.New(cfg.Hosts, table, opts...), nil
}

func compileUserAgent(expr string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, errors.New("A011").WithField("router.mobile_user_agent").Wrap(err)
	}
	return re, nil
}

// session bundles what the session commands need.
type session struct {
	cfg     *config.Config
	store   *tokenstore.Store
	service *authclient.Client
	http    *httpclient.Client
	ctx     *security.Context
	prompt  *expiry.Prompt
}

// openSession wires a Security Context over the configured store and Auth
// Service. nav receives every navigation the context issues.
func openSession(ctx context.Context, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics, nav navigate.Navigator, presenter expiry.Presenter) (*session, error) {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	service, hc, err := newAuthClient(cfg, m, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	table, err := cfg.RouteTable()
	if err != nil {
		store.Close()
		return nil, errors.New("A013").WithField("routes").Wrap(err)
	}

	notifier := expiry.NewNotifier()
	hc.ObserveExpiry(expiryPolicy(service), notifier)

	promptOpts := []expiry.PromptOption{
		expiry.WithMetrics(m),
		expiry.WithLogger(logger.With("component", "expiry")),
	}
	if presenter != nil {
		promptOpts = append(promptOpts, expiry.WithPresenter(presenter))
	}
	prompt := expiry.NewPrompt(promptOpts...)

	sc := security.New(security.Config{
		Hosts:      cfg.Hosts,
		LoginPath:  cfg.Paths.Login,
		PublicRoot: cfg.Paths.Public,
		AdminHome:  cfg.Paths.AdminHome,
		AdminRole:  cfg.AdminRole,
	}, store, service, nav,
		security.WithRoutes(table),
		security.WithNotifier(notifier),
		security.WithPrompt(prompt),
		security.WithMetrics(m),
		security.WithLogger(logger.With("component", "security")),
	)
	if err := sc.Mount(ctx); err != nil {
		store.Close()
		return nil, errors.New("A072").Wrap(err)
	}

	return &session{cfg: cfg, store: store, service: service, http: hc, ctx: sc, prompt: prompt}, nil
}

// expiryPolicy exempts the client's own login and refresh endpoints.
func expiryPolicy(service *authclient.Client) httpclient.ExpiryPolicy {
	p := httpclient.DefaultExpiryPolicy()
	ep := service.Endpoints()
	p.Exempt = []string{ep.Login, ep.Refresh}
	return p
}

func (s *session) Close() error {
	s.ctx.Unmount()
	return s.store.Close()
}
