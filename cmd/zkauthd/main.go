package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/vinay10949/chaum-pedersen-auth/pkg/auth"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/chaumpedersen"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/config"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/httpapi"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/jwt"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/log"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/rpc"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/storage"
)

// Automatically set through -ldflags
var (
	version   = "dev"
	gitCommit = "none"
)

const shutdownTimeout = 10 * time.Second

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "TOML configuration file",
	EnvVars: []string{"ZKAUTHD_CONFIG"},
}

var httpAddrFlag = &cli.StringFlag{
	Name:  "http-addr",
	Usage: "host:port for the HTTP API",
}

var grpcAddrFlag = &cli.StringFlag{
	Name:  "grpc-addr",
	Usage: "host:port for the gRPC API",
}

var groupFlag = &cli.StringFlag{
	Name:  "group",
	Usage: "named group (" + strings.Join(chaumpedersen.GroupNames(), ", ") + ")",
}

var usersDBFlag = &cli.StringFlag{
	Name:  "users-db",
	Usage: "bbolt file for registered users; memory when empty",
}

var keyFileFlag = &cli.StringFlag{
	Name:  "key-file",
	Usage: "PEM file with the ES256 token signing key, generated when missing",
}

var keyConfigFlag = &cli.StringFlag{
	Name:  "key-config",
	Usage: "JSON file with the signing key id",
}

var rateLimitFlag = &cli.IntFlag{
	Name:  "rate-limit",
	Usage: "requests per client per minute on the protocol routes, 0 disables",
}

var logLevelFlag = &cli.StringFlag{
	Name:  "log-level",
	Usage: "debug, info, warn or error",
}

var jsonLogFlag = &cli.BoolFlag{
	Name:  "json-log",
	Usage: "log as JSON",
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "zkauthd",
		Version: version,
		Usage:   "Chaum-Pedersen zero-knowledge authentication server",
		Flags: []cli.Flag{
			configFlag, httpAddrFlag, grpcAddrFlag, groupFlag, usersDBFlag,
			keyFileFlag, keyConfigFlag, rateLimitFlag, logLevelFlag, jsonLogFlag,
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "keygen",
				Usage:  "generate a token signing key and its key config",
				Flags:  []cli.Flag{keyFileFlag, keyConfigFlag},
				Action: keygen,
			},
			{
				Name:   "groups",
				Usage:  "list the built-in groups",
				Action: groups,
			},
			{
				Name:   "check-config",
				Usage:  "load and validate the configuration, then exit",
				Flags:  []cli.Flag{configFlag},
				Action: checkConfig,
			},
		},
	}
}

func main() {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Fprintf(c.App.Writer, "zkauthd %s (commit %s)\n", version, gitCommit)
	}

	if err := newApp().Run(os.Args); err != nil {
		log.DefaultLogger().Fatalw("", "binary", "zkauthd", "err", err)
	}
}

// loadConfig reads --config over the defaults and applies flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String(configFlag.Name); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if c.IsSet(httpAddrFlag.Name) {
		cfg.Server.HTTPAddr = c.String(httpAddrFlag.Name)
	}
	if c.IsSet(grpcAddrFlag.Name) {
		cfg.Server.GRPCAddr = c.String(grpcAddrFlag.Name)
	}
	if c.IsSet(groupFlag.Name) {
		cfg.Protocol = config.ProtocolConfig{Group: c.String(groupFlag.Name)}
	}
	if c.IsSet(usersDBFlag.Name) {
		cfg.Storage.UsersDB = c.String(usersDBFlag.Name)
	}
	if c.IsSet(keyFileFlag.Name) {
		cfg.Tokens.KeyFile = c.String(keyFileFlag.Name)
	}
	if c.IsSet(keyConfigFlag.Name) {
		cfg.Tokens.KeyConfigFile = c.String(keyConfigFlag.Name)
	}
	if c.IsSet(rateLimitFlag.Name) {
		cfg.Limits.RateLimit = c.Int(rateLimitFlag.Name)
	}
	if c.IsSet(logLevelFlag.Name) {
		cfg.Log.Level = c.String(logLevelFlag.Name)
	}
	if c.IsSet(jsonLogFlag.Name) {
		cfg.Log.JSON = c.Bool(jsonLogFlag.Name)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := newDaemon(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	httpLis, err := net.Listen("tcp", cfg.Server.HTTPAddr)
	if err != nil {
		return err
	}
	grpcLis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		httpLis.Close()
		return err
	}

	return d.Run(ctx, httpLis, grpcLis)
}

func keygen(c *cli.Context) error {
	keyFile := c.String(keyFileFlag.Name)
	configFile := c.String(keyConfigFlag.Name)
	if keyFile == "" || configFile == "" {
		return fmt.Errorf("--%s and --%s are required", keyFileFlag.Name, keyConfigFlag.Name)
	}
	if err := jwt.GenerateKeyPairFiles(keyFile, configFile); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "wrote %s and %s\n", keyFile, configFile)
	return nil
}

func groups(c *cli.Context) error {
	for _, name := range chaumpedersen.GroupNames() {
		params, err := chaumpedersen.Group(name)
		if err != nil {
			return err
		}
		marker := ""
		if name == chaumpedersen.DefaultGroup {
			marker = " (default)"
		}
		fmt.Fprintf(c.App.Writer, "%s%s\n", params, marker)
	}
	return nil
}

func checkConfig(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	params, err := cfg.Params()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "configuration ok: group %s, http %s, grpc %s\n",
		params, cfg.Server.HTTPAddr, cfg.Server.GRPCAddr)
	return nil
}

// daemon wires the service to both transports.
type daemon struct {
	log   log.Logger
	store storage.Store
	http  *httpapi.Server
	grpc  *rpc.Server
}

func newDaemon(cfg *config.Config) (*daemon, error) {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := log.New(os.Stdout, level, cfg.Log.JSON).Named("zkauthd")

	params, err := cfg.Params()
	if err != nil {
		return nil, err
	}

	sessionOpts := cfg.SessionOptions()
	sessionOpts.Logger = logger

	var store storage.Store
	if cfg.Storage.UsersDB != "" {
		store, err = storage.NewBoltStore(cfg.Storage.UsersDB, sessionOpts)
	} else {
		store, err = storage.NewMemoryStore(sessionOpts)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	signer, err := newSigner(cfg, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	issuer := &jwt.SessionTokenIssuer{
		Signer:   signer,
		Issuer:   cfg.Tokens.Issuer,
		Audience: cfg.Tokens.Audience,
		TTL:      cfg.Tokens.TTL.Duration,
		Group:    params.Name(),
	}
	svc := auth.NewService(params, store,
		auth.WithLogger(logger),
		auth.WithTokenIssuer(issuer),
	)

	logger.Infow("service ready",
		"group", params.String(),
		"users_db", cfg.Storage.UsersDB,
		"session_ttl", cfg.Sessions.TTL.Duration,
		"max_pending", cfg.Sessions.MaxPending,
		"token_alg", signer.Algorithm(),
	)

	return &daemon{
		log:   logger,
		store: store,
		http: httpapi.New(svc, httpapi.Options{
			JWKS:      signer.JWKS(),
			Tokens:    jwt.NewVerifier(signer.JWKS(), issuer.Issuer, issuer.Audience, nil),
			RateLimit: cfg.Limits.RateLimit,
			Logger:    logger,
		}),
		grpc: rpc.NewServer(svc, logger),
	}, nil
}

func newSigner(cfg *config.Config, l log.Logger) (*jwt.ES256Signer, error) {
	if cfg.Tokens.KeyFile == "" {
		l.Warnw("no tokens.key_file configured, session tokens use an ephemeral key")
		return jwt.NewEphemeralSigner()
	}

	signer, generated, err := jwt.LoadOrGenerateSigner(cfg.Tokens.KeyFile, cfg.Tokens.KeyConfigFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}
	if generated {
		l.Infow("generated token signing key", "key_file", cfg.Tokens.KeyFile, "kid", signer.KeyID())
	}
	return signer, nil
}

// Run serves on both listeners until ctx is done or one of them fails,
// then shuts both down.
func (d *daemon) Run(ctx context.Context, httpLis, grpcLis net.Listener) error {
	httpServer := &http.Server{
		Handler:           d.http,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d.log.Infow("http listening", "addr", httpLis.Addr().String())
		if err := httpServer.Serve(httpLis); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return d.grpc.Serve(grpcLis)
	})

	g.Go(func() error {
		<-ctx.Done()
		d.log.Infow("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		d.grpc.Stop(shutdownCtx)
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close releases the store and background workers.
func (d *daemon) Close() error {
	d.http.Close()
	return d.store.Close()
}
