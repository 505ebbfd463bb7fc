package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	flags "github.com/jessevdk/go-flags"
	"github.com/viant/scy"
	"github.com/viant/scy/cred"
	_ "github.com/viant/scy/kms/blowfish"

	"github.com/graphgate/graphgate/audit"
	"github.com/graphgate/graphgate/auth"
	"github.com/graphgate/graphgate/config"
	"github.com/graphgate/graphgate/graph"
	"github.com/graphgate/graphgate/guard"
	"github.com/graphgate/graphgate/mcp"
	"github.com/graphgate/graphgate/tools"
)

// Options defines the CLI flags for the gateway.
type Options struct {
	Config      string `short:"c" long:"config" default:"config.yaml" description:"Path to the YAML configuration file"`
	HTTPAddr    string `short:"a" long:"addr" description:"HTTP listen address (e.g. :3000); empty serves stdio"`
	Login       bool   `long:"login" description:"Run the interactive browser login and exit"`
	LoginDevice bool   `long:"login-device" description:"Run the device-code login and exit"`
	Logout      bool   `long:"logout" description:"Remove the stored credential and exit"`
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// resolveAzureRef fills clientId/tenantId from a scy-encoded Azure credential
// resource when the config points at one.
func resolveAzureRef(ctx context.Context, cfg *config.Config) error {
	if cfg.AzureRef == "" {
		return nil
	}
	resource := cfg.AzureRef.Decode(ctx, cred.Azure{})
	secret, err := scy.New().Load(ctx, resource)
	if err != nil {
		return fmt.Errorf("load azureRef secret: %w", err)
	}
	azure, ok := secret.Target.(*cred.Azure)
	if !ok {
		return fmt.Errorf("azureRef secret is not an Azure credential")
	}
	if cfg.Azure.ClientID == "" {
		cfg.Azure.ClientID = azure.ClientID
	}
	if cfg.Azure.TenantID == "" {
		cfg.Azure.TenantID = azure.TenantID
	}
	return nil
}

func run() error {
	var opts Options
	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		os.Exit(2)
	}
	logger := newLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return err
	}
	if err := resolveAzureRef(ctx, cfg); err != nil {
		return err
	}

	store := auth.NewStore(config.ResolvePath(cfg.Storage.TokenPath))
	azureFactory := auth.AzureProviderFactory(cfg.Azure.ClientID, cfg.Azure.TenantID, "graphgate")
	factory := func(record azidentity.AuthenticationRecord, mode auth.LoginMode, prompt func(string)) (auth.TokenProvider, error) {
		return azureFactory(record, mode, func(message string) {
			fmt.Fprintln(os.Stderr, message)
			if prompt != nil {
				prompt(message)
			}
		})
	}
	session := auth.NewSession(cfg, store, factory, logger)

	switch {
	case opts.Login, opts.LoginDevice:
		mode := auth.ModeInteractive
		if opts.LoginDevice {
			mode = auth.ModeDeviceCode
		}
		credential, err := session.Login(ctx, mode)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Logged in as %s\n", credential.Account)
		return nil
	case opts.Logout:
		if err := session.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "Logged out")
		return nil
	}

	client := graph.NewClient(session)
	auditLog, err := audit.New(config.ResolvePath(cfg.Guardrails.Audit.LogPath), *cfg.Guardrails.Audit.Enabled)
	if err != nil {
		return err
	}
	service := tools.NewService(cfg, session, client, guard.New(cfg), auditLog, logger)
	registry := mcp.NewRegistry(logger)
	service.Register(registry)
	server := mcp.NewServer(registry, session, cfg, logger)

	if opts.HTTPAddr != "" {
		return server.ListenAndServe(ctx, opts.HTTPAddr)
	}
	logger.Info("stdio server started")
	return server.ServeStdio(ctx, os.Stdin, os.Stdout)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
