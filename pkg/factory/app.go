package factory

import (
	"context"
	"fmt"

	"github.com/funpik/adminconsole/pkg/api"
	"github.com/funpik/adminconsole/pkg/config"
	"github.com/funpik/adminconsole/pkg/credential"
	"github.com/funpik/adminconsole/pkg/environment"
	"github.com/funpik/adminconsole/pkg/media"
	"github.com/funpik/adminconsole/pkg/session"
	"github.com/funpik/adminconsole/pkg/shared/kvs"
	"github.com/funpik/adminconsole/pkg/token"
)

// App holds the wired components of one console process.
type App struct {
	Config      *config.Config
	Store       kvs.Store
	Selector    *environment.Selector
	API         *api.Client
	Credentials *credential.Store
	Controller  *session.Controller
	Inspector   *token.Inspector

	factory Factory
}

// Build creates every component from cfg and registers the controller with
// the selector so that switching environments resets the session. opts
// carries the caller's notifier and change hook.
func Build(f Factory, cfg *config.Config, flags environment.BuildFlags, opts session.Options) (*App, error) {
	base, authStore, envStore, err := f.CreateKVSStores(cfg)
	if err != nil {
		return nil, err
	}

	inspector := opts.Inspector
	if inspector == nil {
		inspector = token.Default
		opts.Inspector = inspector
	}

	selector := f.CreateSelector(cfg, envStore, flags)
	client, err := f.CreateAPIClient(cfg, selector)
	if err != nil {
		base.Close()
		return nil, err
	}

	creds := f.CreateCredentialStore(authStore, inspector)
	controller, err := f.CreateController(cfg, creds, client, opts)
	if err != nil {
		base.Close()
		return nil, err
	}
	selector.SetResetter(controller)

	return &App{
		Config:      cfg,
		Store:       base,
		Selector:    selector,
		API:         client,
		Credentials: creds,
		Controller:  controller,
		Inspector:   inspector,
		factory:     f,
	}, nil
}

// Start runs session startup.
func (a *App) Start(ctx context.Context) {
	a.Controller.Start(ctx)
}

// Media creates the media bucket client.
func (a *App) Media() (*media.Bucket, error) {
	return a.factory.CreateMediaBucket(a.Config)
}

// ApplyConfig applies a reloaded configuration. Only the backend hosts take
// effect at runtime; the session is reset when they move the current host.
func (a *App) ApplyConfig(ctx context.Context, cfg *config.Config, flags environment.BuildFlags) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.Selector.Reload(ctx, cfg.Environment.Hosts, flags)
	return nil
}

// Close stops the session countdown and closes the store.
func (a *App) Close() error {
	a.Controller.Close()
	return a.Store.Close()
}
