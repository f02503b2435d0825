package factory

import (
	"fmt"

	"github.com/funpik/adminconsole/pkg/api"
	"github.com/funpik/adminconsole/pkg/config"
	"github.com/funpik/adminconsole/pkg/credential"
	"github.com/funpik/adminconsole/pkg/environment"
	"github.com/funpik/adminconsole/pkg/media"
	"github.com/funpik/adminconsole/pkg/session"
	"github.com/funpik/adminconsole/pkg/shared/kvs"
	"github.com/funpik/adminconsole/pkg/shared/logging"
	"github.com/funpik/adminconsole/pkg/token"
)

// DefaultFactory is the default implementation of Factory.
type DefaultFactory struct {
	logger logging.Logger
}

// NewDefaultFactory creates a new DefaultFactory.
func NewDefaultFactory(logger logging.Logger) *DefaultFactory {
	return &DefaultFactory{
		logger: logger.WithModule("factory"),
	}
}

// CreateKVSStores opens the configured store and splits it into namespaces.
func (f *DefaultFactory) CreateKVSStores(cfg *config.Config) (base kvs.Store, auth kvs.Store, env kvs.Store, err error) {
	base, err = kvs.New(cfg.Storage)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create KVS: %w", err)
	}
	f.logger.Debug("KVS initialized", "type", cfg.Storage.Type, "namespace", cfg.Storage.Namespace)

	return base, kvs.NewNamespacedStore(base, AuthNamespace), kvs.NewNamespacedStore(base, EnvironmentNamespace), nil
}

// CreateSelector creates the environment selector.
func (f *DefaultFactory) CreateSelector(cfg *config.Config, store kvs.Store, flags environment.BuildFlags) *environment.Selector {
	return environment.NewSelector(store, flags, cfg.Environment.Hosts, f.logger)
}

// CreateAPIClient creates the backend client.
func (f *DefaultFactory) CreateAPIClient(cfg *config.Config, resolver api.URLResolver) (*api.Client, error) {
	timeout, err := cfg.Auth.GetTimeout()
	if err != nil {
		return nil, fmt.Errorf("invalid auth timeout: %w", err)
	}
	return api.NewClient(resolver, api.Config{
		Timeout:      timeout,
		HashPassword: cfg.Auth.HashPassword,
	}, f.logger), nil
}

// CreateCredentialStore creates the credential store.
func (f *DefaultFactory) CreateCredentialStore(store kvs.Store, inspector *token.Inspector) *credential.Store {
	return credential.NewStore(store, inspector, f.logger)
}

// CreateController creates the session controller.
func (f *DefaultFactory) CreateController(cfg *config.Config, creds *credential.Store, backend session.Backend, opts session.Options) (*session.Controller, error) {
	verifyTimeout, err := cfg.Session.GetVerifyTimeout()
	if err != nil {
		return nil, fmt.Errorf("invalid verify timeout: %w", err)
	}
	opts.VerifyTimeout = verifyTimeout
	opts.FailClosed = cfg.Session.FailClosed
	return session.NewController(creds, backend, opts, f.logger), nil
}

// CreateMediaBucket creates the media bucket client.
func (f *DefaultFactory) CreateMediaBucket(cfg *config.Config) (*media.Bucket, error) {
	return media.NewBucket(cfg.Media, f.logger)
}
