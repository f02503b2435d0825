// Package factory wires the console's components from configuration.
package factory

import (
	"github.com/funpik/adminconsole/pkg/api"
	"github.com/funpik/adminconsole/pkg/config"
	"github.com/funpik/adminconsole/pkg/credential"
	"github.com/funpik/adminconsole/pkg/environment"
	"github.com/funpik/adminconsole/pkg/media"
	"github.com/funpik/adminconsole/pkg/session"
	"github.com/funpik/adminconsole/pkg/shared/kvs"
	"github.com/funpik/adminconsole/pkg/token"
)

// Key prefixes splitting the shared store. The environment override lives
// outside the credential namespace.
const (
	AuthNamespace        = "auth:"
	EnvironmentNamespace = "env:"
)

// Factory is the interface for creating the console's components.
// It serves as a simple DI container, allowing customization of specific components.
type Factory interface {
	// CreateKVSStores opens the configured store and returns it together with
	// the credential and environment views on it. Only base must be closed.
	CreateKVSStores(cfg *config.Config) (base kvs.Store, auth kvs.Store, env kvs.Store, err error)

	// CreateSelector creates the environment selector
	CreateSelector(cfg *config.Config, store kvs.Store, flags environment.BuildFlags) *environment.Selector

	// CreateAPIClient creates the backend client resolving URLs through resolver
	CreateAPIClient(cfg *config.Config, resolver api.URLResolver) (*api.Client, error)

	// CreateCredentialStore creates the credential store
	CreateCredentialStore(store kvs.Store, inspector *token.Inspector) *credential.Store

	// CreateController creates the session controller. Config values fill
	// VerifyTimeout and FailClosed; the remaining options are kept.
	CreateController(cfg *config.Config, creds *credential.Store, backend session.Backend, opts session.Options) (*session.Controller, error)

	// CreateMediaBucket creates the media bucket client (media.ErrNotConfigured without a bucket)
	CreateMediaBucket(cfg *config.Config) (*media.Bucket, error)
}
