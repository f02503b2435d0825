package environment

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

// Values linked at build time, e.g.
//
//	go build -ldflags "-X github.com/funpik/adminconsole/pkg/environment.LinkedUseProduction=true"
//
// When empty, the process environment variable of the same flag is used.
var (
	LinkedUseProduction string
	LinkedAPIEnv        string
)

// BuildFlags are the two build-time sources consulted after the persisted
// override. Empty means unset.
type BuildFlags struct {
	// UseProduction is "true" or "false".
	UseProduction string `env:"ADMIN_USE_PRODUCTION"`
	// APIEnv is "production" or "development".
	APIEnv string `env:"ADMIN_API_ENV"`
}

// LoadBuildFlags reads the linked values, falling back to the process
// environment for each flag that was not linked.
func LoadBuildFlags(ctx context.Context) (BuildFlags, error) {
	return loadBuildFlags(ctx, envconfig.OsLookuper())
}

func loadBuildFlags(ctx context.Context, fallback envconfig.Lookuper) (BuildFlags, error) {
	linked := map[string]string{}
	if LinkedUseProduction != "" {
		linked["ADMIN_USE_PRODUCTION"] = LinkedUseProduction
	}
	if LinkedAPIEnv != "" {
		linked["ADMIN_API_ENV"] = LinkedAPIEnv
	}

	var flags BuildFlags
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &flags,
		Lookuper: envconfig.MultiLookuper(envconfig.MapLookuper(linked), fallback),
	}); err != nil {
		return BuildFlags{}, fmt.Errorf("environment: failed to read build flags: %w", err)
	}
	return flags, nil
}

// resolve applies flag 1 then flag 2. ok is false when neither decides.
func (f BuildFlags) resolve() (Environment, bool) {
	switch f.UseProduction {
	case "true":
		return Production, true
	case "false":
		return Development, true
	}

	switch f.APIEnv {
	case "production":
		return Production, true
	case "development":
		return Development, true
	}
	return "", false
}
