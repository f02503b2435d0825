// Package environment selects which backend deployment every request targets.
//
// Exactly two environments exist. The selection is process-wide and
// persisted; switching it tears the session down because tokens issued by
// one host are not valid on the other.
package environment

import (
	"fmt"
	"strings"
)

// Environment is a backend deployment target.
type Environment string

const (
	// Development is the default target.
	Development Environment = "development"
	// Production is the live backend.
	Production Environment = "production"
)

// Parse accepts exactly "development" or "production".
func Parse(s string) (Environment, bool) {
	switch Environment(s) {
	case Development, Production:
		return Environment(s), true
	default:
		return "", false
	}
}

// Other returns the environment that is not e.
func (e Environment) Other() Environment {
	if e == Production {
		return Development
	}
	return Production
}

// ServicePort identifies a backend service domain. Each domain listens on a
// fixed port on both hosts.
type ServicePort int

// Service ports of the backend.
const (
	PortUser          ServicePort = 9001
	PortStudyPatterns ServicePort = 9002
	PortMissions      ServicePort = 9004
	PortInventory     ServicePort = 9005
	PortMonetization  ServicePort = 9006
	PortNotification  ServicePort = 9007
	PortRewarding     ServicePort = 9008
	PortGeneric       ServicePort = 9009
	PortWebsocket     ServicePort = 9100
)

// Hosts maps each environment to its base host (scheme + hostname).
type Hosts struct {
	Development string `yaml:"development" json:"development"`
	Production  string `yaml:"production" json:"production"`
}

// DefaultHosts are the backend's published hosts.
var DefaultHosts = Hosts{
	Development: "https://dev.baseapi.funpik.net",
	Production:  "https://production.baseapi.funpik.net",
}

// For returns the host of env.
func (h Hosts) For(env Environment) string {
	if env == Production {
		return h.Production
	}
	return h.Development
}

// Validate checks that both hosts are set.
func (h Hosts) Validate() error {
	if strings.TrimSpace(h.Development) == "" || strings.TrimSpace(h.Production) == "" {
		return fmt.Errorf("environment: both development and production hosts are required")
	}
	return nil
}

// BuildURL joins host, port and path as "<host>:<port><path>", adding a
// leading slash to path when missing.
func BuildURL(host string, port ServicePort, path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("%s:%d%s", strings.TrimSuffix(host, "/"), port, path)
}
