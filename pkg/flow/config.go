package flow

import (
	"time"

	"github.com/oauthkit/oauthkit/pkg/oauth"
)

// ServiceConfiguration holds the endpoints of the authorization server.
// It is owned by the caller and passed by reference into every request;
// the engine never mutates it.
type ServiceConfiguration struct {
	AuthorizationEndpoint       string `json:"authorization_endpoint,omitempty"`
	TokenEndpoint               string `json:"token_endpoint,omitempty"`
	EndSessionEndpoint          string `json:"end_session_endpoint,omitempty"`
	DeviceAuthorizationEndpoint string `json:"device_authorization_endpoint,omitempty"`
}

// ServiceConfigurationFromDiscovery maps a parsed discovery document
// onto the endpoints this engine uses. Fetching the document is the
// transport collaborator's concern.
func ServiceConfigurationFromDiscovery(discovery *oauth.DiscoveryConfiguration) *ServiceConfiguration {
	return &ServiceConfiguration{
		AuthorizationEndpoint:       discovery.AuthorizationEndpoint,
		TokenEndpoint:               discovery.TokenEndpoint,
		EndSessionEndpoint:          discovery.EndSessionEndpoint,
		DeviceAuthorizationEndpoint: discovery.DeviceAuthorizationEndpoint,
	}
}

// Clock abstracts wall clock reads for expiration checks,
// so time dependent logic stays deterministic in tests.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}
