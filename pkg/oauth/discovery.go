package oauth

// DiscoveryEndpoint is the path of the OpenID Connect discovery
// document, relative to the issuer.
const DiscoveryEndpoint = "/.well-known/openid-configuration"

// DiscoveryConfiguration is the subset of the OpenID Connect discovery
// document this engine consumes. Fetching the document is a transport
// concern, only the parsed form is handled here.
type DiscoveryConfiguration struct {
	// Issuer is the identifier of the OP, used in tokens as `iss` claim.
	Issuer string `json:"issuer,omitempty"`

	// AuthorizationEndpoint is the URL of the OAuth 2.0 Authorization Endpoint.
	AuthorizationEndpoint string `json:"authorization_endpoint,omitempty"`

	// TokenEndpoint is the URL of the OAuth 2.0 Token Endpoint.
	TokenEndpoint string `json:"token_endpoint,omitempty"`

	// EndSessionEndpoint is a URL where the RP can redirect to request
	// that the end-user be logged out at the OP.
	EndSessionEndpoint string `json:"end_session_endpoint,omitempty"`

	// DeviceAuthorizationEndpoint is the URL to start a Device
	// Authorization Grant (RFC 8628).
	DeviceAuthorizationEndpoint string `json:"device_authorization_endpoint,omitempty"`

	// GrantTypesSupported lists the grant_type values the OP supports.
	// If omitted, the default is ["authorization_code", "implicit"].
	GrantTypesSupported []GrantType `json:"grant_types_supported,omitempty"`

	// ResponseModesSupported lists the response_mode values the OP
	// supports. If omitted, the default is ["query", "fragment"].
	ResponseModesSupported []string `json:"response_modes_supported,omitempty"`

	// CodeChallengeMethodsSupported lists the PKCE challenge methods
	// the OP supports.
	CodeChallengeMethodsSupported []CodeChallengeMethod `json:"code_challenge_methods_supported,omitempty"`
}
