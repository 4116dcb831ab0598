package flow

import (
	"log/slog"
	"net/url"
	"strings"

	httphelper "github.com/oauthkit/oauthkit/pkg/http"
	"github.com/oauthkit/oauthkit/pkg/oauth"
)

// Encoder serializes request structs into form parameters,
// space-joining scope and prompt values.
var Encoder = httphelper.Encoder(oauth.NewEncoder())

// Reserved parameter sets, one per request type. Additional parameters
// must stay disjoint from the protocol parameters the builder itself
// produces, otherwise a caller could silently override them.
var (
	authorizationReservedParams = reserved(
		"client_id", "response_type", "redirect_uri", "scope", "state",
		"nonce", "display", "prompt", "ui_locales", "login_hint",
		"response_mode", "code_challenge", "code_challenge_method",
	)
	endSessionReservedParams = reserved(
		"id_token_hint", "logout_hint", "client_id",
		"post_logout_redirect_uri", "state", "ui_locales",
	)
	deviceAuthorizationReservedParams = reserved(
		"client_id", "scope",
	)
	tokenReservedParams = reserved(
		"client_id", "client_secret", "grant_type", "code",
		"redirect_uri", "refresh_token", "device_code", "scope",
		"code_verifier", "client_assertion", "client_assertion_type",
	)
)

func reserved(names ...string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return set
}

func checkAdditionalParameters(params map[string]string, reservedSet map[string]bool) error {
	for key := range params {
		if reservedSet[key] {
			return oauth.ErrInvalidArgument().WithDescription("parameter %q is reserved and must be set through the builder", key)
		}
	}
	return nil
}

func mergeAdditionalParameters(values url.Values, params map[string]string) url.Values {
	for key, value := range params {
		values.Set(key, value)
	}
	return values
}

// parseFragment splits a URI fragment into response values. Malformed
// pairs are skipped and logged rather than failing the whole parse,
// some authorization servers append tracking fragments of their own.
func parseFragment(fragment string, logger *slog.Logger) url.Values {
	values := url.Values{}
	for _, pair := range strings.Split(fragment, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, found := strings.Cut(pair, "=")
		if !found || rawKey == "" {
			logger.Warn("skipping malformed fragment pair", "pair", pair)
			continue
		}
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			logger.Warn("skipping fragment pair with invalid key encoding", "pair", pair)
			continue
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			logger.Warn("skipping fragment pair with invalid value encoding", "pair", pair)
			continue
		}
		values.Add(key, value)
	}
	return values
}

// redirectValues extracts the response parameters from a redirect URI,
// from the query or the fragment component depending on the response
// mode the request asked for.
func redirectValues(redirect *url.URL, mode oauth.ResponseMode, logger *slog.Logger) url.Values {
	if mode == oauth.ResponseModeFragment {
		return parseFragment(redirect.Fragment, logger)
	}
	return redirect.Query()
}
