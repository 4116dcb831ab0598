/*
Package flow implements the client side request and response model of
OAuth 2.0 and OpenID Connect: building authorization, end session,
device authorization and token requests, correlating asynchronous
authorization responses back to the request that produced them and
validating error and success responses.

Requests are built through their builders and are immutable afterwards.
The only shared mutable component is the [PendingRequestStore] which
maps single use state tokens to pending requests; everything else is
safe for concurrent use.

The package never performs HTTP itself beyond the injected client of
the Exchange helpers: outbound requests are produced as values
(a browser navigable URL, or a POST request with an urlencoded body)
and responses are parsed from redirect URIs or JSON bodies delivered
by the host.
*/
package flow
