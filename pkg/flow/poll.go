package flow

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/oauthkit/oauthkit/pkg/oauth"
)

// PollDeviceAccessToken polls the token endpoint until the user
// completed the device authorization, according to RFC 8628, section
// 3.4 and 3.5. It waits the response's poll interval between attempts,
// stretching it by five seconds on every slow_down, and gives up when
// the device code expires or the context is done.
func PollDeviceAccessToken(ctx context.Context, device *DeviceAuthorizationResponse, auth ClientAuthentication, client *http.Client, opts ...ResponseOption) (*TokenResponse, error) {
	ctx, span := Tracer.Start(ctx, "PollDeviceAccessToken")
	defer span.End()

	ctx = logCtxWithRequestData(ctx, loggerFromContext(ctx, nil),
		"client_id", device.Request.ClientID,
		"user_code", device.UserCode,
	)
	request, err := device.TokenRequest(nil)
	if err != nil {
		return nil, err
	}
	interval := device.PollInterval()
	for {
		timer := time.After(interval)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer:
		}
		if device.HasCodeExpired() {
			return nil, oauth.ErrExpiredToken().WithDescription("device code expired before authorization completed")
		}

		resp, err := request.Exchange(ctx, auth, client, opts...)
		if err == nil {
			return resp, nil
		}
		var target *oauth.Error
		if !errors.As(err, &target) {
			return nil, err
		}
		switch target.ErrorType {
		case oauth.AuthorizationPending:
			continue
		case oauth.SlowDown:
			interval += 5 * time.Second
			continue
		default:
			return nil, err
		}
	}
}
