package oauth

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/zitadel/schema"
	"golang.org/x/text/language"
)

const (
	// ScopeOpenID must be present in OpenID Connect authorization requests.
	ScopeOpenID = "openid"

	// ScopeProfile requests access to the end-user's default profile claims.
	ScopeProfile = "profile"

	// ScopeEmail requests access to the email and email_verified claims.
	ScopeEmail = "email"

	// ScopeOfflineAccess requests a refresh token to be issued,
	// usable when the end-user is not present.
	ScopeOfflineAccess = "offline_access"
)

const (
	// ResponseTypeCode for the Authorization Code Flow,
	// returning a code from the authorization endpoint.
	ResponseTypeCode ResponseType = "code"

	// ResponseTypeIDToken for the Implicit Flow,
	// returning id and access tokens directly from the authorization endpoint.
	ResponseTypeIDToken ResponseType = "id_token token"

	// ResponseTypeIDTokenOnly for the Implicit Flow returning only an id token.
	ResponseTypeIDTokenOnly ResponseType = "id_token"
)

const (
	// ResponseModeQuery returns response parameters in the
	// query component of the redirect URI.
	ResponseModeQuery ResponseMode = "query"

	// ResponseModeFragment returns response parameters in the
	// fragment component of the redirect URI.
	ResponseModeFragment ResponseMode = "fragment"
)

const (
	// GrantTypeCode defines the grant_type `authorization_code` used for
	// the token request in the Authorization Code Flow.
	GrantTypeCode GrantType = "authorization_code"

	// GrantTypeRefreshToken defines the grant_type `refresh_token` used
	// to obtain new tokens from a prior refresh token.
	GrantTypeRefreshToken GrantType = "refresh_token"

	// GrantTypeClientCredentials defines the grant_type `client_credentials`
	// used for machine-to-machine token requests.
	GrantTypeClientCredentials GrantType = "client_credentials"

	// GrantTypeDeviceCode defines the grant_type `urn:ietf:params:oauth:grant-type:device_code`
	// used in the Device Authorization Grant (RFC 8628).
	GrantTypeDeviceCode GrantType = "urn:ietf:params:oauth:grant-type:device_code"

	// GrantTypeTokenExchange defines the grant_type `urn:ietf:params:oauth:grant-type:token-exchange`
	// used for the OAuth Token Exchange Grant (RFC 8693).
	GrantTypeTokenExchange GrantType = "urn:ietf:params:oauth:grant-type:token-exchange"

	// GrantTypeBearer defines the grant_type `urn:ietf:params:oauth:grant-type:jwt-bearer`
	// used for the JWT Authorization Grant.
	GrantTypeBearer GrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// ClientAssertionTypeJWTAssertion is the client_assertion_type for
	// JWT based client authentication on the token endpoint.
	ClientAssertionTypeJWTAssertion = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

	// BearerToken is the token_type returned in a successful token response.
	BearerToken = "Bearer"
)

const (
	DisplayPage  Display = "page"
	DisplayPopup Display = "popup"
	DisplayTouch Display = "touch"
	DisplayWAP   Display = "wap"
)

const (
	// PromptNone disallows the authorization server to display any
	// authentication or consent user interface pages.
	PromptNone = "none"

	// PromptLogin directs the authorization server to prompt the
	// end-user for reauthentication.
	PromptLogin = "login"

	// PromptConsent directs the authorization server to prompt the
	// end-user for consent.
	PromptConsent = "consent"

	// PromptSelectAccount directs the authorization server to prompt the
	// end-user to select a user account.
	PromptSelectAccount = "select_account"
)

type GrantType string

type ResponseType string

// ResponseMode defines in which component of the redirect URI the
// authorization response parameters are transported.
type ResponseMode string

type Display string

func (d *Display) UnmarshalText(text []byte) error {
	display := Display(text)
	switch display {
	case DisplayPage, DisplayPopup, DisplayTouch, DisplayWAP:
		*d = display
	}
	return nil
}

// SpaceDelimitedArray is an array of strings transported as a single
// space-delimited string, as used for `scope` and `prompt` values.
type SpaceDelimitedArray []string

func (s SpaceDelimitedArray) String() string {
	return strings.Join(s, " ")
}

func (s *SpaceDelimitedArray) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*s = nil
		return nil
	}
	*s = strings.Split(string(text), " ")
	return nil
}

func (s SpaceDelimitedArray) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s SpaceDelimitedArray) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *SpaceDelimitedArray) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	if str == "" {
		*s = nil
		return nil
	}
	*s = strings.Split(str, " ")
	return nil
}

func (s SpaceDelimitedArray) Value() (driver.Value, error) {
	return s.String(), nil
}

func (s *SpaceDelimitedArray) Scan(src any) error {
	if src == nil {
		*s = nil
		return nil
	}
	switch v := src.(type) {
	case string:
		if len(v) == 0 {
			*s = SpaceDelimitedArray{}
		} else {
			*s = strings.Split(v, " ")
		}
	case []byte:
		if len(v) == 0 {
			*s = SpaceDelimitedArray{}
		} else {
			*s = strings.Split(string(v), " ")
		}
	default:
		return fmt.Errorf("cannot convert %T to SpaceDelimitedArray", src)
	}
	return nil
}

// Audience is the `aud` claim, which may be transported as a single
// string or as an array of strings. It always unmarshals to an array.
type Audience []string

func (a *Audience) UnmarshalJSON(text []byte) error {
	var i any
	if err := json.Unmarshal(text, &i); err != nil {
		return err
	}
	switch aud := i.(type) {
	case []any:
		*a = make([]string, len(aud))
		for i, audience := range aud {
			s, ok := audience.(string)
			if !ok {
				return fmt.Errorf("audience element %d is %T, expected string", i, audience)
			}
			(*a)[i] = s
		}
	case string:
		*a = []string{aud}
	default:
		return fmt.Errorf("cannot unmarshal %T into audience", i)
	}
	return nil
}

func (a Audience) MarshalJSON() ([]byte, error) {
	if len(a) == 1 {
		return json.Marshal(a[0])
	}
	return json.Marshal([]string(a))
}

// Locales is a list of BCP47 language tags, transported space-delimited
// as the `ui_locales` parameter. Tags which fail to parse are dropped.
type Locales []language.Tag

func (l *Locales) UnmarshalText(text []byte) error {
	locales := strings.Split(string(text), " ")
	for _, locale := range locales {
		tag, err := language.Parse(locale)
		if err == nil && !tag.IsRoot() {
			*l = append(*l, tag)
		}
	}
	return nil
}

func (l Locales) MarshalText() ([]byte, error) {
	tags := make([]string, len(l))
	for i, tag := range l {
		tags[i] = tag.String()
	}
	return []byte(strings.Join(tags, " ")), nil
}

// Time is a [time.Time] transported as unix seconds in JSON,
// as used for the `exp`, `iat` and `auth_time` claims.
type Time time.Time

func (t *Time) UnmarshalJSON(data []byte) error {
	var i int64
	if err := json.Unmarshal(data, &i); err != nil {
		return err
	}
	*t = Time(time.Unix(i, 0).UTC())
	return nil
}

func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Unix())
}

func (t Time) AsTime() time.Time {
	return time.Time(t)
}

func FromTime(t time.Time) Time {
	return Time(t.Round(time.Second).UTC())
}

// NewEncoder returns a form encoder which serializes
// SpaceDelimitedArray values into single space-delimited fields.
func NewEncoder() *schema.Encoder {
	e := schema.NewEncoder()
	e.RegisterEncoder(SpaceDelimitedArray{}, func(value reflect.Value) string {
		return value.Interface().(SpaceDelimitedArray).String()
	})
	e.RegisterEncoder(Locales{}, func(value reflect.Value) string {
		text, _ := value.Interface().(Locales).MarshalText()
		return string(text)
	})
	return e
}
