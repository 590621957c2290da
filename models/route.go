package models

// TwilioConfig holds the carrier credentials bound to an inbound route.
// The auth token is compared in constant time against the token the
// carrier presents on each webhook delivery.
type TwilioConfig struct {
	AccountSID string `json:"account_sid"`
	AuthToken  string `json:"auth_token"`
}

// RouteConfig binds an inbound webhook path to an agent configuration and
// the carrier credentials expected on that path. Routes are written to the
// config store at boot and treated as immutable afterwards; updating a
// route means writing a new record under the same key.
type RouteConfig struct {
	Path   string       `json:"path"`
	Agent  AgentConfig  `json:"agent"`
	Twilio TwilioConfig `json:"twilio"`
}

// Validate checks the fields the router depends on. Agent validation is
// the factory's job; this only guards the routing surface.
func (r RouteConfig) Validate() error {
	if r.Path == "" {
		return errRouteField("path")
	}
	if r.Twilio.AccountSID == "" {
		return errRouteField("twilio.account_sid")
	}
	if r.Twilio.AuthToken == "" {
		return errRouteField("twilio.auth_token")
	}
	return nil
}
