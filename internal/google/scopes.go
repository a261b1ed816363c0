package google

import gmail "google.golang.org/api/gmail/v1"

// DefaultScopes are requested when no scope is configured. Reading the label,
// listing messages and registering a watch all work with read-only access.
var DefaultScopes = []string{
	gmail.GmailReadonlyScope,
}

// DefaultRedirectURL is the loopback redirect used by the interactive
// authorization flow. The browser lands on an unreachable page whose URL
// carries the authorization code.
const DefaultRedirectURL = "http://localhost"
