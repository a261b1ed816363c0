// Package google provides OAuth2 credentials for the Gmail API.
//
// Credentials live in an authorized-user token file (token.json) holding the
// access token, refresh token, token endpoint and client credentials. The
// token source returned by NewTokenSource refreshes expired access tokens and
// writes every refreshed token back to the file, so a restarted process picks
// up where the previous one left off.
package google
