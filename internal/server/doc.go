// Package server provides the HTTP surface of newsletterpost: the Pub/Sub
// push endpoint that triggers the pipeline, health checks and a separate
// Prometheus metrics server.
//
// # Endpoints
//
//   - POST /mail_payload: Gmail push notifications delivered by Pub/Sub.
//     Answers 200 when the run published or skipped the newsletter and 500
//     when it failed, so Pub/Sub redelivers.
//   - POST /webhooks: accepts and ignores any payload.
//   - /healthz, /readyz, /healthz/detailed: Kubernetes health checks.
//
// # Security
//
// Pub/Sub push subscriptions can append a shared secret to the endpoint URL
// (?token=...). When PushToken is configured, requests without the matching
// token are rejected with 401. A global token bucket limits how often the
// pipeline can be triggered; excess requests get 429.
package server
