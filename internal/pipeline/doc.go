// Package pipeline turns the newest newsletter in a Gmail label into a
// LinkedIn post.
//
// A run walks these stages in order, each with its own span, duration
// metric and log lines tagged with the run ID:
//
//	mailbox   resolve the label and pick the newest message
//	dedupe    skip messages the ledger already published or skipped
//	extract   find the "Top News" title, link and image in the HTML body
//	image     download the image (optional; failures fall back to text-only)
//	article   download the article and reduce it to visible text
//	generate  have the LLM write the post
//	format    convert markdown emphasis to LinkedIn-safe Unicode
//	publish   register, upload and create the LinkedIn post
//	record    store the outcome in the ledger
//
// Runs are serialized: Pub/Sub may deliver several notifications for the
// same mailbox change at once, and only one of them should publish.
package pipeline
