// Package content turns an article into a LinkedIn post draft.
//
// A Generator drives a small tool-using agent against an OpenAI-compatible
// chat completions endpoint (Groq by default). The model may call the
// perplexity_search tool to look up context, trending hashtags and keywords
// before it writes the post. The number of model calls per draft is capped;
// the last call must answer without tools.
package content
