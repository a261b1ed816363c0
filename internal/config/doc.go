// Package config loads runtime settings from the environment.
//
// Values come from process environment variables, optionally seeded from a
// .env file in the working directory, and are mapped onto Config through
// caarlos0/env struct tags. Command-line flags override individual fields
// after loading.
package config
