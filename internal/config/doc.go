// Package config loads agentleads settings.
//
// Settings are merged from, lowest to highest precedence: built-in defaults,
// an optional TOML file, the process environment (which LoadDotEnv may have
// populated from a .env file without overriding real variables), and finally
// command-line flags applied by the caller.
package config
