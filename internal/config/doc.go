// Package config handles configuration loading, parsing, and validation
// from environment variables and an optional config file. It provides type-safe
// access to the settings needed by the dispatcher, the chat gateway client and
// the provisioner while keeping configuration details separate from queue logic.
package config
