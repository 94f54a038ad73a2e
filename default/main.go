// Package defaults provides embedded default assets: the system prompt
// template used to build backend queries, and the default middleware
// policy document.
package defaults

import _ "embed"

//go:embed default_prompt.md
var DefaultPrompt string

//go:embed default_policy.toml
var DefaultPolicyTOML []byte
