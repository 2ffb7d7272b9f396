// Package templates embeds the configuration files mathdex writes when
// initializing a project or a machine.
//
// Both are YAML files in this directory pulled in with go:embed, so
// every build carries them regardless of how it was installed. Editing
// a .yaml here changes what the next build writes.
//
// Layering (resolved by internal/config.Load):
//
//	defaults < user config < project config < MATHDEX_* env vars
package templates

import _ "embed"

// User seeds ~/.config/mathdex/config.yaml, written by 'mathdex config
// init' (or 'mathdex init --global'). It holds the machine-wide
// settings: worker counts, storage location, log level.
//
//go:embed user.yaml
var User string

// Project seeds .mathdex.yaml at the project root, written by 'mathdex
// init'. It holds the settings a team versions with the project:
// document paths, similarity weights, the catalog backend.
//
//go:embed project.yaml
var Project string
