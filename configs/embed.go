// Package configs provides the embedded configuration template for
// inkdex.
//
// The template is embedded at build time with //go:embed so it ships in
// every distribution. 'inkdex config init' writes it to
// ~/.config/inkdex/config.yaml (or $XDG_CONFIG_HOME/inkdex/config.yaml
// when XDG_CONFIG_HOME is set).
//
// Precedence when the daemon loads configuration (see internal/config):
//  1. Built-in defaults
//  2. User config file
//  3. INKDEX_* environment variables
//
// To modify the template, edit the .yaml file in this directory and
// rebuild.
package configs

import _ "embed"

// UserConfigTemplate is the commented starting point for the user
// configuration file, written by 'inkdex config init'.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string
