// Package config loads server settings from YAML and the environment.
//
// Lookup order for the file: $MINDMUP_CONFIG, then config/<env>.yaml where
// env comes from $ENV (default "local"). A missing per-environment file is
// not an error. MINDMUP_* variables override file values, then defaults fill
// the rest and the result is validated.
package config
