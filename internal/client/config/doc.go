// Package config loads runtime configuration for the LedgerLock CLI.
//
// Configuration is resolved in three stages, each overriding the previous:
//
//  1. Hardcoded defaults (Config.LoadDefaults).
//  2. An optional JSON file given via -c/-config.
//  3. Command-line flags (-a, -d, -t).
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "10s" or integer nanoseconds.
package config
