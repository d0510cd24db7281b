// Package config loads runtime configuration for the Agita client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via flags: -c or -config.
//  3. Environment variables (AGITA_*), parsed with caarlos0/env.
//  4. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-u, --store-url string   base URL of the hosted store
//	-k, --store-key string   store API key
//	-t, --token string       user access token (JWT)
//	-l, --local-db string    path of the local preferences database
//
// A StoreURL of "memory://" runs against an in-process store seeded with
// demo data; nothing leaves the machine.
//
// # JSON schema
//
// Durations are strings accepted by time.ParseDuration:
//
//	{
//	  "store_url": "https://xyz.supabase.co",
//	  "store_key": "anon-key",
//	  "request_timeout": "15s",
//	  "profile_stale_after": "5m"
//	}
//
// StoreURL and StoreKey are mandatory; LoadConfig fails with
// common.ErrMissingConfig when either is empty after all sources are applied.
package config
