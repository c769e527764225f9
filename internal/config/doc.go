// Package config loads skiff's TOML configuration.
//
// # Resolution
//
//  1. The path passed to Load, or ~/.config/skiff/config.toml
//  2. A missing file yields defaults
//  3. SKIFF_* environment variables override file values
//  4. Empty or whitespace-only values fall back to defaults
//
// # Fields
//
//	api_bind            = "127.0.0.1:7487"   # SKIFF_API_BIND
//	storage             = "sqlite"           # sqlite | file | memory, SKIFF_STORAGE
//	cache_path          = "~/.local/share/skiff/cache.db"  # SKIFF_CACHE_PATH
//	cache_max_age_hours = 168                # sqlite only; 0 keeps everything
//	refresh_delay_ms    = 50                 # SKIFF_REFRESH_DELAY (duration, e.g. "75ms")
//	theme               = "Nightfox"             # SKIFF_THEME
//
//	[[watch]]
//	name          = "me"
//	method        = "GET"
//	path          = "/v1/users/[id]"
//	query_key     = ["user", 7]
//	params        = { id = 7 }
//	request       = { expand = "teams" }
//	every_seconds = 30
//
// The default cache_path depends on storage: cache.db for sqlite and
// cache.toml for file. Tilde expansion is applied to every path.
package config
