// Package config loads posttree settings from TOML.
//
// # Configuration Discovery
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/posttree/config.toml
//  3. If the file doesn't exist, use defaults
//  4. Empty or zero fields keep their defaults
//
// # TOML Format
//
//	api_url = "http://localhost:3000"
//	page_size = 25
//	poll_interval = "3m"
//	log_dir = "~/.local/state/posttree"
//	log_level = "info"
//
// Every field is optional. When api_url is empty the POSTTREE_APP_URL
// environment variable is consulted before falling back to
// http://localhost:3000. page_size is capped at 100. poll_interval is a Go
// duration string. Tilde expansion is performed on log_dir.
//
// # Error Handling
//
// Missing files are not an error. Unreadable files, invalid TOML, a negative
// page_size and unparsable or non-positive poll_interval values are.
package config
