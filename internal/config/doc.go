// Package config loads, normalizes, and validates newsflow configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML or YAML files, and honours environment fallbacks such
// as OPENROUTER_API_KEY, TG_TOKEN, TG_CHAT_ID, and FEED1_URL. The Config type
// centralizes every knob the stage workers and CLI need so that store
// location, artifact directory, and tick interval are discovered in one pass.
//
// Credentials that only one stage needs are checked with ValidateStage when
// that stage is started, so a downloader can run without Telegram settings.
package config
