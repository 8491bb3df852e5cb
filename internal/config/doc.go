// Package config loads, normalizes, and validates postgate configuration data.
//
// Values come from repository defaults, an optional TOML file, an optional
// .env file, and the process environment, in increasing precedence. The
// environment variable names match the container deployment
// (APPROVAL_QUEUE_PATH, TELEGRAM_BOT_TOKEN, INSTAGRAM_ACCESS_TOKEN, ...).
//
// Validate only checks internal consistency. Each role calls its Require*
// method at startup so that, for example, the dashboard can run without
// Telegram credentials.
package config
