// Package notifications reports publisher outcomes to the operator.
//
// The default implementation sends Telegram messages to the admin chat
// through the same bot token the command bot uses, and degrades to a no-op
// when no token or admin id is configured. Publisher code depends only on the
// Service interface.
package notifications
