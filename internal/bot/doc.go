// Package bot implements the Telegram command surface.
//
// The bot is the producer and decision front end: /create generates content
// and queues it for approval, /pending lists pending items with inline
// approve/reject buttons, and /approve and /reject decide by id. Research and
// market commands call the text generator directly without touching the
// queue. Only chats listed in telegram.allowed_chats may issue commands.
//
// Updates are handled concurrently with a small bound; every handler answers
// the user, and failures are logged and reported as a generic error reply.
package bot
