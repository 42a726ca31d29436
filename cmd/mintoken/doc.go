// Command mintoken issues and checks identity tokens for the media
// converter, and reports conversion status from its database.
//
// Usage:
//
//	mintoken sign <user-id> [--tier user|admin] [--ttl 24h]
//	mintoken verify <token>
//	mintoken status
//
// The signing secret is read from JWT_SECRET. When it is unset and stdin is
// a terminal, the secret is prompted for without echo.
//
// Environment:
//
//	JWT_SECRET   - HMAC secret shared with the server
//	DATABASE_DIR - Path to database directory (default: /data/db)
package main
