// middleware/wallet_context.go
package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// WalletContextMiddleware extracts the caller's wallet address from the
// X-Viewer-Address header (or ?viewer= fallback), normalizes it, and stashes
// it in locals. Read paths use it for the submission visibility policy; an
// absent address just means an anonymous viewer.
func WalletContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		viewer := c.Get("X-Viewer-Address")
		if viewer == "" {
			viewer = c.Query("viewer")
		}
		c.Locals("viewer_address", strings.ToLower(strings.TrimSpace(viewer)))
		return c.Next()
	}
}

// ViewerAddress returns the normalized viewer wallet set by
// WalletContextMiddleware, or "" for anonymous requests.
func ViewerAddress(c *fiber.Ctx) string {
	if v, ok := c.Locals("viewer_address").(string); ok {
		return v
	}
	return ""
}
