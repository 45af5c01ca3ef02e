package audit

import (
	"github.com/labstack/echo/v4"
)

// GetIPAddress extracts the real IP address from request
func GetIPAddress(c echo.Context) string {
	if ip := c.Request().Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := c.Request().Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return c.RealIP()
}

// GetRequestContext extracts common request context from Echo context
func GetRequestContext(c echo.Context) (ipAddress, userAgent string) {
	return GetIPAddress(c), c.Request().UserAgent()
}
