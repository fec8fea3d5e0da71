package main

import (
	"fmt"
	"os"
	"strings"
)

// cspPolicy returns the Content Security Policy for every response. Charts
// are inline SVG images served from this origin, so nothing external is
// allowed.
func cspPolicy() string {
	directives := []string{
		"default-src 'self'",
		"script-src 'self'",
		// SVG charts carry presentation attributes only; the page uses one
		// inline style block.
		fmt.Sprintf("style-src %s", strings.Join([]string{"'self'", "'unsafe-inline'"}, " ")),
		"img-src 'self' data:",
		"font-src 'self'",
		"connect-src 'self'",
		"frame-ancestors 'none'",
		"object-src 'none'",
		"base-uri 'self'",
		"form-action 'self'",
		"media-src 'none'",
	}

	if os.Getenv("PRODUCTION") == "true" {
		directives = append(directives, "upgrade-insecure-requests")
	}
	return strings.Join(directives, "; ")
}
