package service

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// sanitizeText drops markup the policy disallows and returns the remaining text unescaped.
// Stored text is served as JSON, so entities such as &amp; must not reach the client.
func sanitizeText(policy *bluemonday.Policy, value string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(value)))
}
