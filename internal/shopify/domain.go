package shopify

import (
	"fmt"
	"regexp"
	"strings"
)

var shopDomainRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*\.myshopify\.com$`)

// NormalizeShopDomain canonicalizes a merchant-supplied shop identifier to
// the <name>.myshopify.com form. Bare store names get the suffix appended.
func NormalizeShopDomain(shop string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(shop))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimSuffix(s, "/")
	if s == "" {
		return "", fmt.Errorf("empty shop domain")
	}
	if !strings.Contains(s, ".") {
		s += ".myshopify.com"
	}
	if !shopDomainRe.MatchString(s) {
		return "", fmt.Errorf("invalid shop domain %q (expected like your-store.myshopify.com)", shop)
	}
	return s, nil
}

func IsValidShopDomain(shop string) bool {
	return shopDomainRe.MatchString(shop)
}
