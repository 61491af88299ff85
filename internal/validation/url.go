// Package validation checks user-supplied values before they are persisted.
package validation

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrInvalidURL is wrapped by every rejection from ArticleURLValidator.
var ErrInvalidURL = errors.New("invalid URL")

// ArticleURLValidator validates links to articles before they are stored
// and later handed back to clients.
type ArticleURLValidator struct {
	// AllowLocalhost determines if localhost URLs are permitted
	AllowLocalhost bool
	// AllowPrivateIPs determines if private IP addresses are permitted
	AllowPrivateIPs bool
	// MaxLength is the maximum allowed URL length
	MaxLength int
}

// NewArticleURLValidator creates a new validator with secure defaults
func NewArticleURLValidator() *ArticleURLValidator {
	return &ArticleURLValidator{
		AllowLocalhost:  false,
		AllowPrivateIPs: false,
		MaxLength:       2048,
	}
}

// NewPermissiveArticleURLValidator allows local and private hosts, for
// development and tests.
func NewPermissiveArticleURLValidator() *ArticleURLValidator {
	return &ArticleURLValidator{
		AllowLocalhost:  true,
		AllowPrivateIPs: true,
		MaxLength:       2048,
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidURL, fmt.Sprintf(format, args...))
}

// ValidateAndNormalize validates an absolute http(s) URL and returns it with
// a lower-cased scheme and host and without fragment.
func (v *ArticleURLValidator) ValidateAndNormalize(input string) (string, error) {
	input = strings.TrimSpace(input)

	if input == "" {
		return "", invalid("URL cannot be empty")
	}
	if len(input) > v.MaxLength {
		return "", invalid("URL too long (max %d characters)", v.MaxLength)
	}
	if strings.ContainsAny(input, "<>\"'` ") {
		return "", invalid("URL contains invalid characters")
	}

	parsedURL, err := url.Parse(input)
	if err != nil {
		return "", invalid("malformed URL")
	}

	parsedURL.Scheme = strings.ToLower(parsedURL.Scheme)
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", invalid("URL must use http or https protocol")
	}
	if parsedURL.Host == "" {
		return "", invalid("URL must have a valid hostname")
	}
	parsedURL.Host = strings.ToLower(parsedURL.Host)

	if err := v.validateHost(parsedURL.Host); err != nil {
		return "", err
	}

	if strings.Contains(strings.ToLower(parsedURL.RawQuery), "javascript:") ||
		strings.Contains(strings.ToLower(parsedURL.RawQuery), "<script") {
		return "", invalid("suspicious query parameters detected")
	}

	parsedURL.Fragment = ""
	parsedURL.RawFragment = ""
	return parsedURL.String(), nil
}

// ValidateOptional is ValidateAndNormalize for fields that may be empty.
func (v *ArticleURLValidator) ValidateOptional(input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", nil
	}
	return v.ValidateAndNormalize(input)
}

func (v *ArticleURLValidator) validateHost(host string) error {
	hostname := host
	if strings.Contains(host, ":") {
		var err error
		hostname, _, err = net.SplitHostPort(host)
		if err != nil {
			return invalid("invalid host format")
		}
	}

	if !v.AllowLocalhost && isLocalhost(hostname) {
		return invalid("localhost URLs are not permitted")
	}

	if !v.AllowPrivateIPs {
		if ip := net.ParseIP(hostname); ip != nil && isPrivateIP(ip) {
			return invalid("private IP addresses are not permitted")
		}
	}

	if hostname == "0.0.0.0" || hostname == "255.255.255.255" {
		return invalid("unroutable host")
	}

	return nil
}

// isLocalhost checks if a hostname refers to localhost
func isLocalhost(hostname string) bool {
	return hostname == "localhost" ||
		hostname == "127.0.0.1" ||
		hostname == "::1" ||
		strings.HasSuffix(hostname, ".localhost")
}

var privateBlocks = func() []*net.IPNet {
	var blocks []*net.IPNet
	for _, cidr := range []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"169.254.0.0/16",
		"127.0.0.0/8",
		"fc00::/7",
		"fe80::/10",
	} {
		_, block, err := net.ParseCIDR(cidr)
		if err == nil {
			blocks = append(blocks, block)
		}
	}
	return blocks
}()

func isPrivateIP(ip net.IP) bool {
	for _, block := range privateBlocks {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}
