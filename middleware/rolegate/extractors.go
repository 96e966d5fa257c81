package rolegate

import (
	"strings"

	"github.com/goliatone/go-router"
)

// TokenExtractor pulls a raw bearer token out of the request.
type TokenExtractor func(c router.Context) (string, error)

// GetExtractors parses a lookup expression of the form
// "header:X-Auth-Token,header:Authorization,cookie:jwt,query:auth_token".
// The Authorization header carries a scheme prefix; every other source is a
// raw token.
func GetExtractors(tokenLookup string, authSchemes ...string) []TokenExtractor {
	extractors := make([]TokenExtractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 {
		authScheme = authSchemes[0]
	}

	rootParts := strings.Split(tokenLookup, ",")
	for _, rootPart := range rootParts {
		parts := strings.Split(strings.TrimSpace(rootPart), ":")
		if len(parts) != 2 {
			continue
		}

		for i, el := range parts {
			parts[i] = strings.TrimSpace(el)
		}

		switch parts[0] {
		case "header":
			if strings.EqualFold(parts[1], router.HeaderAuthorization) {
				extractors = append(extractors, tokenFromSchemeHeader(parts[1], authScheme))
			} else {
				extractors = append(extractors, tokenFromHeader(parts[1]))
			}
		case "query":
			extractors = append(extractors, tokenFromQuery(parts[1]))
		case "cookie":
			extractors = append(extractors, tokenFromCookie(parts[1]))
		}
	}

	return extractors
}

// ExtractRawToken runs the extractors in order and returns the first hit.
func ExtractRawToken(ctx router.Context, extractors []TokenExtractor) (string, error) {
	var raw string
	var err error

	for _, extractor := range extractors {
		raw, err = extractor(ctx)
		if raw != "" && err == nil {
			break
		}
	}

	return raw, err
}

// tokenFromHeader reads the header value verbatim, the way the legacy
// X-Auth-Token header carries it.
func tokenFromHeader(header string) TokenExtractor {
	return func(c router.Context) (string, error) {
		token := strings.TrimSpace(c.GetString(header, ""))
		if token == "" {
			return "", ErrMissingToken
		}
		return token, nil
	}
}

// tokenFromSchemeHeader strips the auth scheme prefix, e.g. "Bearer ".
func tokenFromSchemeHeader(header, authScheme string) TokenExtractor {
	return func(c router.Context) (string, error) {
		a := c.GetString(header, "")
		authScheme = strings.TrimSpace(authScheme)
		l := len(authScheme)
		if l == 0 {
			return strings.TrimSpace(a), nil
		}
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) {
			return strings.TrimSpace(a[l:]), nil
		}
		return "", ErrMissingToken
	}
}

func tokenFromQuery(param string) TokenExtractor {
	return func(c router.Context) (string, error) {
		token := c.Query(param, "")
		if token == "" {
			return "", ErrMissingToken
		}
		return token, nil
	}
}

func tokenFromCookie(name string) TokenExtractor {
	return func(c router.Context) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrMissingToken
		}
		return token, nil
	}
}
