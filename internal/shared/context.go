package shared

import "context"

type claimsContextKey struct{}

// Claims is the decoded payload of the caller's access token.
type Claims map[string]any

// ContextWithClaims stores the authenticated caller's claims in context.
func ContextWithClaims(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext extracts the caller's claims from context.
func ClaimsFromContext(ctx context.Context) Claims {
	claims, _ := ctx.Value(claimsContextKey{}).(Claims)
	return claims
}
