package auth

// Verifier checks a bearer token issued by the external sign-in service and
// returns the identity it carries. JWTManager is the HMAC implementation;
// tests and other deployments can plug in their own.
type Verifier interface {
	Validate(token string) (*Claims, error)
}

var _ Verifier = (*JWTManager)(nil)
