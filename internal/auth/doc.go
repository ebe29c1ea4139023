// Package auth provides authentication for amity-gateway.
//
// # Tokens
//
// Every caller authenticates with an HS256 JWT whose "sub" claim carries the
// user ID. Tokens are signed with the configured jwt_secret:
//
//	verifier := auth.NewJWTVerifier(secret)
//	token, err := verifier.Generate(userID, 24*time.Hour)
//	userID, err := verifier.Verify(token)
//
// # Request Identity
//
// HTTPAuthMiddleware validates the bearer token, confirms the user row
// exists, and attaches an AuthContext to the request context:
//
//	authCtx := auth.FromContext(r.Context())
//
// The live channel performs the same verification on its auth frame, so a
// single identity model covers both transports.
package auth
