// Package auth handles request authentication: HS256 JWT issue and
// verification, bcrypt password hashing, and the HTTP bearer middleware
// that resolves tokens to store users. Verification fails closed: any
// decode error, unknown subject, or inactive account rejects the request.
package auth
