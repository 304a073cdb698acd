// Package sec provides authentication and security primitives for the notes
// front-end and the local backend.
//
// # Tokens
//
// Access and refresh tokens are random, URL-safe strings. Only their SHA-256
// digests are ever persisted, so a leaked database does not leak usable
// sessions. Magic link secrets are short lived but emailed in the clear, so
// they are bcrypt hashed like passwords.
//
// # Components
//
//   - [NewToken], [TokenDigest]: random tokens and their storage digests
//   - [JoinToken], [SplitToken]: "<id>.<secret>" composite tokens
//   - [HashPassword], [ComparePassword]: bcrypt hashing utilities
//   - [WithSession], [SessionFrom]: context accessors for the authenticated session
package sec
