// Package cryptox holds the cryptographic primitives of the credential
// subsystem:
//
//   - PasswordHasher: salted, slow one-way password digests (argon2id, with
//     verification of legacy bcrypt digests) and the password strength policy.
//   - SecretCipher: authenticated encryption of at-rest secrets (AES-256-GCM)
//     under a single 32-byte master key, producing self-describing tokens.
//   - master key helpers: parsing, generation and encoding of the key, and
//     masking of secrets for display.
//
// Nothing in this package logs or persists its inputs.
package cryptox
