// Package identity encrypts user identifiers so they can travel through
// URLs and the OAuth state parameter without exposing the raw value.
//
// Encrypted identities have the form hex(iv) ":" hex(ciphertext) with a
// 16-byte IV. The AES-256 key is derived once from an operator secret with
// scrypt (N=16384, r=8, p=1) and a fixed salt, so every process configured
// with the same secret can decrypt what any other produced.
//
// Two modes share that wire shape:
//
//   - ModeGCM (default): AES-256-GCM with a 16-byte nonce. Any modification
//     of the IV or ciphertext is detected.
//   - ModeCBC: AES-256-CBC with PKCS#7 padding. Decrypts identifiers issued
//     by the older tooling. Tampering is only caught when it breaks padding.
package identity
