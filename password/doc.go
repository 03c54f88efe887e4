// Package password hashes and verifies account passwords with Argon2id.
//
// Hashes use the PHC string layout so parameters travel with the hash:
//
//	$argon2id$v=19$m=<memory KiB>,t=<passes>,p=<lanes>$<salt>$<key>
//
// A [Hasher] reports through [Hasher.NeedsRehash] when a stored hash was
// produced with weaker parameters than the current ones, so the login flow
// can upgrade it after a successful verification.
//
// This package never stores passwords and never logs them.
package password
