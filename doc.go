// Package access provides the authentication and posting-permission layer for
// the calendar service: credential verification, JWT issuance and refresh,
// request guards, and the access-request approval workflow.
//
// Tokens:
//   - Access tokens are short lived HS256 JWTs carrying the user id, email and
//     role. Refresh tokens are signed with a separate secret and tagged with
//     token_type=refresh so the two can never be swapped for each other.
//   - Refresh tokens are not rotated on use; a stolen refresh token stays
//     valid until it expires. Revocation requires rotating the refresh secret.
//
// Permissions:
//   - Role and hasPostingAccess are authorization inputs, read live from the
//     database on every protected request. Claims embedded in a token are
//     identification only and may be stale.
//   - Posting access is granted either at registration (doctors and admins) or
//     by an admin approving an access request. Approval couples the request
//     status flip and the user flag grant in a single transaction.
package access
