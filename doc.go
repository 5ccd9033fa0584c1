// Package auth provides user authentication backed by opaque access tokens
// stored in SQL (Bun), plus role administration, bulk provisioning and the
// mail hooks fired by password reset requests.
//
// Sessions:
//   - SessionManager signs users in with a username or email and a password,
//     minting an AccessToken with a configurable TTL. Failures are reported as
//     result codes (noUsername, noPassword, loginFailed) and the cause is only
//     logged.
//   - Sign out destroys the presented token, or every token of the user when
//     RemoveAllAccessTokens is set. Change password and sign out authenticate
//     the bearer token through TokenValidator first.
//
// Roles and provisioning:
//   - RoleAdministrator grants and revokes roles by name. Unknown roles and
//     users surface as NO_SUCH_ROLE and NO_SUCH_USER errors.
//   - RoleGuard restricts the HTTP role routes to callers whose token
//     belongs to a user holding the admin role.
//   - Provisioner upserts users from a ProvisionItem list, filling defaults
//     for absent fields and resynchronizing each user's roles. Every item is
//     reported in its own ProvisionResult.
//
// Password resets:
//   - RequestPasswordResetHandler mints a short lived token and hands it to
//     listeners such as NotificationHooks, which mails the reset link.
//     FinalizePasswordResetHandler consumes that token exactly once.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter. Sinks run best-effort
//     (errors are logged) so events can be forwarded to a database or queue
//     without blocking authentication.
package auth
