package interfaces

import "context"

// IdentityBinder grants a team's workload a cloud identity with access to its secrets.
type IdentityBinder interface {
	// EnsureServiceAccount creates (or reuses) the team's cloud service account and
	// returns its email.
	EnsureServiceAccount(ctx context.Context, team string) (string, error)

	// GrantSecretAccess grants the service account read access to the challenge secrets.
	GrantSecretAccess(ctx context.Context, team, email string) error

	// BindWorkloadIdentity lets the team namespace's default Kubernetes service account
	// act as the cloud service account.
	BindWorkloadIdentity(ctx context.Context, team, email string) error
}
