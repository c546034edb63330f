// Package cloud binds team workloads to cloud provider identities.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/go-logr/logr"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	iam "google.golang.org/api/iam/v1"
	"google.golang.org/api/option"
	secretmanager "google.golang.org/api/secretmanager/v1"

	"github.com/dc-tec/wrongsecrets-balancer/internal/builder"
	"github.com/dc-tec/wrongsecrets-balancer/internal/config"
	operatorerrors "github.com/dc-tec/wrongsecrets-balancer/internal/errors"
	"github.com/dc-tec/wrongsecrets-balancer/internal/interfaces"
	"github.com/dc-tec/wrongsecrets-balancer/internal/team"
)

var _ interfaces.IdentityBinder = (*GCPIdentityBinder)(nil)

const (
	cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

	// RoleSecretAccessor lets a team identity read the challenge secrets.
	RoleSecretAccessor = "roles/secretmanager.secretAccessor"
	// RoleWorkloadIdentityUser lets the team's default Kubernetes service account act as
	// the Google service account.
	RoleWorkloadIdentityUser = "roles/iam.workloadIdentityUser"

	// GCPSecretCount is the number of Secret Manager secrets every team may read.
	GCPSecretCount = 3
)

// GCPIdentityBinder creates a Google service account per team and grants it access to the
// challenge secrets through workload identity.
//
// The objects it creates live at project level and are not removed when a team is deleted.
type GCPIdentityBinder struct {
	iam     *iam.Service
	secrets *secretmanager.Service
	cfg     config.GCP
	logger  logr.Logger
}

// NewGCPIdentityBinder builds a binder for cfg. Without an explicit endpoint the
// application default credentials are used.
func NewGCPIdentityBinder(ctx context.Context, logger logr.Logger, cfg config.GCP) (*GCPIdentityBinder, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("gcp project id is required")
	}

	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts,
			option.WithEndpoint(normalizeEndpoint(cfg.Endpoint)),
			option.WithoutAuthentication(),
		)
	} else {
		creds, err := google.FindDefaultCredentials(ctx, cloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("failed to get GCP default credentials: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	}

	iamService, err := iam.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create IAM client: %w", err)
	}
	secretsService, err := secretmanager.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}

	return &GCPIdentityBinder{
		iam:     iamService,
		secrets: secretsService,
		cfg:     cfg,
		logger:  logger.WithName("gcp-identity"),
	}, nil
}

// EnsureServiceAccount creates the team's Google service account and returns its email.
// An existing account is reused.
func (b *GCPIdentityBinder) EnsureServiceAccount(ctx context.Context, teamName string) (string, error) {
	email := builder.GCPServiceAccountEmail(b.cfg.ProjectID, teamName)
	req := &iam.CreateServiceAccountRequest{
		AccountId: builder.GCPServiceAccountID(teamName),
		ServiceAccount: &iam.ServiceAccount{
			DisplayName: "WrongSecrets " + team.Namespace(teamName),
		},
	}

	sa, err := b.iam.Projects.ServiceAccounts.Create("projects/"+b.cfg.ProjectID, req).Context(ctx).Do()
	switch {
	case err == nil:
		if sa.Email != "" {
			email = sa.Email
		}
		b.logger.Info("Created Google service account", "team", teamName, "email", email)
		return email, nil
	case googleStatus(err) == http.StatusConflict:
		b.logger.V(1).Info("Google service account already exists", "team", teamName, "email", email)
		return email, nil
	default:
		return "", fmt.Errorf("failed to create Google service account for team %s: %w", teamName, classifyGoogle(err))
	}
}

// GrantSecretAccess grants the secret accessor role on every challenge secret to email.
func (b *GCPIdentityBinder) GrantSecretAccess(ctx context.Context, teamName, email string) error {
	member := "serviceAccount:" + email
	for n := 1; n <= GCPSecretCount; n++ {
		resource := fmt.Sprintf("projects/%s/secrets/%s", b.cfg.ProjectID, builder.GCPSecretName(n))

		policy, err := b.secrets.Projects.Secrets.GetIamPolicy(resource).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to read IAM policy of %s: %w", resource, classifyGoogle(err))
		}

		var bindings []binding
		for _, bnd := range policy.Bindings {
			bindings = append(bindings, binding{role: bnd.Role, members: bnd.Members})
		}
		updated, changed := addMember(bindings, RoleSecretAccessor, member)
		if !changed {
			continue
		}

		policy.Bindings = policy.Bindings[:0]
		for _, bnd := range updated {
			policy.Bindings = append(policy.Bindings, &secretmanager.Binding{Role: bnd.role, Members: bnd.members})
		}
		if _, err := b.secrets.Projects.Secrets.SetIamPolicy(resource, &secretmanager.SetIamPolicyRequest{
			Policy: policy,
		}).Context(ctx).Do(); err != nil {
			return fmt.Errorf("failed to update IAM policy of %s: %w", resource, classifyGoogle(err))
		}
		b.logger.V(1).Info("Granted secret access", "team", teamName, "secret", resource)
	}
	return nil
}

// BindWorkloadIdentity lets the team namespace's default Kubernetes service account
// impersonate the Google service account email.
func (b *GCPIdentityBinder) BindWorkloadIdentity(ctx context.Context, teamName, email string) error {
	resource := fmt.Sprintf("projects/%s/serviceAccounts/%s", b.cfg.ProjectID, email)
	member := fmt.Sprintf("serviceAccount:%s[%s/default]", b.cfg.IdentityPool(), team.Namespace(teamName))

	policy, err := b.iam.Projects.ServiceAccounts.GetIamPolicy(resource).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to read IAM policy of %s: %w", resource, classifyGoogle(err))
	}

	var bindings []binding
	for _, bnd := range policy.Bindings {
		bindings = append(bindings, binding{role: bnd.Role, members: bnd.Members})
	}
	updated, changed := addMember(bindings, RoleWorkloadIdentityUser, member)
	if !changed {
		return nil
	}

	policy.Bindings = policy.Bindings[:0]
	for _, bnd := range updated {
		policy.Bindings = append(policy.Bindings, &iam.Binding{Role: bnd.role, Members: bnd.members})
	}
	if _, err := b.iam.Projects.ServiceAccounts.SetIamPolicy(resource, &iam.SetIamPolicyRequest{
		Policy: policy,
	}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to update IAM policy of %s: %w", resource, classifyGoogle(err))
	}
	b.logger.Info("Bound workload identity", "team", teamName, "member", member)
	return nil
}

type binding struct {
	role    string
	members []string
}

// addMember adds member to the binding for role, creating the binding when absent.
func addMember(bindings []binding, role, member string) ([]binding, bool) {
	for i := range bindings {
		if bindings[i].role != role {
			continue
		}
		if slices.Contains(bindings[i].members, member) {
			return bindings, false
		}
		bindings[i].members = append(bindings[i].members, member)
		return bindings, true
	}
	return append(bindings, binding{role: role, members: []string{member}}), true
}

func googleStatus(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

func classifyGoogle(err error) error {
	var class error
	switch code := googleStatus(err); {
	case code == http.StatusNotFound:
		class = operatorerrors.ErrNotFound
	case code == http.StatusConflict:
		class = operatorerrors.ErrAlreadyExists
	case code == http.StatusForbidden, code == http.StatusUnauthorized:
		class = operatorerrors.ErrForbidden
	case code == http.StatusTooManyRequests, code >= http.StatusInternalServerError:
		class = operatorerrors.ErrUnavailable
	default:
		return operatorerrors.Classify(err)
	}
	return fmt.Errorf("%w: %w", class, err)
}

func normalizeEndpoint(endpoint string) string {
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	return endpoint
}
