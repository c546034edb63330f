package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws/arn"
	"github.com/google/go-containerregistry/pkg/name"
	corev1 "k8s.io/api/core/v1"

	"github.com/dc-tec/wrongsecrets-balancer/internal/reaper"
)

// MinSecretIDs is the number of secret ids every cloud strategy mounts.
const MinSecretIDs = 2

// Validate checks the configuration and returns every problem found.
func (c Config) Validate() error {
	var errs []error

	if !slices.Contains(Environments, c.Environment) {
		errs = append(errs, fmt.Errorf("unknown environment %q, expected one of %v", c.Environment, Environments))
	}
	if c.DeploymentContext == "" {
		errs = append(errs, errors.New("deploymentContext must not be empty"))
	}
	if c.Admin.Username == "" {
		errs = append(errs, errors.New("admin.username must not be empty"))
	}
	if c.Admin.Password == "" {
		errs = append(errs, errors.New("admin.password must not be empty"))
	}
	if c.Cookie.Name == "" {
		errs = append(errs, errors.New("cookie.name must not be empty"))
	}
	if c.Cookie.Secret == "" {
		errs = append(errs, errors.New("cookie.secret must not be empty"))
	}

	errs = append(errs, validateWorkload("wrongsecrets", c.WrongSecrets)...)
	errs = append(errs, validateWorkload("virtualdesktop", c.VirtualDesktop)...)

	switch c.Environment {
	case EnvironmentAWS:
		if _, err := arn.Parse(c.AWS.RoleARN); err != nil {
			errs = append(errs, fmt.Errorf("aws.roleArn %q is not a valid ARN: %w", c.AWS.RoleARN, err))
		}
		errs = append(errs, validateSecretIDs("aws.secretIds", c.AWS.SecretIDs)...)
	case EnvironmentAzure:
		if c.Azure.TenantID == "" {
			errs = append(errs, errors.New("azure.tenantId must be set for the azure environment"))
		}
		if c.Azure.KeyVaultName == "" {
			errs = append(errs, errors.New("azure.keyVaultName must be set for the azure environment"))
		}
		errs = append(errs, validateSecretIDs("azure.secretIds", c.Azure.SecretIDs)...)
	case EnvironmentGCP:
		if c.GCP.ProjectID == "" {
			errs = append(errs, errors.New("gcp.projectId must be set for the gcp environment"))
		}
		errs = append(errs, validateSecretIDs("gcp.secretIds", c.GCP.SecretIDs)...)
	}

	if c.Readiness.Attempts <= 0 {
		errs = append(errs, fmt.Errorf("readiness.attempts must be positive, got %d", c.Readiness.Attempts))
	}
	if c.Readiness.Interval <= 0 {
		errs = append(errs, fmt.Errorf("readiness.interval must be positive, got %s", c.Readiness.Interval))
	}

	if c.Cleanup.Enabled {
		if _, err := reaper.ParseSchedule(c.Cleanup.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("cleanup.schedule: %w", err))
		}
		if c.Cleanup.MaxInactive <= 0 {
			errs = append(errs, fmt.Errorf("cleanup.maxInactive must be positive, got %s", c.Cleanup.MaxInactive))
		}
	}

	if c.HTTP.Address == "" {
		errs = append(errs, errors.New("http.address must not be empty"))
	}
	if c.HTTP.JoinRateLimit <= 0 || c.HTTP.JoinBurst <= 0 {
		errs = append(errs, errors.New("http.joinRateLimit and http.joinBurst must be positive"))
	}

	return errors.Join(errs...)
}

func validateWorkload(field string, w Workload) []error {
	var errs []error
	if _, err := name.ParseReference(w.ImageRef()); err != nil {
		errs = append(errs, fmt.Errorf("%s image %q is invalid: %w", field, w.ImageRef(), err))
	}
	switch w.ImagePullPolicy {
	case "", corev1.PullAlways, corev1.PullIfNotPresent, corev1.PullNever:
	default:
		errs = append(errs, fmt.Errorf("%s.imagePullPolicy %q is invalid", field, w.ImagePullPolicy))
	}
	return errs
}

func validateSecretIDs(field string, ids []string) []error {
	if len(ids) < MinSecretIDs {
		return []error{fmt.Errorf("%s needs %d entries, got %d", field, MinSecretIDs, len(ids))}
	}
	var errs []error
	for i, id := range ids {
		if id == "" {
			errs = append(errs, fmt.Errorf("%s[%d] must not be empty", field, i))
		}
	}
	return errs
}
