package builder

import (
	"fmt"

	"github.com/dc-tec/wrongsecrets-balancer/internal/constants"
)

// AWSServiceAccountAnnotations binds the team's default service account to the IRSA role.
func (b *Builder) AWSServiceAccountAnnotations() map[string]string {
	return map[string]string{
		constants.AnnotationAWSRoleARN: b.cfg.AWS.RoleARN,
	}
}

// GCPServiceAccountAnnotations binds the team's default service account to its Google
// service account through workload identity.
func (b *Builder) GCPServiceAccountAnnotations(teamName string) map[string]string {
	return map[string]string{
		constants.AnnotationGCPServiceAccount: GCPServiceAccountEmail(b.cfg.GCP.ProjectID, teamName),
	}
}

// GCPServiceAccountID returns the account id of a team's Google service account.
func GCPServiceAccountID(teamName string) string {
	return "team-" + teamName
}

// GCPServiceAccountEmail returns the email of a team's Google service account.
func GCPServiceAccountEmail(projectID, teamName string) string {
	return fmt.Sprintf("%s@%s.iam.gserviceaccount.com", GCPServiceAccountID(teamName), projectID)
}
