package builder

import (
	"slices"

	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/dc-tec/wrongsecrets-balancer/internal/constants"
	"github.com/dc-tec/wrongsecrets-balancer/internal/team"
)

// DesktopServiceAccount is the identity kubectl uses inside the desktop.
func (b *Builder) DesktopServiceAccount(teamName string) *corev1.ServiceAccount {
	return &corev1.ServiceAccount{
		ObjectMeta: metav1.ObjectMeta{
			Name:      constants.DesktopServiceAccountName,
			Namespace: team.Namespace(teamName),
		},
	}
}

// DesktopRole grants read access to the objects the Kubernetes challenges hide secrets in.
func (b *Builder) DesktopRole(teamName string) *rbacv1.Role {
	return &rbacv1.Role{
		ObjectMeta: metav1.ObjectMeta{
			Name:      constants.DesktopRoleName,
			Namespace: team.Namespace(teamName),
		},
		Rules: desktopRoleRules(),
	}
}

// desktopGrant is one rule of the desktop role.
type desktopGrant struct {
	group     string
	resources []string
	verbs     []string
}

var desktopGrants = []desktopGrant{
	{group: "", resources: []string{"secrets"}, verbs: []string{"get", "list"}},
	{group: "", resources: []string{"configmaps"}, verbs: []string{"get", "list"}},
	{group: "", resources: []string{"pods", "pods/log"}, verbs: []string{"get", "list", "watch"}},
	{group: "apps", resources: []string{"deployments"}, verbs: []string{"get", "list", "watch"}},
}

// desktopRoleRules returns fresh rules on every call so callers may mutate them.
func desktopRoleRules() []rbacv1.PolicyRule {
	rules := make([]rbacv1.PolicyRule, 0, len(desktopGrants))
	for _, grant := range desktopGrants {
		rules = append(rules, rbacv1.PolicyRule{
			APIGroups: []string{grant.group},
			Resources: slices.Clone(grant.resources),
			Verbs:     slices.Clone(grant.verbs),
		})
	}
	return rules
}

// DesktopRoleBinding binds DesktopRole to the desktop service account.
func (b *Builder) DesktopRoleBinding(teamName string) *rbacv1.RoleBinding {
	namespace := team.Namespace(teamName)
	return &rbacv1.RoleBinding{
		ObjectMeta: metav1.ObjectMeta{
			Name:      constants.DesktopRoleBindingName,
			Namespace: namespace,
		},
		Subjects: []rbacv1.Subject{
			{
				Kind:      rbacv1.ServiceAccountKind,
				Name:      constants.DesktopServiceAccountName,
				Namespace: namespace,
			},
		},
		RoleRef: rbacv1.RoleRef{
			APIGroup: rbacv1.GroupName,
			Kind:     "Role",
			Name:     constants.DesktopRoleName,
		},
	}
}
