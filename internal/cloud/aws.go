package cloud

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws/arn"
)

// ValidateRoleARN checks that roleARN names an IAM role usable for IRSA.
func ValidateRoleARN(roleARN string) (arn.ARN, error) {
	parsed, err := arn.Parse(roleARN)
	if err != nil {
		return arn.ARN{}, fmt.Errorf("invalid IRSA role ARN %q: %w", roleARN, err)
	}
	if parsed.Service != "iam" {
		return arn.ARN{}, fmt.Errorf("invalid IRSA role ARN %q: service is %q, expected iam", roleARN, parsed.Service)
	}
	if !strings.HasPrefix(parsed.Resource, "role/") {
		return arn.ARN{}, fmt.Errorf("invalid IRSA role ARN %q: resource %q is not a role", roleARN, parsed.Resource)
	}
	return parsed, nil
}
