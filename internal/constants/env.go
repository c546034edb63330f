package constants

// Environment variables understood by the balancer. The names are kept from the
// Helm chart so existing deployments keep working.
const (
	EnvConfigFile = "BALANCER_CONFIG"

	EnvEnvironment    = "K8S_ENV"
	EnvNodeEnv        = "NODE_ENV"
	EnvAccessPassword = "REACT_APP_ACCESS_PASSWORD"
	EnvHMACKey        = "REACT_APP_CREATE_TEAM_HMAC_KEY"
	EnvCTFServerURL   = "REACT_APP_HEROKU_WRONGSECRETS_URL"
	EnvChallenge33    = "CHALLENGE33_VALUE"

	EnvWrongSecretsTag = "WRONGSECRETS_TAG"
	EnvDesktopTag      = "WRONGSECRETS_DESKTOP_TAG"

	EnvAdminUsername = "ADMIN_USERNAME"
	EnvAdminPassword = "ADMIN_PASSWORD"
	EnvCookieSecret  = "COOKIEPARSER_SECRET"
	EnvMaxInstances  = "MAX_INSTANCES"

	EnvAWSRoleARN   = "IRSA_ROLE"
	EnvAWSSecretID1 = "AWS_SECRETS_MANAGER_SECRET_ID_1"
	EnvAWSSecretID2 = "AWS_SECRETS_MANAGER_SECRET_ID_2"

	EnvAzureTenantID    = "AZ_KEY_VAULT_TENANT_ID"
	EnvAzureKeyVault    = "AZ_KEY_VAULT_NAME"
	EnvAzureVaultURI    = "AZ_VAULT_URI"
	EnvAzurePodClientID = "AZ_POD_CLIENT_ID"
	EnvAzureSecretID1   = "AZ_KEYVAULT_SECRET_ID_1"
	EnvAzureSecretID2   = "AZ_KEYVAULT_SECRET_ID_2"

	EnvGCPProjectID = "GCP_PROJECT_ID"
	EnvGCPSecretID1 = "GCP_SECRETS_MANAGER_SECRET_ID_1"
	EnvGCPSecretID2 = "GCP_SECRETS_MANAGER_SECRET_ID_2"
)
