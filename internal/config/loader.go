package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dc-tec/wrongsecrets-balancer/internal/constants"
)

// LookupEnvFunc reads an environment variable. Tests substitute a map lookup.
type LookupEnvFunc func(key string) (string, bool)

// Load builds the configuration from defaults, the YAML file at path (skipped when
// path is empty) and the process environment.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment lookup.
func LoadWithEnv(path string, lookup LookupEnvFunc) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadFile decodes the YAML file at path on top of cfg. Keys missing from the file
// keep their current value.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("error parsing config file %s: %w", path, err)
	}
	return nil
}

// UnmarshalYAML decodes the scalar fields directly and the Kubernetes typed fields
// through their JSON tags, so env/tolerations/affinity use the usual camelCase keys.
func (w *Workload) UnmarshalYAML(node *yaml.Node) error {
	type plain Workload
	if err := node.Decode((*plain)(w)); err != nil {
		return err
	}

	var kube struct {
		Env         yaml.Node `yaml:"env"`
		Tolerations yaml.Node `yaml:"tolerations"`
		Affinity    yaml.Node `yaml:"affinity"`
	}
	if err := node.Decode(&kube); err != nil {
		return err
	}

	if err := decodeKubeField(&kube.Env, &w.Env); err != nil {
		return fmt.Errorf("env: %w", err)
	}
	if err := decodeKubeField(&kube.Tolerations, &w.Tolerations); err != nil {
		return fmt.Errorf("tolerations: %w", err)
	}
	if err := decodeKubeField(&kube.Affinity, &w.Affinity); err != nil {
		return fmt.Errorf("affinity: %w", err)
	}
	return nil
}

func decodeKubeField(node *yaml.Node, out any) error {
	if node.Kind == 0 {
		return nil
	}
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func applyEnv(cfg *Config, lookup LookupEnvFunc) error {
	setString := func(key string, target *string) {
		if value, ok := lookup(key); ok && value != "" {
			*target = value
		}
	}

	if value, ok := lookup(constants.EnvEnvironment); ok && value != "" {
		cfg.Environment = Environment(strings.ToLower(value))
	}
	if value, ok := lookup(constants.EnvNodeEnv); ok {
		cfg.Production = value == "production"
	}
	if value, ok := lookup(constants.EnvMaxInstances); ok && value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", constants.EnvMaxInstances, err)
		}
		cfg.MaxInstances = parsed
	}

	setString(constants.EnvAccessPassword, &cfg.AccessPassword)
	setString(constants.EnvHMACKey, &cfg.HMACKey)
	setString(constants.EnvCTFServerURL, &cfg.CTFServerAddress)
	setString(constants.EnvChallenge33, &cfg.Challenge33Value)

	setString(constants.EnvWrongSecretsTag, &cfg.WrongSecrets.Tag)
	setString(constants.EnvDesktopTag, &cfg.VirtualDesktop.Tag)

	setString(constants.EnvAdminUsername, &cfg.Admin.Username)
	setString(constants.EnvAdminPassword, &cfg.Admin.Password)
	setString(constants.EnvCookieSecret, &cfg.Cookie.Secret)

	setString(constants.EnvAWSRoleARN, &cfg.AWS.RoleARN)
	cfg.AWS.SecretIDs = setSecretIDs(lookup, cfg.AWS.SecretIDs, constants.EnvAWSSecretID1, constants.EnvAWSSecretID2)

	setString(constants.EnvAzureTenantID, &cfg.Azure.TenantID)
	setString(constants.EnvAzureKeyVault, &cfg.Azure.KeyVaultName)
	setString(constants.EnvAzureVaultURI, &cfg.Azure.VaultURI)
	setString(constants.EnvAzurePodClientID, &cfg.Azure.PodClientID)
	cfg.Azure.SecretIDs = setSecretIDs(lookup, cfg.Azure.SecretIDs, constants.EnvAzureSecretID1, constants.EnvAzureSecretID2)

	setString(constants.EnvGCPProjectID, &cfg.GCP.ProjectID)
	cfg.GCP.SecretIDs = setSecretIDs(lookup, cfg.GCP.SecretIDs, constants.EnvGCPSecretID1, constants.EnvGCPSecretID2)

	return nil
}

// setSecretIDs overrides the numbered secret ids. The list grows when a key beyond its
// end is set; gaps stay empty so Validate reports them.
func setSecretIDs(lookup LookupEnvFunc, ids []string, keys ...string) []string {
	for i, key := range keys {
		value, ok := lookup(key)
		if !ok || value == "" {
			continue
		}
		for len(ids) <= i {
			ids = append(ids, "")
		}
		ids[i] = value
	}
	return ids
}
