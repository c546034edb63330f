/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package serve

import (
	"context"
	"flag"
	"fmt"
	"os"

	// Import all Kubernetes client auth plugins (e.g. Azure, GCP, OIDC, etc.)
	// to ensure that exec-entrypoint and run can make use of them.
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	discoveryv1 "k8s.io/api/discovery/v1"
	networkingv1 "k8s.io/api/networking/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	"github.com/dc-tec/wrongsecrets-balancer/internal/admission"
	"github.com/dc-tec/wrongsecrets-balancer/internal/builder"
	"github.com/dc-tec/wrongsecrets-balancer/internal/cloud"
	"github.com/dc-tec/wrongsecrets-balancer/internal/cluster"
	"github.com/dc-tec/wrongsecrets-balancer/internal/config"
	"github.com/dc-tec/wrongsecrets-balancer/internal/constants"
	"github.com/dc-tec/wrongsecrets-balancer/internal/httpapi"
	"github.com/dc-tec/wrongsecrets-balancer/internal/interfaces"
	"github.com/dc-tec/wrongsecrets-balancer/internal/orchestrator"
	"github.com/dc-tec/wrongsecrets-balancer/internal/reaper"
	"github.com/dc-tec/wrongsecrets-balancer/internal/session"
	"github.com/dc-tec/wrongsecrets-balancer/internal/strategy"
)

var setupLog = ctrl.Log.WithName("setup")

type options struct {
	configPath     string
	metricsAddr    string
	probeAddr      string
	leaderElection bool
	zap            zap.Options
}

// NewCommand returns the serve command.
func NewCommand() *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the balancer API, metrics and the inactivity reaper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctrl.SetLogger(zap.New(zap.UseFlagOptions(&o.zap)))
			return run(ctrl.SetupSignalHandler(), o)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&o.configPath, "config", "", "Path to the balancer YAML configuration. Defaults to $"+constants.EnvConfigFile+".")
	flags.StringVar(&o.metricsAddr, "metrics-bind-address", ":8080", "The address the metrics endpoint binds to.")
	flags.StringVar(&o.probeAddr, "health-probe-bind-address", ":8081", "The address the probe endpoint binds to.")
	flags.BoolVar(&o.leaderElection, "leader-elect", false,
		"Enable leader election so only one replica runs the inactivity reaper.")

	zapFlags := flag.NewFlagSet("zap", flag.ContinueOnError)
	o.zap.BindFlags(zapFlags)
	flags.AddGoFlagSet(zapFlags)

	return cmd
}

func run(ctx context.Context, o *options) error {
	path := o.configPath
	if path == "" {
		path = os.Getenv(constants.EnvConfigFile)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	scheme, err := cluster.NewScheme()
	if err != nil {
		return err
	}

	// Reads go straight to the API server so a team created by another replica is seen
	// immediately.
	mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), ctrl.Options{
		Scheme:                 scheme,
		Metrics:                metricsserver.Options{BindAddress: o.metricsAddr},
		HealthProbeBindAddress: o.probeAddr,
		LeaderElection:         o.leaderElection,
		LeaderElectionID:       "wrongsecrets-balancer-leader.owasp.org",
		Client: client.Options{
			Cache: &client.CacheOptions{
				DisableFor: []client.Object{
					&corev1.Namespace{},
					&corev1.ConfigMap{},
					&corev1.Secret{},
					&corev1.ServiceAccount{},
					&corev1.Service{},
					&corev1.Pod{},
					&appsv1.Deployment{},
					&rbacv1.Role{},
					&rbacv1.RoleBinding{},
					&networkingv1.NetworkPolicy{},
					&discoveryv1.EndpointSlice{},
					&apiextensionsv1.CustomResourceDefinition{},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("unable to create manager: %w", err)
	}

	components, err := Wire(ctx, cfg, mgr.GetClient(), ctrl.Log)
	if err != nil {
		return err
	}

	if err := mgr.Add(components.Server); err != nil {
		return fmt.Errorf("unable to add balancer API: %w", err)
	}
	if components.Reaper != nil {
		if err := mgr.Add(components.Reaper); err != nil {
			return fmt.Errorf("unable to add inactivity reaper: %w", err)
		}
	}

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		return fmt.Errorf("unable to set up health check: %w", err)
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		return fmt.Errorf("unable to set up ready check: %w", err)
	}

	setupLog.Info("Starting balancer", "environment", cfg.Environment, "strategy", components.Orchestrator.Strategy().StepNames())
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("problem running manager: %w", err)
	}
	return nil
}

// Components are the wired parts of a running balancer.
type Components struct {
	Gateway      *cluster.Gateway
	Orchestrator *orchestrator.Orchestrator
	Admission    *admission.Controller
	Server       *httpapi.Server
	// Reaper is nil when cleanup is disabled.
	Reaper *reaper.Reaper
}

// Wire builds every component from cfg. Cloud environments fail here when the
// SecretProviderClass CRD is missing.
func Wire(ctx context.Context, cfg config.Config, c client.Client, logger logr.Logger) (*Components, error) {
	gateway := cluster.NewGateway(c)

	if cfg.Environment.Cloud() {
		if err := gateway.PreflightSecretProviderClass(ctx); err != nil {
			return nil, fmt.Errorf("preflight for the %s environment failed: %w", cfg.Environment, err)
		}
	}

	var binder interfaces.IdentityBinder
	if cfg.Environment == config.EnvironmentGCP {
		gcp, err := cloud.NewGCPIdentityBinder(ctx, logger, cfg.GCP)
		if err != nil {
			return nil, err
		}
		binder = gcp
	}

	s, err := strategy.New(cfg, strategy.Dependencies{
		Gateway: gateway,
		Builder: builder.New(cfg),
		Binder:  binder,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to select provisioning strategy: %w", err)
	}

	orch := orchestrator.New(gateway, s, logger, orchestrator.Options{
		DeploymentContext: cfg.DeploymentContext,
		Readiness:         cfg.Readiness,
	})
	admit := admission.New(orch, logger, admission.OptionsFromConfig(cfg))
	server := httpapi.New(orch, admit, session.New(cfg.Cookie), logger, cfg.HTTP)

	components := &Components{
		Gateway:      gateway,
		Orchestrator: orch,
		Admission:    admit,
		Server:       server,
	}

	if cfg.Cleanup.Enabled {
		components.Reaper, err = reaper.New(orch, logger, reaper.Options{
			Schedule:    cfg.Cleanup.Schedule,
			MaxInactive: cfg.Cleanup.MaxInactive,
			Protected:   []string{cfg.Admin.Username},
		})
		if err != nil {
			return nil, fmt.Errorf("unable to set up inactivity reaper: %w", err)
		}
	}

	return components, nil
}
