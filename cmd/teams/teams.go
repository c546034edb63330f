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

// Package teams implements the operator commands for inspecting and managing team
// instances from outside the balancer.
package teams

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/dc-tec/wrongsecrets-balancer/internal/cluster"
	"github.com/dc-tec/wrongsecrets-balancer/internal/config"
	"github.com/dc-tec/wrongsecrets-balancer/internal/constants"
	"github.com/dc-tec/wrongsecrets-balancer/internal/monitoring"
	"github.com/dc-tec/wrongsecrets-balancer/internal/orchestrator"
	"github.com/dc-tec/wrongsecrets-balancer/internal/team"
)

// Instances is the part of the orchestrator the team commands use.
type Instances interface {
	List(ctx context.Context) ([]team.InstanceRecord, error)
	Delete(ctx context.Context, teamName string) error
	RestartWorkload(ctx context.Context, teamName string) error
	RestartDesktop(ctx context.Context, teamName string) error
}

// connectFunc opens Instances using the configuration at configPath.
type connectFunc func(ctx context.Context, configPath string) (Instances, error)

// NewCommand returns the teams command group.
func NewCommand() *cobra.Command {
	return newCommand(connect)
}

func newCommand(open connectFunc) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "teams",
		Short: "Inspect and manage team instances",
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to the balancer YAML configuration. Defaults to $"+constants.EnvConfigFile+".")

	instances := func(cmd *cobra.Command) (Instances, error) {
		return open(cmd.Context(), configPath)
	}

	cmd.AddCommand(
		newListCommand(instances),
		newDeleteCommand(instances),
		newRestartCommand(instances),
	)
	return cmd
}

func newListCommand(instances func(*cobra.Command) (Instances, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List team instances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			inst, err := instances(cmd)
			if err != nil {
				return err
			}
			records, err := inst.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list teams: %w", err)
			}
			return printRecords(cmd.OutOrStdout(), records, time.Now())
		},
	}
}

func newDeleteCommand(instances func(*cobra.Command) (Instances, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "delete TEAM...",
		Short: "Delete team instances",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateNames(args); err != nil {
				return err
			}
			inst, err := instances(cmd)
			if err != nil {
				return err
			}
			for _, teamName := range args {
				if err := inst.Delete(cmd.Context(), teamName); err != nil {
					return fmt.Errorf("failed to delete team %s: %w", teamName, err)
				}
				monitoring.RecordTeamDeleted(monitoring.DeleteReasonCLI)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted team %s\n", teamName)
			}
			return nil
		},
	}
}

func newRestartCommand(instances func(*cobra.Command) (Instances, error)) *cobra.Command {
	var desktop bool

	cmd := &cobra.Command{
		Use:   "restart TEAM",
		Short: "Restart the pods of a team instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			teamName := args[0]
			if err := team.ValidateName(teamName); err != nil {
				return err
			}
			inst, err := instances(cmd)
			if err != nil {
				return err
			}

			what := "workload"
			restart := inst.RestartWorkload
			if desktop {
				what = "desktop"
				restart = inst.RestartDesktop
			}
			if err := restart(cmd.Context(), teamName); err != nil {
				return fmt.Errorf("failed to restart %s of team %s: %w", what, teamName, err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Restarted %s of team %s\n", what, teamName)
			return nil
		},
	}
	cmd.Flags().BoolVar(&desktop, "desktop", false, "Restart the webtop desktop instead of the workload.")
	return cmd
}

func validateNames(names []string) error {
	for _, name := range names {
		if err := team.ValidateName(name); err != nil {
			return err
		}
	}
	return nil
}

func printRecords(w io.Writer, records []team.InstanceRecord, now time.Time) error {
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		lastRequest := "never"
		if !record.LastRequest.IsZero() {
			lastRequest = now.Sub(record.LastRequest).Truncate(time.Second).String() + " ago"
		}
		rows = append(rows, []string{
			record.Team,
			strconv.FormatBool(record.Ready()),
			record.CreatedAt.UTC().Format(time.RFC3339),
			lastRequest,
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("TEAM", "READY", "CREATED", "LAST REQUEST").
		Rows(rows...)
	_, err := fmt.Fprintln(w, t.String())
	return err
}

// connect builds an orchestrator against the cluster of the current kubeconfig. It has
// no provisioning strategy, so Create must never be called on it.
func connect(_ context.Context, configPath string) (Instances, error) {
	if configPath == "" {
		configPath = os.Getenv(constants.EnvConfigFile)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	restConfig, err := ctrl.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}
	scheme, err := cluster.NewScheme()
	if err != nil {
		return nil, err
	}
	c, err := client.New(restConfig, client.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("failed to create cluster client: %w", err)
	}

	ctrl.SetLogger(zap.New())
	return orchestrator.New(cluster.NewGateway(c), nil, ctrl.Log.WithName("teams"), orchestrator.Options{
		DeploymentContext: cfg.DeploymentContext,
		Readiness:         cfg.Readiness,
	}), nil
}
