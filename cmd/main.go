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

package main

import (
	"os"

	"github.com/spf13/cobra"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/dc-tec/wrongsecrets-balancer/cmd/serve"
	"github.com/dc-tec/wrongsecrets-balancer/cmd/teams"
)

var (
	setupLog = ctrl.Log.WithName("setup")
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "wrongsecrets-balancer",
		Short: "Provision and manage per-team WrongSecrets instances",
		// Errors are reported once by main.
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serve.NewCommand())
	root.AddCommand(teams.NewCommand())
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		setupLog.Error(err, "command failed")
		os.Exit(1)
	}
}
