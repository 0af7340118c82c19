// Copyright 2026 The Maintly Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newSecretsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage the credential vault",
	}
	cmd.AddCommand(newResealCmd())
	return cmd
}

func newResealCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "reseal",
		Short: "Re-encrypt legacy ciphertexts into the current format",
		Long: `Finds every secret still stored in the legacy passphrase format and
re-encrypts it with its creator's key into the current authenticated format.

Secrets that do not open with their creator's key are left untouched and
reported as unreadable. Use --dry-run to count without writing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			stop := startSpinner(cmd.ErrOrStderr(), "Resealing legacy secrets...")
			report, err := e.vault.ResealLegacy(cmd.Context(), dryRun)
			stop()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dryRun {
				fmt.Fprintln(out, color.YellowString("dry run: nothing was written"))
			}
			fmt.Fprintf(out, "scanned:    %d\n", report.Scanned)
			fmt.Fprintf(out, "legacy:     %d\n", report.Legacy)
			fmt.Fprintf(out, "resealed:   %s\n", color.GreenString("%d", report.Resealed))
			fmt.Fprintf(out, "unreadable: %d\n", report.Unreadable)
			if report.Failed > 0 {
				fmt.Fprintf(out, "failed:     %s\n", color.RedString("%d", report.Failed))
				return fmt.Errorf("%d secret(s) could not be resealed", report.Failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing")
	return cmd
}
