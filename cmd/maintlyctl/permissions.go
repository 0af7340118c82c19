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
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/maintly/maintly/internal/authz"
)

func newPermissionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permissions",
		Short: "Inspect subject permissions",
	}
	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newListCmd())
	return cmd
}

// checkRequest is the parsed input of permissions check.
type checkRequest struct {
	userID string
	action authz.Capability
	ref    authz.ResourceRef
}

func parseCheck(userID, kind, id, action string) (checkRequest, error) {
	k, err := authz.ParseResourceKind(kind)
	if err != nil {
		return checkRequest{}, err
	}
	a, err := authz.ParseCapability(action)
	if err != nil {
		return checkRequest{}, err
	}
	ref := authz.ResourceRef{Kind: k, ID: id}
	if err := ref.Validate(); err != nil {
		return checkRequest{}, err
	}
	return checkRequest{userID: userID, action: a, ref: ref}, nil
}

func newCheckCmd() *cobra.Command {
	var userID, kind, id, action string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate one capability for a user",
		Example: `  maintlyctl permissions check --user 6f1c... --kind client --id 42 --action edit
  maintlyctl permissions check --user 6f1c... --kind system --id cofre_senhas --action create`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := parseCheck(userID, kind, id, action)
			if err != nil {
				return err
			}

			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			sub, err := e.subjectFor(cmd.Context(), req.userID)
			if err != nil {
				return err
			}
			allowed, err := e.authz.Can(cmd.Context(), sub, req.action, req.ref)
			if err != nil {
				return err
			}
			printDecision(cmd.OutOrStdout(), sub, req, allowed)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "provider user id")
	cmd.Flags().StringVar(&kind, "kind", "", "resource kind (client, system, company, secret, vault_group)")
	cmd.Flags().StringVar(&id, "id", "", "resource id or system resource name")
	cmd.Flags().StringVar(&action, "action", "view", "capability to check")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func printDecision(w io.Writer, sub authz.Subject, req checkRequest, allowed bool) {
	verdict := color.RedString("denied")
	if allowed {
		verdict = color.GreenString("allowed")
	}
	suffix := ""
	if sub.IsAdmin {
		suffix = " (admin)"
	}
	fmt.Fprintf(w, "%s %s on %s: %s%s\n", sub.ID, req.action, req.ref, verdict, suffix)
}

func newListCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every grant of a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			sub, err := e.subjectFor(cmd.Context(), userID)
			if err != nil {
				return err
			}
			snap, err := e.authz.Snapshot(cmd.Context(), sub)
			if err != nil {
				return err
			}
			printGrants(cmd.OutOrStdout(), snap)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "provider user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func printGrants(w io.Writer, snap *authz.Snapshot) {
	if snap.IsAdmin() {
		fmt.Fprintln(w, color.YellowString("admin: every capability on every resource"))
	}

	grants := snap.Grants()
	refs := make([]authz.ResourceRef, 0, len(grants))
	for ref := range grants {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].String() < refs[j].String() })

	for _, ref := range refs {
		fmt.Fprintf(w, "%-40s %s\n", ref, grants[ref])
	}
	if len(refs) == 0 {
		fmt.Fprintln(w, "no grants")
	}
}
