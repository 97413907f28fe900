package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/checkmate/checkmate/internal/inbound"
	"github.com/checkmate/checkmate/internal/policy"
)

func newPolicyCmd(a *app) *cobra.Command {
	policyCmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect or change the supported message types per source",
	}

	getCmd := &cobra.Command{
		Use:   "get <source>",
		Short: "Print the message types accepted from a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, store, err := a.openStore()
			if err != nil {
				return err
			}
			defer a.closeDB(db)

			types := a.newPolicy(store).SupportedTypes(cmd.Context(), args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], strings.Join(types.Strings(), ", "))
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <source> <type>...",
		Short: "Replace the message types accepted from a source",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			types := make([]inbound.Type, 0, len(args)-1)
			for _, arg := range args[1:] {
				t := inbound.Type(arg)
				if !t.Valid() {
					return fmt.Errorf("unknown message type %q", arg)
				}
				types = append(types, t)
			}

			db, store, err := a.openStore()
			if err != nil {
				return err
			}
			defer a.closeDB(db)

			if err := a.newPolicy(store).SetSupportedTypes(cmd.Context(), args[0], types); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated supported types for %s\n", args[0])
			return nil
		},
	}

	policyCmd.AddCommand(getCmd, setCmd)
	return policyCmd
}

func newResponsesCmd(a *app) *cobra.Command {
	responsesCmd := &cobra.Command{
		Use:   "responses",
		Short: "Manage the localized bot responses",
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <text>",
		Short: "Set the response sent for a key such as " + policy.ResponseUnsupportedType,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, store, err := a.openStore()
			if err != nil {
				return err
			}
			defer a.closeDB(db)

			if err := a.newPolicy(store).SetResponse(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated response %s\n", args[0])
			return nil
		},
	}

	responsesCmd.AddCommand(setCmd)
	return responsesCmd
}
