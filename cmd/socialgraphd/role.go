package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var roleCmd = &cobra.Command{
	Use:   "role",
	Short: "Role Manager: hierarchical access control",
}

var roleGrantCmd = &cobra.Command{
	Use:   "grant <role> <addr>",
	Short: "Grant a role to an address",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := callerFlag(cmd)
		if err != nil {
			return err
		}
		addr, err := parseAddr(args[1])
		if err != nil {
			return err
		}
		return roles.GrantRole(caller, args[0], addr)
	},
}

var roleRevokeCmd = &cobra.Command{
	Use:   "revoke <role> <addr>",
	Short: "Revoke a role from an address",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := callerFlag(cmd)
		if err != nil {
			return err
		}
		addr, err := parseAddr(args[1])
		if err != nil {
			return err
		}
		return roles.RevokeRole(caller, args[0], addr)
	},
}

var roleRenounceCmd = &cobra.Command{
	Use:   "renounce <role>",
	Short: "Renounce a role held by the caller",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := callerFlag(cmd)
		if err != nil {
			return err
		}
		return roles.RenounceRole(caller, args[0])
	},
}

var roleSetAdminCmd = &cobra.Command{
	Use:   "set-admin <role> <admin-role>",
	Short: "Reassign a role's admin-role",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := callerFlag(cmd)
		if err != nil {
			return err
		}
		return roles.SetRoleAdmin(caller, args[0], args[1])
	},
}

var roleHasCmd = &cobra.Command{
	Use:   "has <role> <addr>",
	Short: "Check whether an address holds a role",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddr(args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), roles.HasRole(args[0], addr))
		return nil
	},
}

var roleListCmd = &cobra.Command{
	Use:   "list <addr>",
	Short: "List roles held by an address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddr(args[0])
		if err != nil {
			return err
		}
		for _, r := range roles.GetRoles(addr) {
			fmt.Fprintln(cmd.OutOrStdout(), r)
		}
		return nil
	},
}

var roleCountCmd = &cobra.Command{
	Use:   "count <role>",
	Short: "Report a role's member count",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), roles.GetRoleMemberCount(args[0]))
		return nil
	},
}

func init() {
	roleCmd.PersistentFlags().String("caller", "", "calling address (defaults to the configured node admin)")
	roleCmd.AddCommand(roleGrantCmd, roleRevokeCmd, roleRenounceCmd, roleSetAdminCmd, roleHasCmd, roleListCmd, roleCountCmd)
}
