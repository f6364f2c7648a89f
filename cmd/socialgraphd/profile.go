package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Profile NFT Minter: per-address identity tokens",
}

var profileMintCmd = &cobra.Command{
	Use:   "mint <metadata-uri>",
	Short: "Mint a profile NFT for the caller",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := callerFlag(cmd)
		if err != nil {
			return err
		}
		tok, err := profiles.MintProfileNFT(caller, args[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), tok.TokenID)
		return err
	},
}

var profileMintAuthorizedCmd = &cobra.Command{
	Use:   "mint-authorized <recipient> <metadata-uri>",
	Short: "Mint a profile NFT on behalf of recipient (PROFILE_MINTER_ROLE)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := callerFlag(cmd)
		if err != nil {
			return err
		}
		recipient, err := parseAddr(args[0])
		if err != nil {
			return err
		}
		tok, err := profiles.MintAuthorizedProfile(caller, recipient, args[1])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), tok.TokenID)
		return err
	},
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update <token-id> <metadata-uri>",
	Short: "Update a profile NFT's metadata URI",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := callerFlag(cmd)
		if err != nil {
			return err
		}
		tokenID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		return profiles.UpdateProfileMetadata(caller, tokenID, args[1])
	},
}

var profileOwnerOfCmd = &cobra.Command{
	Use:   "owner-of <token-id>",
	Short: "Query the owner of a profile token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tokenID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		owner, ok := profiles.OwnerOf(tokenID)
		if !ok {
			return fmt.Errorf("token %d not found", tokenID)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), owner.Hex())
		return err
	},
}

var profileTokensCmd = &cobra.Command{
	Use:   "tokens <owner> <start-after> <limit>",
	Short: "Paginate an owner's profile tokens",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := parseAddr(args[0])
		if err != nil {
			return err
		}
		startAfter, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return err
		}
		limit, err := strconv.Atoi(args[2])
		if err != nil {
			return err
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(profiles.Tokens(owner, startAfter, limit))
	},
}

var profileInfoCmd = &cobra.Command{
	Use:   "info <token-id>",
	Short: "Fetch a profile token's record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tokenID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		info, ok := profiles.NFTInfo(tokenID)
		if !ok {
			return fmt.Errorf("token %d not found", tokenID)
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(info)
	},
}

var profileIsAdminCmd = &cobra.Command{
	Use:   "is-admin <addr>",
	Short: "Check whether addr holds PROFILE_MINTER_ROLE admin privileges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddr(args[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), profiles.IsAdmin(addr))
		return err
	},
}

func init() {
	profileCmd.PersistentFlags().String("caller", "", "calling address (defaults to the configured node admin)")
	profileCmd.AddCommand(
		profileMintCmd, profileMintAuthorizedCmd, profileUpdateCmd,
		profileOwnerOfCmd, profileTokensCmd, profileInfoCmd, profileIsAdminCmd,
	)
}
