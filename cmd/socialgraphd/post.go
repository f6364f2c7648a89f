package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"tribenet/core"
)

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Post Minter: posts, replies, interactions, encrypted and gated access",
}

var postCreateCmd = &cobra.Command{
	Use:   "create <tribe-id> <metadata> <is-gated> <collectible-contract> <collectible-id>",
	Short: "Create a post",
	Args:  cobra.ExactArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := callerFlag(cmd)
		if err != nil {
			return err
		}
		tribeID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		gated, err := strconv.ParseBool(args[2])
		if err != nil {
			return err
		}
		contract, err := parseAddr(args[3])
		if err != nil {
			return err
		}
		collectibleID, err := strconv.ParseUint(args[4], 10, 64)
		if err != nil {
			return err
		}
		p, err := posts.CreatePost(caller, tribeID, args[1], gated, contract, collectibleID)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), p.ID)
		return err
	},
}

var postReplyCmd = &cobra.Command{
	Use:   "reply <parent-post-id> <metadata>",
	Short: "Reply to an existing post",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := callerFlag(cmd)
		if err != nil {
			return err
		}
		parentID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		p, err := posts.CreateReply(caller, parentID, args[1])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), p.ID)
		return err
	},
}

var postEncryptedCmd = &cobra.Command{
	Use:   "create-encrypted <tribe-id> <metadata> <encryption-key-hash> <access-signer>",
	Short: "Create an encrypted post",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := callerFlag(cmd)
		if err != nil {
			return err
		}
		tribeID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		signer, err := parseAddr(args[3])
		if err != nil {
			return err
		}
		p, err := posts.CreateEncryptedPost(caller, tribeID, args[1], args[2], signer)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), p.ID)
		return err
	},
}

var postInteractCmd = &cobra.Command{
	Use:   "interact <post-id> <LIKE|DISLIKE>",
	Short: "Like or dislike a post",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := callerFlag(cmd)
		if err != nil {
			return err
		}
		postID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		t, err := mustInteraction(args[1])
		if err != nil {
			return err
		}
		return posts.InteractWithPost(caller, postID, t)
	},
}

var postReportCmd = &cobra.Command{
	Use:   "report <post-id> <reason>",
	Short: "Report a post",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := callerFlag(cmd)
		if err != nil {
			return err
		}
		postID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		return posts.ReportPost(caller, postID, args[1])
	},
}

var postAuthorizeViewerCmd = &cobra.Command{
	Use:   "authorize-viewer <post-id> <viewer>",
	Short: "Authorize a viewer on an encrypted post",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := callerFlag(cmd)
		if err != nil {
			return err
		}
		postID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		viewer, err := parseAddr(args[1])
		if err != nil {
			return err
		}
		return posts.AuthorizeViewer(caller, postID, viewer)
	},
}

var postDeleteCmd = &cobra.Command{
	Use:   "delete <post-id>",
	Short: "Tombstone a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := callerFlag(cmd)
		if err != nil {
			return err
		}
		postID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		return posts.DeletePost(caller, postID)
	},
}

var postUpdateCmd = &cobra.Command{
	Use:   "update <post-id> <metadata>",
	Short: "Update a post's metadata",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := callerFlag(cmd)
		if err != nil {
			return err
		}
		postID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		return posts.UpdatePost(caller, postID, args[1])
	},
}

var postGetCmd = &cobra.Command{
	Use:   "get <post-id>",
	Short: "Fetch a post record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		postID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		p, err := posts.GetPost(postID)
		if err != nil {
			return err
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(p)
	},
}

var postCanViewCmd = &cobra.Command{
	Use:   "can-view <post-id> <viewer>",
	Short: "Query whether viewer may view a post",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		postID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		viewer, err := parseAddr(args[1])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), posts.CanViewPost(postID, viewer))
		return err
	},
}

var postVerifyAccessCmd = &cobra.Command{
	Use:   "verify-access <post-id> <viewer> <signature-hex>",
	Short: "Verify a signature-based access grant for an encrypted post",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		postID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		viewer, err := parseAddr(args[1])
		if err != nil {
			return err
		}
		sig, err := hexDecode(args[2])
		if err != nil {
			return err
		}
		ok, err := posts.VerifyPostAccess(postID, viewer, sig)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), ok)
		return err
	},
}

var postDecryptionKeyCmd = &cobra.Command{
	Use:   "decryption-key <post-id> <viewer>",
	Short: "Fetch an authorized viewer's decryption key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		postID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		viewer, err := parseAddr(args[1])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), posts.GetPostDecryptionKey(postID, viewer))
		return err
	},
}

var postRepliesCmd = &cobra.Command{
	Use:   "replies <parent-post-id>",
	Short: "List a post's direct replies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parentID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(posts.GetPostReplies(parentID))
	},
}

var postByTribeCmd = &cobra.Command{
	Use:   "by-tribe <tribe-id> <start-after> <limit>",
	Short: "Paginate a tribe's posts",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		tribeID, err := strconv.ParseUint(args[0], 10, 64)
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
		return json.NewEncoder(cmd.OutOrStdout()).Encode(posts.GetPostsByTribe(tribeID, startAfter, limit))
	},
}

var postByUserCmd = &cobra.Command{
	Use:   "by-user <addr> <start-after> <limit>",
	Short: "Paginate a user's posts",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddr(args[0])
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
		return json.NewEncoder(cmd.OutOrStdout()).Encode(posts.GetPostsByUser(addr, startAfter, limit))
	},
}

var postSetCooldownCmd = &cobra.Command{
	Use:   "set-cooldown <post-type> <seconds>",
	Short: "Set the per-PostType cooldown (RATE_LIMIT_MANAGER)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := callerFlag(cmd)
		if err != nil {
			return err
		}
		seconds, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return err
		}
		return posts.SetPostTypeCooldown(caller, core.PostType(args[0]), seconds)
	},
}

var postSetBatchLimitsCmd = &cobra.Command{
	Use:   "set-batch-limits <max-batch-size> <batch-cooldown-seconds>",
	Short: "Set batch posting limits (RATE_LIMIT_MANAGER)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := callerFlag(cmd)
		if err != nil {
			return err
		}
		maxSize, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return err
		}
		cooldown, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return err
		}
		return posts.SetBatchPostingLimits(caller, uint32(maxSize), cooldown)
	},
}

var postPauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause post creation and interaction (RATE_LIMIT_MANAGER)",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, _ []string) error {
		caller, err := callerFlag(cmd)
		if err != nil {
			return err
		}
		return posts.Pause(caller)
	},
}

var postUnpauseCmd = &cobra.Command{
	Use:   "unpause",
	Short: "Resume post creation and interaction (RATE_LIMIT_MANAGER)",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, _ []string) error {
		caller, err := callerFlag(cmd)
		if err != nil {
			return err
		}
		return posts.Unpause(caller)
	},
}

func mustInteraction(name string) (core.InteractionType, error) {
	switch name {
	case "LIKE":
		return core.InteractionLike, nil
	case "DISLIKE":
		return core.InteractionDislike, nil
	default:
		return "", fmt.Errorf("unknown interaction type %q", name)
	}
}

func init() {
	postCmd.PersistentFlags().String("caller", "", "calling address (defaults to the configured node admin)")
	postCmd.AddCommand(
		postCreateCmd, postReplyCmd, postEncryptedCmd, postInteractCmd, postReportCmd,
		postAuthorizeViewerCmd, postDeleteCmd, postUpdateCmd, postGetCmd, postCanViewCmd,
		postVerifyAccessCmd, postDecryptionKeyCmd, postRepliesCmd, postByTribeCmd, postByUserCmd,
		postSetCooldownCmd, postSetBatchLimitsCmd, postPauseCmd, postUnpauseCmd,
	)
}
