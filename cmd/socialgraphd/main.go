// Command socialgraphd is a CLI front-end over the tribenet core state
// machines (Role Manager, Tribe Controller, Post Minter, Profile NFT
// Minter), wired against a single in-process store. Each invocation is a
// single atomic handler call: there is no cross-process persistence here,
// only within a single run of a cobra command tree (e.g. a script issuing
// several subcommands via `--` chaining would not see shared state).
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	log "github.com/sirupsen/logrus"

	"tribenet/core"
	"tribenet/pkg/config"
)

var (
	initOnce sync.Once
	initErr  error

	store    core.KVStore
	roles    *core.RoleManager
	tribes   *core.TribeController
	posts    *core.PostMinter
	profiles *core.ProfileNFTMinter
	admin    core.Address
)

// rootInit builds the in-process node graph once per process, applying
// configuration the way cmd/cli/access_control.go's accessInit lazily
// builds its controller from core.CurrentLedger().
func rootInit(cmd *cobra.Command, _ []string) error {
	initOnce.Do(func() {
		_ = godotenv.Load()

		cfg, err := config.LoadFromEnv()
		if err != nil {
			log.WithError(err).Warn("no config file found, using built-in defaults")
			cfg = &config.Config{}
			cfg.Posts.DefaultCooldownSeconds = 60
			cfg.Posts.MaxBatchSize = 10
			cfg.Posts.BatchCooldownSeconds = 300
		}
		if cfg.Logging.Level != "" {
			if lvl, perr := log.ParseLevel(cfg.Logging.Level); perr == nil {
				log.SetLevel(lvl)
			}
		}

		if cfg.Node.AdminAddress != "" {
			admin, err = core.ParseAddress(cfg.Node.AdminAddress)
			if err != nil {
				initErr = fmt.Errorf("invalid node.admin_address %q: %w", cfg.Node.AdminAddress, err)
				return
			}
		}

		store = core.NewInMemoryStore()
		nftq := core.NewStaticNFTQuerier()
		if cfg.Node.NFTFixture != "" {
			if loaded, ferr := core.LoadStaticNFTQuerierFromYAML(cfg.Node.NFTFixture); ferr == nil {
				nftq = loaded
			} else {
				log.WithError(ferr).Warn("failed to load nft fixture, using empty querier")
			}
		}
		clk := core.NewClock()
		roles = core.NewRoleManager(store, admin)
		tribes = core.NewTribeController(store, nftq, clk)
		posts = core.NewPostMinter(store, roles, tribes, nftq, clk)
		profiles = core.NewProfileNFTMinter(store, roles)

		// The instantiator administers its own rate limiting and profile
		// minting by default; DEFAULT_ADMIN_ROLE is admin-of both roles
		// until set_role_admin reassigns them.
		_ = roles.GrantRole(admin, core.RateLimitManagerRole, admin)
		_ = roles.GrantRole(admin, core.ProfileMinterRole, admin)

		if cfg.Posts.DefaultCooldownSeconds > 0 {
			_ = posts.SetPostTypeCooldown(admin, core.PostTypeText, cfg.Posts.DefaultCooldownSeconds)
		}
		for t, secs := range cfg.Posts.TypeCooldowns {
			_ = posts.SetPostTypeCooldown(admin, core.PostType(t), secs)
		}
		if cfg.Posts.MaxBatchSize > 0 {
			_ = posts.SetBatchPostingLimits(admin, cfg.Posts.MaxBatchSize, cfg.Posts.BatchCooldownSeconds)
		}
	})
	return initErr
}

func main() {
	rootCmd := &cobra.Command{
		Use:               "socialgraphd",
		Short:             "tribenet social-graph core: roles, tribes, posts, profile NFTs",
		PersistentPreRunE: rootInit,
	}
	rootCmd.AddCommand(roleCmd, tribeCmd, postCmd, profileCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// parseAddr decodes a CLI-supplied address argument, grounded on
// cmd/cli/access_control.go's acDecodeAddr helper.
func parseAddr(s string) (core.Address, error) {
	return core.ParseAddress(s)
}

func callerFlag(cmd *cobra.Command) (core.Address, error) {
	s, _ := cmd.Flags().GetString("caller")
	if s == "" {
		return admin, nil
	}
	return parseAddr(s)
}

// hexDecode strips an optional "0x" prefix before decoding, matching how
// cmd/cli's address and signature arguments are conventionally supplied.
func hexDecode(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}
