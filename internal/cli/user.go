// Copyright (c) 2026 Jeremy Hahn
// Copyright (c) 2026 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-passkey/pkg/storage/sqlite"
)

// userCmd groups administration commands for registered users
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage registered users",
	Long:  `Inspect and manage users in the credential store.`,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered users",
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		defer func() { _ = store.Close() }()

		users, err := store.ListUsers(context.Background())
		if err != nil {
			handleError(err)
		}

		printer := NewPrinter(getConfig().OutputFormat, os.Stdout)
		if err := printer.PrintUserList(users); err != nil {
			handleError(err)
		}
	},
}

var userShowCmd = &cobra.Command{
	Use:   "show <username>",
	Short: "Show a user and their credentials",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		defer func() { _ = store.Close() }()

		ctx := context.Background()
		user, err := store.GetUserByUsername(ctx, args[0])
		if err != nil {
			handleError(err)
		}

		creds, err := store.GetCredentialsByUserID(ctx, user.ID)
		if err != nil {
			handleError(err)
		}

		printer := NewPrinter(getConfig().OutputFormat, os.Stdout)
		if err := printer.PrintUserInfo(user, creds); err != nil {
			handleError(err)
		}
	},
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete <username>",
	Short: "Delete a user and all of their credentials",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		defer func() { _ = store.Close() }()

		ctx := context.Background()
		user, err := store.GetUserByUsername(ctx, args[0])
		if err != nil {
			handleError(err)
		}

		if err := store.DeleteUser(ctx, user.ID); err != nil {
			handleError(err)
		}

		printer := NewPrinter(getConfig().OutputFormat, os.Stdout)
		_ = printer.PrintSuccess(fmt.Sprintf("Deleted user %s (%s)", user.Username, user.ID))
	},
}

// openStore opens the SQLite store referenced by the server config.
func openStore() *sqlite.Store {
	cfg, err := getConfig().loadServerConfig()
	if err != nil {
		handleError(err)
	}

	if cfg.Storage.Backend != "sqlite" {
		handleError(fmt.Errorf("user commands require the sqlite storage backend, configured backend is %q", cfg.Storage.Backend))
	}

	printVerbose("Opening store %s", cfg.Storage.Path)
	store, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		handleError(err)
	}
	return store
}

func init() {
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userShowCmd)
	userCmd.AddCommand(userDeleteCmd)
}
