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
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var secretBytes int

// secretCmd generates a random token signing secret
var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Generate a token signing secret",
	Long: `Generate a cryptographically random secret suitable for the
tokens.secret config setting or the PASSKEY_TOKEN_SECRET environment
variable.`,
	Run: func(cmd *cobra.Command, args []string) {
		buf := make([]byte, secretBytes)
		if _, err := rand.Read(buf); err != nil {
			handleError(fmt.Errorf("failed to generate secret: %w", err))
		}

		printer := NewPrinter(getConfig().OutputFormat, os.Stdout)
		if err := printer.PrintSecret(base64.StdEncoding.EncodeToString(buf)); err != nil {
			handleError(err)
		}
	},
}

func init() {
	secretCmd.Flags().IntVar(&secretBytes, "bytes", 32, "secret length in bytes before encoding")
}
