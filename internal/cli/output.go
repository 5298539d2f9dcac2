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
	"encoding/json"
	"fmt"
	"io"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// PrintUserList prints registered users
func (p *Printer) PrintUserList(users []*passkey.User) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"users": users,
		})
	case OutputFormatText:
		if len(users) == 0 {
			fmt.Fprintln(p.writer, "No registered users")
			return nil
		}
		fmt.Fprintln(p.writer, "Registered Users:")
		for _, u := range users {
			fmt.Fprintf(p.writer, "  %s  %s  (created %s)\n",
				u.ID, u.Username, u.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintUserInfo prints a user with their credentials
func (p *Printer) PrintUserInfo(user *passkey.User, creds []*passkey.Credential) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"user":        user,
			"credentials": creds,
		})
	case OutputFormatText:
		fmt.Fprintf(p.writer, "User:         %s\n", user.ID)
		fmt.Fprintf(p.writer, "Username:     %s\n", user.Username)
		if user.DisplayName != "" {
			fmt.Fprintf(p.writer, "Display Name: %s\n", user.DisplayName)
		}
		fmt.Fprintf(p.writer, "Created:      %s\n", user.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(p.writer, "Credentials:  %d\n", len(creds))
		for _, c := range creds {
			fmt.Fprintf(p.writer, "  - %s (type=%s counter=%d registered=%s)\n",
				c.ID, c.Type, c.SignatureCounter, c.RegisteredAt.Format("2006-01-02"))
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSecret prints a generated signing secret
func (p *Printer) PrintSecret(secret string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"secret": secret,
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, secret)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status":  "success",
			"message": message,
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, message)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		})
	default:
		_, werr := fmt.Fprintf(p.writer, "Error: %v\n", err)
		return werr
	}
}

// printJSON marshals data as indented JSON
func (p *Printer) printJSON(data interface{}) error {
	enc := json.NewEncoder(p.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
