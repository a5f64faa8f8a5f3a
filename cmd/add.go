package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/credvault/credvault/internal/crypto"
	"github.com/credvault/credvault/internal/session"
)

var addUsername string

var addCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Add a new credential",
	Long:  `Add a new credential to the vault. An existing id is never overwritten; use modify instead.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		if err := checkID(id); err != nil {
			return err
		}

		username := addUsername
		if !cmd.Flags().Changed("username") {
			var err error
			if username, err = readLine("Username: "); err != nil {
				return err
			}
		}
		if err := checkUsername(username); err != nil {
			return err
		}

		return withSession(func(s *session.Session) error {
			password, err := readPassword("Enter password: ")
			if err != nil {
				return err
			}
			defer crypto.Zeroize(password)

			if err := s.Add(id, username, password); err != nil {
				return fmt.Errorf("failed to add credential: %w", err)
			}
			fmt.Printf("Credential '%s' added\n", id)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().StringVar(&addUsername, "username", "", "Username (prompted for when omitted)")
}
