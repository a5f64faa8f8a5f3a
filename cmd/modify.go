package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/credvault/credvault/internal/crypto"
	"github.com/credvault/credvault/internal/session"
)

var (
	modifyUsername string
	modifyPassword bool
)

var modifyCmd = &cobra.Command{
	Use:     "modify <id>",
	Aliases: []string{"update"},
	Short:   "Modify an existing credential",
	Long: `Modify the username and/or password of an existing credential.
Only the fields selected are changed. Without flags, each field is offered in turn.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		if err := checkID(id); err != nil {
			return err
		}

		changeUsername := cmd.Flags().Changed("username")
		changePassword := modifyPassword
		interactive := !changeUsername && !changePassword
		if changeUsername {
			if err := checkUsername(modifyUsername); err != nil {
				return err
			}
		}

		return withSession(func(s *session.Session) error {
			current, err := s.Get(id)
			if err != nil {
				return err
			}
			current.Wipe()

			var upd session.Update
			if changeUsername {
				upd.Username = &modifyUsername
			} else if interactive && confirm(fmt.Sprintf("Change username (currently %q)?", current.Username)) {
				username, err := readLine("New username: ")
				if err != nil {
					return err
				}
				if err := checkUsername(username); err != nil {
					return err
				}
				upd.Username = &username
			}

			if changePassword || (interactive && confirm("Change password?")) {
				password, err := readPassword("Enter new password: ")
				if err != nil {
					return err
				}
				defer crypto.Zeroize(password)
				upd.Password = password
			}

			if upd.Username == nil && upd.Password == nil {
				fmt.Println("Nothing changed")
				return nil
			}
			if err := s.Modify(id, upd); err != nil {
				return fmt.Errorf("failed to modify credential: %w", err)
			}
			fmt.Printf("Credential '%s' updated\n", id)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(modifyCmd)
	modifyCmd.Flags().StringVar(&modifyUsername, "username", "", "New username")
	modifyCmd.Flags().BoolVar(&modifyPassword, "password", false, "Prompt for a new password")
}
