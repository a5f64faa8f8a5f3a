package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/credvault/credvault/internal/session"
)

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a credential",
	Long:  `Show the username and password stored under id.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkID(args[0]); err != nil {
			return err
		}

		return withSession(func(s *session.Session) error {
			r, err := s.Get(args[0])
			if err != nil {
				return err
			}
			defer r.Wipe()

			fmt.Printf("ID: %s\n", r.ID)
			fmt.Printf("Username: %s\n", r.Username)
			fmt.Printf("Password: %s\n", r.Password)
			fmt.Printf("Modified: %s\n", r.ModifiedAt.Local().Format("2006-01-02 15:04:05"))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
