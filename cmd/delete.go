package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/credvault/credvault/internal/session"
)

var deleteYes bool

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"remove"},
	Short:   "Delete a credential",
	Long:    `Delete a credential from the vault. Asks for confirmation unless --yes is given.`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		if err := checkID(id); err != nil {
			return err
		}

		return withSession(func(s *session.Session) error {
			r, err := s.Get(id)
			if err != nil {
				return err
			}
			r.Wipe()
			if !deleteYes && !confirm(fmt.Sprintf("Delete credential '%s'?", id)) {
				fmt.Println("Aborted")
				return nil
			}
			if err := s.Delete(id); err != nil {
				return err
			}
			fmt.Printf("Credential '%s' deleted\n", id)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Do not ask for confirmation")
}
