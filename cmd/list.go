package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/credvault/credvault/internal/session"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all credentials",
	Long:  `List all credential ids in the vault (without showing passwords).`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session.Session) error {
			n, err := s.Len()
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Println("No credentials found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSERNAME\tMODIFIED")
			for id := range s.List() {
				r, err := s.Get(id)
				if err != nil {
					return err
				}
				r.Wipe()
				fmt.Fprintf(w, "%s\t%s\t%s\n",
					r.ID,
					r.Username,
					r.ModifiedAt.Local().Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		})
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
