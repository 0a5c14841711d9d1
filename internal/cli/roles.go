package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/hookwarden/internal/identity"
	"github.com/ppiankov/hookwarden/internal/model"
)

var rolesEmail string

func init() {
	rootCmd.AddCommand(rolesCmd)
	rolesCmd.Flags().StringVar(&rolesEmail, "email", "", "Resolve this email instead of the local git identity")
}

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "Show the resolved identity and its role rules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		resolver := cfg.Resolver(identity.GitEmail{})

		var id model.Identity
		if rolesEmail != "" {
			id = resolver.Resolve(rolesEmail)
		} else {
			id = resolver.ResolveLocal(cmd.Context())
		}
		return printRoles(cmd.OutOrStdout(), resolver, id)
	},
}

func printRoles(w io.Writer, resolver *identity.Resolver, id model.Identity) error {
	if !id.Known() {
		fmt.Fprintln(w, "identity: unknown (identity gate allows everything)")
	} else {
		fmt.Fprintf(w, "identity: %s\n", id)
		out, err := yaml.Marshal(resolver.RulesFor(id))
		if err != nil {
			return err
		}
		fmt.Fprint(w, string(out))
	}

	table := resolver.Identities()
	emails := make([]string, 0, len(table))
	for email := range table {
		emails = append(emails, email)
	}
	sort.Strings(emails)
	fmt.Fprintln(w, "\nknown identities:")
	for _, email := range emails {
		fmt.Fprintf(w, "  %-36s %s\n", email, table[email])
	}
	return nil
}
