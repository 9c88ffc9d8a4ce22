package cli

import (
	"fmt"

	"github.com/ChuLiYu/labqueue/internal/model"
	"github.com/ChuLiYu/labqueue/pkg/types"
	"github.com/spf13/cobra"
)

// ============================================================================
// person
// ============================================================================

func (a *app) buildPersonCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "person",
		Short: "Manage lab users",
	}
	cmd.AddCommand(a.buildPersonAddCommand())
	cmd.AddCommand(a.buildPersonListCommand())
	cmd.AddCommand(a.buildPersonRemoveCommand())
	return cmd
}

func (a *app) buildPersonAddCommand() *cobra.Command {
	var phone, email, address string
	var tags []string

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := model.NewPerson(args[0], phone, email, address, tags)
			if err != nil {
				return err
			}
			if err := a.manager().AddPerson(p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "New person added: %s\n", p)
			return a.commit(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&phone, "phone", "p", "", "phone number")
	cmd.Flags().StringVarP(&email, "email", "e", "", "email address")
	cmd.Flags().StringVarP(&address, "address", "a", "", "postal address")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "tag (repeatable)")
	cmd.MarkFlagRequired("phone")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("address")
	return cmd
}

func (a *app) buildPersonListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list [KEYWORD...]",
		Short: "List persons, optionally those whose name contains a keyword",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := a.manager()
			var pred func(model.Person) bool
			if len(args) > 0 {
				pred = model.PersonNameContainsKeywords(args)
			}
			m.UpdateFilteredPersonList(pred)
			printList(cmd.OutOrStdout(), m.FilteredPersonList(), "persons")
			return nil
		},
	}
}

func (a *app) buildPersonRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove a person who owns no jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := types.NewPersonName(args[0])
			if err != nil {
				return err
			}
			p, err := a.manager().RemovePerson(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted person: %s\n", p.Name)
			return a.commit(cmd.Context())
		},
	}
}

// ============================================================================
// admin
// ============================================================================

func (a *app) buildAdminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage lab admins",
	}
	cmd.AddCommand(a.buildAdminAddCommand())
	cmd.AddCommand(a.buildAdminListCommand())
	cmd.AddCommand(a.buildAdminRemoveCommand())
	cmd.AddCommand(a.buildAdminLoginCommand())
	return cmd
}

func (a *app) buildAdminAddCommand() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "add USERNAME",
		Short: "Add an admin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := model.NewAdmin(args[0], password)
			if err != nil {
				return err
			}
			if err := a.manager().AddAdmin(admin); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "New admin added: %s\n", admin)
			return a.commit(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password (6 to 72 bytes)")
	cmd.MarkFlagRequired("password")
	return cmd
}

func (a *app) buildAdminListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list [KEYWORD...]",
		Short: "List admins",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := a.manager()
			var pred func(model.Admin) bool
			if len(args) > 0 {
				pred = model.AdminNameContainsKeywords(args)
			}
			m.UpdateFilteredAdminList(pred)
			printList(cmd.OutOrStdout(), m.FilteredAdminList(), "admins")
			return nil
		},
	}
}

func (a *app) buildAdminRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove USERNAME",
		Short: "Remove an admin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := types.NewUsername(args[0])
			if err != nil {
				return err
			}
			admin, err := a.manager().RemoveAdmin(username)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted admin: %s\n", admin)
			return a.commit(cmd.Context())
		},
	}
}

func (a *app) buildAdminLoginCommand() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login USERNAME",
		Short: "Check admin credentials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := a.manager().AuthenticateAdmin(args[0], password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", admin)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.MarkFlagRequired("password")
	return cmd
}
