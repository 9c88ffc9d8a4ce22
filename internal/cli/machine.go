package cli

import (
	"fmt"
	"strings"

	"github.com/ChuLiYu/labqueue/internal/model"
	"github.com/ChuLiYu/labqueue/pkg/types"
	"github.com/spf13/cobra"
)

func (a *app) buildMachineCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "machine",
		Short: "Manage lab machines",
	}
	cmd.AddCommand(a.buildMachineAddCommand())
	cmd.AddCommand(a.buildMachineListCommand())
	cmd.AddCommand(a.buildMachineRemoveCommand())
	cmd.AddCommand(a.buildMachineStatusCommand("enable", types.MachineEnabled))
	cmd.AddCommand(a.buildMachineStatusCommand("disable", types.MachineDisabled))
	cmd.AddCommand(a.buildMachineJobsCommand())
	return cmd
}

func (a *app) buildMachineAddCommand() *cobra.Command {
	var disabled bool
	var tags []string

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := types.MachineEnabled
			if disabled {
				status = types.MachineDisabled
			}
			mc, err := model.NewMachine(args[0], status, tags)
			if err != nil {
				return err
			}
			if err := a.manager().AddMachine(mc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "New machine added: %s\n", mc)
			return a.commit(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&disabled, "disabled", false, "add the machine disabled")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "tag (repeatable)")
	return cmd
}

func (a *app) buildMachineListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list [KEYWORD...]",
		Short: "List machines, optionally those whose name contains a keyword",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := a.manager()
			if len(args) > 0 {
				m.UpdateFilteredMachineList(model.MachineNameContainsKeywords(args))
			} else {
				m.UpdateFilteredMachineList(nil)
			}
			printList(cmd.OutOrStdout(), m.FilteredMachineList(), "machines")
			return nil
		},
	}
}

func (a *app) buildMachineRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove a machine and its finished or cancelled jobs",
		Long: `Remove a machine. Under the reject policy a machine with QUEUED or
ONGOING jobs cannot be removed; under the cascade policy those jobs are
cancelled and removed with it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := types.NewMachineName(args[0])
			if err != nil {
				return err
			}
			removed, jobs, err := a.manager().RemoveMachine(name)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Deleted machine: %s\n", removed.Name)
			if len(jobs) > 0 {
				names := make([]string, len(jobs))
				for i, j := range jobs {
					names[i] = j.Name.String()
				}
				fmt.Fprintf(out, "Removed %d jobs: %s\n", len(jobs), strings.Join(names, ", "))
			}
			return a.commit(cmd.Context())
		},
	}
}

func (a *app) buildMachineStatusCommand(verb string, status types.MachineStatus) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " NAME",
		Short: fmt.Sprintf("Mark a machine %s", strings.ToLower(string(status))),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := types.NewMachineName(args[0])
			if err != nil {
				return err
			}
			mc, err := a.manager().UpdateMachineStatus(name, status)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Machine %s is now %s\n", mc.Name, mc.Status)
			return a.commit(cmd.Context())
		},
	}
}

func (a *app) buildMachineJobsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs NAME",
		Short: "List the jobs of one machine and its active hours",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := types.NewMachineName(args[0])
			if err != nil {
				return err
			}
			m := a.manager()
			hours, err := m.TotalActiveDuration(name)
			if err != nil {
				return err
			}
			m.UpdateFilteredJobList(model.JobsOnMachine(name))
			out := cmd.OutOrStdout()
			printList(out, m.FilteredJobList(), "jobs")
			fmt.Fprintf(out, "Active hours on %s: %g\n", name, hours)
			return nil
		},
	}
}
