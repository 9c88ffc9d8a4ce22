package cli

import (
	"fmt"

	"github.com/ChuLiYu/labqueue/internal/model"
	"github.com/ChuLiYu/labqueue/pkg/types"
	"github.com/spf13/cobra"
)

func (a *app) buildJobCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Manage fabrication jobs",
		Long: `Manage fabrication jobs. A job is referred to by its id or by a unique
prefix of at least 4 characters, as printed by "job list".`,
	}
	cmd.AddCommand(a.buildJobAddCommand())
	cmd.AddCommand(a.buildJobListCommand())
	cmd.AddCommand(a.buildJobTransitionCommand("start", types.StatusOngoing))
	cmd.AddCommand(a.buildJobTransitionCommand("finish", types.StatusFinished))
	cmd.AddCommand(a.buildJobTransitionCommand("cancel", types.StatusCancelled))
	cmd.AddCommand(a.buildJobEditCommand())
	cmd.AddCommand(a.buildJobRemoveCommand())
	cmd.AddCommand(a.buildJobRequestDeleteCommand())
	cmd.AddCommand(a.buildJobRestoreCommand())
	cmd.AddCommand(a.buildJobPurgeCommand())
	return cmd
}

func (a *app) buildJobAddCommand() *cobra.Command {
	var spec model.JobSpec
	var priority string

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Queue a job on a machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec.Name = args[0]
			spec.Priority = types.Priority(priority)
			j, err := a.manager().AddJob(spec)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "New job added: %s\n", j)
			return a.commit(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&spec.Machine, "machine", "m", "", "machine name")
	cmd.Flags().StringVarP(&spec.Owner, "owner", "o", "", "owner name")
	cmd.Flags().Float64VarP(&spec.Duration, "duration", "d", 0, "expected duration in hours")
	cmd.Flags().StringVar(&priority, "priority", string(types.PriorityNormal), "NORMAL or URGENT")
	cmd.Flags().StringVarP(&spec.Note, "note", "n", "", "free text note")
	cmd.Flags().StringSliceVarP(&spec.Tags, "tag", "t", nil, "tag (repeatable)")
	cmd.MarkFlagRequired("machine")
	cmd.MarkFlagRequired("owner")
	cmd.MarkFlagRequired("duration")
	return cmd
}

func (a *app) buildJobListCommand() *cobra.Command {
	var machine string
	var statuses []string

	cmd := &cobra.Command{
		Use:   "list [KEYWORD...]",
		Short: "List jobs, optionally filtered by name keyword, machine or status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var preds []func(model.Job) bool
			if len(args) > 0 {
				preds = append(preds, model.JobNameContainsKeywords(args))
			}
			if machine != "" {
				name, err := types.NewMachineName(machine)
				if err != nil {
					return err
				}
				preds = append(preds, model.JobsOnMachine(name))
			}
			if len(statuses) > 0 {
				parsed := make([]types.JobStatus, len(statuses))
				for i, s := range statuses {
					st, err := types.ParseJobStatus(s)
					if err != nil {
						return err
					}
					parsed[i] = st
				}
				preds = append(preds, model.JobsWithStatus(parsed...))
			}

			m := a.manager()
			m.UpdateFilteredJobList(allOf(preds))
			printList(cmd.OutOrStdout(), m.FilteredJobList(), "jobs")
			return nil
		},
	}
	cmd.Flags().StringVarP(&machine, "machine", "m", "", "only jobs on this machine")
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "only jobs in these statuses")
	return cmd
}

// allOf joins predicates with AND; no predicates shows everything.
func allOf(preds []func(model.Job) bool) func(model.Job) bool {
	if len(preds) == 0 {
		return nil
	}
	return func(j model.Job) bool {
		for _, p := range preds {
			if !p(j) {
				return false
			}
		}
		return true
	}
}

func (a *app) buildJobTransitionCommand(verb string, to types.JobStatus) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " JOB",
		Short: fmt.Sprintf("Move a job to %s", to),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := a.manager()
			j, err := m.ResolveJob(args[0])
			if err != nil {
				return err
			}
			j, err = m.UpdateJobStatus(j.ID, to)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job updated: %s\n", j)
			return a.commit(cmd.Context())
		},
	}
}

func (a *app) buildJobEditCommand() *cobra.Command {
	var priority, note string
	var duration float64
	var tags []string

	cmd := &cobra.Command{
		Use:   "edit JOB",
		Short: "Change priority, duration, note or tags of a queued or ongoing job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var edit model.JobEdit
			flags := cmd.Flags()
			if flags.Changed("priority") {
				p, err := types.ParsePriority(priority)
				if err != nil {
					return err
				}
				edit.Priority = &p
			}
			if flags.Changed("duration") {
				edit.Duration = &duration
			}
			if flags.Changed("note") {
				edit.Note = &note
			}
			if flags.Changed("tag") {
				edit.Tags = &tags
			}
			if edit == (model.JobEdit{}) {
				return fmt.Errorf("nothing to edit: pass at least one of --priority, --duration, --note, --tag")
			}

			m := a.manager()
			j, err := m.ResolveJob(args[0])
			if err != nil {
				return err
			}
			j, err = m.EditJob(j.ID, edit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Edited job: %s\n", j)
			return a.commit(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&priority, "priority", "", "NORMAL or URGENT")
	cmd.Flags().Float64VarP(&duration, "duration", "d", 0, "expected duration in hours")
	cmd.Flags().StringVarP(&note, "note", "n", "", "free text note")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "replace the tags (repeatable)")
	return cmd
}

func (a *app) buildJobRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove JOB",
		Short: "Delete a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := a.manager()
			j, err := m.ResolveJob(args[0])
			if err != nil {
				return err
			}
			j, err = m.RemoveJob(j.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted job: %s\n", j.Name)
			return a.commit(cmd.Context())
		},
	}
}

func (a *app) buildJobRequestDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "request-delete JOB",
		Short: "Hide a job from listings until an admin purges or restores it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := a.manager()
			j, err := m.ResolveJob(args[0])
			if err != nil {
				return err
			}
			j, err = m.RequestJobDeletion(j.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deletion requested: %s\n", j.Name)
			return a.commit(cmd.Context())
		},
	}
}

func (a *app) buildJobRestoreCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "restore JOB",
		Short: "Withdraw a deletion request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := a.manager()
			j, err := m.ResolveJob(args[0])
			if err != nil {
				return err
			}
			j, err = m.RestoreJob(j.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored job: %s\n", j.Name)
			return a.commit(cmd.Context())
		},
	}
}

func (a *app) buildJobPurgeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete every job with a pending deletion request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			purged, err := a.manager().PurgeDeletionRequests()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d jobs purged!\n", len(purged))
			if len(purged) == 0 {
				return nil
			}
			return a.commit(cmd.Context())
		},
	}
}
