package cli

import (
	"fmt"

	"github.com/ChuLiYu/labqueue/pkg/types"
	"github.com/spf13/cobra"
)

func (a *app) buildStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show book status and machine load",
		Long:  "Display entity counts, jobs per status and the active hours queued on each machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.showStatus(cmd)
		},
	}
}

func (a *app) showStatus(cmd *cobra.Command) error {
	st, err := a.ctrl.GetStatus()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	s := st.Stats

	fmt.Fprintln(out, "╔═══════════════════════════════════════════════════════════╗")
	fmt.Fprintln(out, "║                 labqueue Book Status                      ║")
	fmt.Fprintln(out, "╚═══════════════════════════════════════════════════════════╝")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "💾 Storage:")
	fmt.Fprintf(out, "  ├─ Config File:  %s\n", a.configFile)
	fmt.Fprintf(out, "  ├─ Backend:      %s\n", st.Backend)
	fmt.Fprintf(out, "  ├─ Book:         %s\n", st.StoragePath)
	if st.JournalPath != "" {
		fmt.Fprintf(out, "  └─ Journal:      %s (%d entries)\n", st.JournalPath, st.JournalSeq)
	} else {
		fmt.Fprintln(out, "  └─ Journal:      disabled")
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "📋 Book:")
	fmt.Fprintf(out, "  ├─ Machines:     %d\n", s.Machines)
	fmt.Fprintf(out, "  ├─ Persons:      %d\n", s.Persons)
	fmt.Fprintf(out, "  └─ Admins:       %d\n", s.Admins)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "📊 Jobs:")
	fmt.Fprintf(out, "  ├─ Total:        %d\n", s.Jobs)
	fmt.Fprintf(out, "  ├─ ⏳ Queued:     %d\n", s.JobsByStatus[types.StatusQueued])
	fmt.Fprintf(out, "  ├─ 🔄 Ongoing:    %d\n", s.JobsByStatus[types.StatusOngoing])
	fmt.Fprintf(out, "  ├─ ✅ Finished:   %d\n", s.JobsByStatus[types.StatusFinished])
	fmt.Fprintf(out, "  ├─ ❌ Cancelled:  %d\n", s.JobsByStatus[types.StatusCancelled])
	fmt.Fprintf(out, "  └─ 🗑  Deletion requested: %d\n", s.DeletionRequested)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "🖨  Machines:")
	if len(s.Loads) == 0 {
		fmt.Fprintln(out, "  └─ none")
	}
	for i, load := range s.Loads {
		branch := "├─"
		if i == len(s.Loads)-1 {
			branch = "└─"
		}
		fmt.Fprintf(out, "  %s %-12s %-8s %6.1fh active (%d queued, %d ongoing)\n",
			branch, load.Machine, load.Status, load.ActiveDuration,
			load.Counts[types.StatusQueued], load.Counts[types.StatusOngoing])
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "📡 Metrics:")
	if st.MetricsTextfile != "" {
		fmt.Fprintf(out, "  └─ Status: ✅ Written to %s\n", st.MetricsTextfile)
	} else {
		fmt.Fprintln(out, "  └─ Status: ⚠️  Disabled")
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "═══════════════════════════════════════════════════════════")
	return nil
}
