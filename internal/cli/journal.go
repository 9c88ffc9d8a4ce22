package cli

import (
	"fmt"
	"time"

	"github.com/ChuLiYu/labqueue/internal/storage/journal"
	"github.com/spf13/cobra"
)

func (a *app) buildJournalCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "journal",
		Short:       "Inspect the change journal",
		Annotations: map[string]string{skipBook: "true"},
	}
	cmd.AddCommand(a.buildJournalListCommand())
	cmd.AddCommand(a.buildJournalStatsCommand())
	cmd.AddCommand(a.buildJournalRepairCommand())
	return cmd
}

func (a *app) journalPath() (string, error) {
	if !a.cfg.Journal.Enabled {
		return "", fmt.Errorf("the journal is disabled in %s", a.configFile)
	}
	return a.cfg.Journal.Path, nil
}

func (a *app) buildJournalListCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:         "list",
		Short:       "Print journal entries, newest last",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipBook: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.journalPath()
			if err != nil {
				return err
			}
			entries, err := journal.ReadAll(path)
			if err != nil {
				return err
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[len(entries)-limit:]
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintf(out, "%6d %s %s\n", e.Seq, time.UnixMilli(e.Timestamp).UTC().Format(time.RFC3339), describe(e))
			}
			fmt.Fprintf(out, "%d entries listed!\n", len(entries))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "only the last N entries")
	return cmd
}

// describe renders one entry as a short sentence.
func describe(e journal.Entry) string {
	s := fmt.Sprintf("%s %s", e.Entity, e.Kind)
	switch {
	case e.Entity == "job":
		s += fmt.Sprintf(" %s (%s) on %s", e.Name, e.Key, e.Machine)
	case e.Key != "":
		s += " " + e.Key
	}
	if e.From != "" || e.To != "" {
		s += fmt.Sprintf(": %s -> %s", e.From, e.To)
	}
	return s
}

func (a *app) buildJournalStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "stats",
		Short:       "Summarise the journal file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipBook: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.journalPath()
			if err != nil {
				return err
			}
			st, err := journal.FileStats(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Journal:   %s\n", path)
			fmt.Fprintf(out, "Entries:   %d\n", st.Entries)
			fmt.Fprintf(out, "Sequence:  %d - %d\n", st.FirstSeq, st.LastSeq)
			fmt.Fprintf(out, "Size:      %d bytes\n", st.SizeBytes)
			return nil
		},
	}
}

func (a *app) buildJournalRepairCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "repair",
		Short:       "Cut the journal back to its longest valid prefix",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipBook: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.journalPath()
			if err != nil {
				return err
			}
			kept, err := journal.Repair(path, path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Journal repaired: %d entries kept\n", kept)
			return nil
		},
	}
}
