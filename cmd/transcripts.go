package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/medibot/medibot-cli/internal/paths"
	"github.com/medibot/medibot-cli/internal/transcript"
	"github.com/spf13/cobra"
)

var transcriptsCmd = &cobra.Command{
	Use:   "transcripts",
	Short: "List or show saved conversations",
}

var transcriptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved conversations, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeAll, err := openTranscripts(cmd)
		if err != nil {
			return err
		}
		defer closeAll()

		summaries, err := store.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list transcripts: %w", err)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSAVED\tSIZE")
		for _, s := range summaries {
			fmt.Fprintf(w, "%s\t%s\t%d\n", s.ID, s.SavedAt.Local().Format("2006-01-02 15:04"), s.Size)
		}
		return w.Flush()
	},
}

var transcriptsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Long:  "Print a saved conversation. The id may be any unambiguous fragment of it.",
	Short: "Print a saved conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeAll, err := openTranscripts(cmd)
		if err != nil {
			return err
		}
		defer closeAll()

		t, err := store.Find(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), renderTranscript(t))
		return nil
	},
}

func openTranscripts(cmd *cobra.Command) (*transcript.Store, func(), error) {
	cfg, closeLog, err := setup(cmd)
	if err != nil {
		return nil, nil, err
	}
	store, err := transcript.Open(paths.Transcripts(paths.Data(cfg.WorkingDir, cfg.Data.Directory)))
	if err != nil {
		closeLog()
		return nil, nil, fmt.Errorf("failed to open transcripts: %w", err)
	}
	return store, func() {
		store.Close()
		closeLog()
	}, nil
}

func renderTranscript(t *transcript.Transcript) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s (%s)\n\n", t.ID, t.Server)
	for _, m := range t.Messages {
		who := "MediBot"
		if m.IsUser() {
			who = "Tú"
		}
		fmt.Fprintf(&sb, "[%s] %s\n%s\n\n", m.CreatedAt.Local().Format("15:04"), who, m.Content)
	}
	return sb.String()
}

func init() {
	transcriptsCmd.AddCommand(transcriptsListCmd, transcriptsShowCmd)
}
