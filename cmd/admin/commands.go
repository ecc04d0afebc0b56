package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"liveroom/backend/internal/models"
)

var purgeCmd = &cobra.Command{
	Use:   "purge <session-id>",
	Short: "Delete the chat history of a session",
	Long:  `Irreversibly deletes every chat message of the session. Connected clients are told to clear their view.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runPurge,
}

var endCmd = &cobra.Command{
	Use:   "end <session-id>",
	Short: "End a session",
	Long:  `Stops running recordings and moves the session to ended, as if its host had ended it.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runEnd,
}

var recordingsCmd = &cobra.Command{
	Use:   "recordings <session-id>",
	Short: "List the recordings of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordings,
}

func runPurge(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	n, err := app.chat.PurgeAsOperator(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d messages from session %s.\n", n, args[0])
	return nil
}

func runEnd(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	session, err := app.lifecycle.ForceStatus(cmd.Context(), args[0], models.StatusEnded)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Session %q (%s) is %s.\n", session.Name, session.ID, session.Status)
	return nil
}

func runRecordings(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	recs, err := app.recordings.List(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No recordings.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "JOB\tFILE\tDURATION\tSIZE\tCREATED\tURL")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.JobID, r.FileName,
			(time.Duration(r.DurationMs) * time.Millisecond).String(),
			r.SizeBytes, r.CreatedAt.Format(time.RFC3339), r.URL)
	}
	return w.Flush()
}
