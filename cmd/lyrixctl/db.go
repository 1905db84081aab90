package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"lyrix/internal/config"
	database "lyrix/internal/db"
	"lyrix/internal/library"
	"lyrix/internal/lyrics"
	"lyrix/internal/session"
)

var dryRun bool

var correctCmd = &cobra.Command{
	Use:   "correct <song-id>",
	Short: "Repair out-of-order timecodes of a stored song",
	Args:  cobra.ExactArgs(1),
	RunE:  runCorrect,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert demo songs and the configured admin user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		db := database.New(cfg)
		db.AutoMigrate()
		return db.Seed(cfg.Server.AdminUser, cfg.Server.AdminPassword)
	},
}

var songsCmd = &cobra.Command{
	Use:   "songs",
	Short: "List stored songs",
	Args:  cobra.NoArgs,
	RunE:  runSongs,
}

func init() {
	correctCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the repairs without writing them")
	rootCmd.AddCommand(correctCmd, seedCmd, songsCmd)
}

func openRepo() *library.Repository {
	cfg := config.Load()
	return library.NewRepository(database.New(cfg).DB)
}

func runCorrect(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid song id %q", args[0])
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	repo := openRepo()
	song, err := repo.GetSong(ctx, uint(id))
	if err != nil {
		return err
	}

	lines := song.SortedLines()
	corr := lyrics.CorrectAll(lines)

	out := cmd.OutOrStdout()
	if corr.Count() == 0 {
		fmt.Fprintf(out, "✅ %q is already in order.\n", song.Title)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "LINE\tOLD\tNEW\tPASS")
	for _, c := range corr {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", c.Index, lyrics.FormatClock(c.OldMs), lyrics.FormatClock(c.NewMs), c.Pass)
	}
	w.Flush()

	if dryRun {
		fmt.Fprintf(out, "🧪 Dry run: %d repairs not written.\n", corr.Count())
		return nil
	}

	ch := library.TimecodeChange{
		SongID:      song.ID,
		Cause:       string(session.CauseBulk),
		Corrections: corr,
		At:          time.Now(),
	}
	for _, i := range corr.Indexes() {
		ch.Lines = append(ch.Lines, library.LineUpdate{LineID: lines[i].ID, TimeMs: lines[i].TimeMs})
	}
	if err := repo.ApplyTimecodes(ctx, ch); err != nil {
		return err
	}
	fmt.Fprintf(out, "✅ Wrote %d repairs to %q.\n", corr.Count(), song.Title)
	return nil
}

func runSongs(cmd *cobra.Command, args []string) error {
	songs, err := openRepo().ListSongs(cmd.Context())
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "ID\tARTIST\tTITLE\tLINES\tTIMED\tAUDIO")
	for _, s := range songs {
		audio := "-"
		if s.AudioKey != "" {
			audio = "yes"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\n",
			s.ID, truncate(s.Artist, 20), truncate(s.Title, 30), s.LineCount, s.TimedLines, audio)
	}
	return nil
}
