package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/alexjbarnes/wordswipe-sync/internal/docstore"
	"github.com/alexjbarnes/wordswipe-sync/internal/merge"
	"github.com/alexjbarnes/wordswipe-sync/internal/models"
	"github.com/alexjbarnes/wordswipe-sync/internal/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what the next sync would change",
	Long: `Compare the local studied words with the remote copy without writing
anything. Words listed under "pull" would be replaced locally by the next
load, words under "push" would be replaced remotely by the next save.

Requires a cached session from a previous run.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().Bool("diff", false, "Print a line diff of the local and merged studied data")
	rootCmd.AddCommand(statusCmd)
}

// syncPreview is the outcome of comparing local and remote studied sets.
type syncPreview struct {
	Pull   []string
	Push   []string
	Local  models.StudiedSet
	Merged models.StudiedSet
}

func previewStudied(local, remote models.StudiedSet) syncPreview {
	merged := merge.Studied(local, remote)

	return syncPreview{
		Pull:   merge.Changes(local, merged),
		Push:   merge.Changes(remote, merged),
		Local:  local,
		Merged: merged,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	showDiff, _ := cmd.Flags().GetBool("diff")

	c, err := loadComponents(true)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess, err := c.identity.ResumeSession(ctx)
	if err != nil {
		return fmt.Errorf("resuming session: %w", err)
	}

	if sess == nil {
		return fmt.Errorf("no cached session; start the run command once to sign in")
	}

	local, err := state.LoadStudied(c.local)
	if err != nil {
		return fmt.Errorf("reading local studied: %w", err)
	}

	doc, err := c.store.GetDocument(ctx, docstore.StudiedPath(sess.UserID))
	if err != nil {
		return fmt.Errorf("fetching remote studied: %w", err)
	}

	remote := make(models.StudiedSet)
	if doc != nil {
		if err := doc.Decode(&remote); err != nil {
			return err
		}

		for k, v := range remote {
			if len(v) == 0 || bytes.Equal(v, []byte("null")) {
				delete(remote, k)
			}
		}
	}

	cursor, err := c.state.GetSync()
	if err != nil {
		return fmt.Errorf("reading sync cursor: %w", err)
	}

	out := cmd.OutOrStdout()
	p := previewStudied(local, remote)

	fmt.Fprintf(out, "user:       %s\n", sess.UserID)
	fmt.Fprintf(out, "last push:  %s\n", formatMillis(cursor.LastPush))
	fmt.Fprintf(out, "last pull:  %s\n", formatMillis(cursor.LastPull))
	fmt.Fprintf(out, "local:      %d words\n", len(local))
	fmt.Fprintf(out, "remote:     %d words\n", len(remote))
	writeWordList(out, "pull", p.Pull)
	writeWordList(out, "push", p.Push)

	if !showDiff {
		return nil
	}

	diff, err := studiedDiff(p.Local, p.Merged)
	if err != nil {
		return err
	}

	fmt.Fprint(out, diff)

	return nil
}

func formatMillis(ms int64) string {
	if ms <= 0 {
		return "never"
	}

	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func writeWordList(w io.Writer, label string, words []string) {
	if len(words) == 0 {
		fmt.Fprintf(w, "%-11s nothing\n", label+":")
		return
	}

	fmt.Fprintf(w, "%-11s %s\n", label+":", strings.Join(words, ", "))
}

// studiedDiff renders a line diff between two studied sets in their
// line form. Unchanged lines are omitted.
func studiedDiff(before, after models.StudiedSet) (string, error) {
	a, err := studiedLines(before)
	if err != nil {
		return "", err
	}

	b, err := studiedLines(after)
	if err != nil {
		return "", err
	}

	dmp := diffmatchpatch.New()
	chars1, chars2, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(chars1, chars2, false), lines)

	var sb strings.Builder

	for _, d := range diffs {
		var prefix string

		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		default:
			continue
		}

		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}

			sb.WriteString(prefix)
			sb.WriteString(line)
		}
	}

	return sb.String(), nil
}

// studiedLines writes one word per line, sorted, so the line diff
// lines up with words.
func studiedLines(set models.StudiedSet) (string, error) {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	var sb strings.Builder

	for _, k := range keys {
		name, err := json.Marshal(k)
		if err != nil {
			return "", fmt.Errorf("encoding word %q: %w", k, err)
		}

		var record bytes.Buffer
		if err := json.Compact(&record, set[k]); err != nil {
			return "", fmt.Errorf("encoding record for %q: %w", k, err)
		}

		sb.Write(name)
		sb.WriteString(": ")
		sb.Write(record.Bytes())
		sb.WriteString("\n")
	}

	return sb.String(), nil
}
