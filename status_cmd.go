package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/streamcore/ttsqueue/internal/playback"
	"github.com/streamcore/ttsqueue/internal/tts"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show what a running daemon is playing",
	Long:    paragraph(fmt.Sprintf("\n%s the playback state, settings and queue of a running daemon.", keyword("Print"))),
	Example: paragraph("ttsqueue status\nttsqueue status --json"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		status, raw, err := fetchStatus("http://" + cfg.Server.Addr + "/api/queue")
		if err != nil {
			return err
		}
		if asJSON {
			_, err := os.Stdout.Write(append(raw, '\n'))
			return err //nolint:wrapcheck
		}
		fmt.Print(formatStatus(status, terminalWidth(), time.Now()))
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("json", false, "print the raw status document")
}

func fetchStatus(url string) (playback.Status, []byte, error) {
	var status playback.Status
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url) //nolint:noctx
	if err != nil {
		return status, nil, fmt.Errorf("unable to reach the daemon: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return status, nil, fmt.Errorf("unable to read status: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return status, nil, fmt.Errorf("HTTP status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, &status); err != nil {
		return status, nil, fmt.Errorf("unable to decode status: %w", err)
	}
	return status, raw, nil
}

func terminalWidth() int {
	fd := int(os.Stdout.Fd()) //nolint:gosec
	if !term.IsTerminal(fd) {
		return 80
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return 80
	}
	return min(w, 120)
}

func formatStatus(s playback.Status, width int, now time.Time) string {
	var b strings.Builder

	enabled := "on"
	if !s.Enabled {
		enabled = "off"
	}
	fmt.Fprintf(&b, "%s %s  %s %s  %s %d  %s %.1f  %s %+d\n",
		label("state"), s.State,
		label("playback"), enabled,
		label("volume"), s.Settings.Volume,
		label("speed"), s.Settings.DisplaySpeed(),
		label("pitch"), s.Settings.Pitch,
	)

	if len(s.Queue) == 0 {
		b.WriteString(label("queue is empty") + "\n")
		return b.String()
	}

	for i, r := range s.Queue {
		line := fmt.Sprintf("%2d. %s: %s", i+1, r.User, describe(r))
		ago := " " + label(humanize.RelTime(r.EnqueuedAt, now, "ago", "from now"))
		line = truncate(line, width-lipgloss.Width(ago))
		if r.Status == tts.StatusPlaying {
			line = playing(line)
		}
		b.WriteString(line + ago + "\n")
	}
	return b.String()
}

func describe(r tts.Request) string {
	msg := strings.Join(strings.Fields(r.Message), " ")
	if msg == "" {
		return "(audio)"
	}
	return msg
}

func truncate(s string, width int) string {
	if width <= 1 || lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes)) > width-1 {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
