package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"

	"panel-lab/consumer"
	"panel-lab/domain"
	"panel-lab/domain/event"
	"panel-lab/projection"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerURL     string `env:"PANEL_SERVER_URL,default=http://localhost:8080"`
	SessionID     string `env:"PANEL_SESSION_ID"`
	ParticipantID string `env:"PANEL_PARTICIPANT_ID,default=*"`
	LogLevel      string `env:"LOG_LEVEL,required=true"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run drives an interactive session: read a message, post the turn,
// render the push stream live, then reconcile and print the repaired
// timeline.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if config.SessionID == "" {
		config.SessionID = uuid.NewString()
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transcripts := newTranscriptClient(config.ServerURL)
	reconciler := projection.NewReconciler(log, transcripts)
	view := consumer.NewConsumer(log, config.SessionID, reconciler)

	color.Greenp(">>> Connected to " + config.ServerURL + "\n")
	color.Grayp("Session " + config.SessionID + " — type a message, Ctrl+C to quit\n")

	stdin := bufio.NewScanner(os.Stdin)
	for {
		color.Cyanp("> ")
		if !stdin.Scan() {
			return exitOK, nil
		}
		content := strings.TrimSpace(stdin.Text())
		if content == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return exitOK, nil
		}

		view.SeedUserEntry(content)
		if err := runTurn(ctx, config, view, content); err != nil {
			if ctx.Err() != nil {
				return exitOK, nil
			}
			log.Warn("Stream interrupted, reconciling from store", "error", err)
		}

		// Read-repair pass: done or dropped, the store has the truth.
		view.Reconcile(ctx)
		renderTimeline(view.View())
	}
}

// runTurn posts the turn and consumes its push stream until the
// terminal marker or a transport failure.
func runTurn(ctx context.Context, config Config, view *consumer.Consumer, content string) error {
	cmd := domain.PostTurnCommand{
		SessionID:     config.SessionID,
		Content:       content,
		ParticipantID: config.ParticipantID,
	}
	body, err := json.Marshal(cmd)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		config.ServerURL+"/turns", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	// No client timeout: a turn legitimately runs for many seconds and
	// the server's heartbeats keep the connection warm.
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("turn rejected (%d): %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	frames := make(chan consumer.Frame, 16)
	parseErr := make(chan error, 1)
	go func() {
		parseErr <- consumer.ParseFrames(ctx, resp.Body, frames)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame := <-frames:
			if frame.Terminal {
				return nil
			}
			view.Apply(frame.Event)
			renderLive(frame.Event)
		case err := <-parseErr:
			if errors.Is(err, io.EOF) && view.Settled() {
				return nil
			}
			return err
		}
	}
}

// renderLive prints the event as it arrives, chat style.
func renderLive(e event.StreamEvent) {
	switch evt := e.(type) {
	case event.TypingStart:
		participantColor(evt.ParticipantColor).Printf("%s is typing...\n", evt.ParticipantName)
	case event.CompleteResponse:
		participantColor(evt.ParticipantColor).Printf("%s: ", evt.ParticipantName)
		fmt.Println(evt.Content)
	case event.Error:
		color.Redp(fmt.Sprintf("%s failed: %s\n", evt.ParticipantName, evt.Error))
	case event.CompletionStats:
		color.Grayp(fmt.Sprintf("turn settled: %d/%d ok in %dms (avg %dms)\n",
			evt.Successful, evt.Total, evt.DurationMs, evt.AvgPerParticipantMs))
	}
}

// renderTimeline prints the reconciled session timeline as a table.
func renderTimeline(v consumer.View) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Time", "Author", "Content"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, entry := range v.Timeline {
		author := "you"
		if entry.Role == domain.RoleParticipant {
			author = entry.ParticipantName
		}
		table.Append([]string{
			entry.At.Local().Format(time.TimeOnly),
			author,
			entry.Content,
		})
	}
	table.Render()
}

func participantColor(hex string) *color.RGBColor {
	if hex == "" {
		c := color.HEX("#aaaaaa")
		return &c
	}
	c := color.HEX(hex)
	return &c
}

// transcriptClient reads transcripts over the HTTP API. Append is
// server-side only; the client never writes entries directly.
type transcriptClient struct {
	baseURL    string
	httpClient *http.Client
}

func newTranscriptClient(baseURL string) *transcriptClient {
	return &transcriptClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *transcriptClient) Append(domain.TranscriptEntry) error {
	return errors.New("transcript writes go through the server")
}

func (c *transcriptClient) Fetch(sessionID string) ([]domain.TranscriptEntry, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/transcripts/" + sessionID)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcript fetch returned %d", resp.StatusCode)
	}

	var payload struct {
		Entries []domain.TranscriptEntry `json:"entries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return payload.Entries, nil
}
