package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okian/plusolver/internal/domain/model"
	"github.com/okian/plusolver/internal/domain/types"
	"github.com/okian/plusolver/pkg/logger"
)

const maxFrameBytes = 1 << 20

type watchFlags struct {
	url           string
	target        int
	fullKnowledge bool
	email         string
	apiKey        string
}

func newWatchCommand(e *env) *cobra.Command {
	var f watchFlags
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Start a run on a relay and follow its progress stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			creds, err := e.credentials(f.email)
			if err != nil {
				return err
			}
			req := types.SessionRequest{
				Email:         creds.Identifier,
				Password:      creds.Secret,
				FullKnowledge: f.fullKnowledge,
			}
			if cmd.Flags().Changed("target") {
				t := f.target
				req.TargetScore = &t
			}
			if f.apiKey == "" {
				f.apiKey = os.Getenv(envAPIKey)
			}

			console := NewConsole(e.out)
			if err := Watch(cmd.Context(), http.DefaultClient, f.url, f.apiKey, req, console.Send); err != nil {
				return err
			}
			return console.Finish()
		},
	}
	cmd.Flags().StringVar(&f.url, "url", "http://localhost:8000", "relay base URL")
	cmd.Flags().IntVar(&f.target, "target", 100, "percent of items to answer correctly (0-100)")
	cmd.Flags().BoolVar(&f.fullKnowledge, "full-knowledge", false, "repeat attempts until 100% knowledge")
	cmd.Flags().StringVar(&f.email, "email", "", "operator email (prompted when empty)")
	cmd.Flags().StringVar(&f.apiKey, "api-key", "", "relay API key (default $"+envAPIKey+")")
	return cmd
}

// Watch posts req to the relay's stream endpoint and hands each event to fn
// until the closed event or the end of the stream.
func Watch(ctx context.Context, client *http.Client, baseURL, apiKey string, req types.SessionRequest, fn func(context.Context, model.ProgressEvent) error) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+"/run-session-stream", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("connect relay: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Debug(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		var e types.ErrorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, maxFrameBytes)).Decode(&e)
		if e.Message == "" {
			e.Message = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("%w: %d %s", ErrRelay, resp.StatusCode, e.Message)
	}
	logger.Get().Info(ctx, "following run", logger.String("run_id", resp.Header.Get("X-Run-ID")))
	return ReadEvents(ctx, resp.Body, fn)
}

// ReadEvents decodes SSE data frames from r and hands each event to fn. It
// returns after the closed event, or nil at the end of r.
func ReadEvents(ctx context.Context, r io.Reader, fn func(context.Context, model.ProgressEvent) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxFrameBytes)
	for sc.Scan() {
		data, ok := strings.CutPrefix(sc.Text(), "data:")
		if !ok {
			continue
		}
		var ev model.ProgressEvent
		if err := json.Unmarshal([]byte(strings.TrimSpace(data)), &ev); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		if err := fn(ctx, ev); err != nil {
			return err
		}
		if ev.Stage == model.StageClosed {
			return nil
		}
	}
	return sc.Err()
}
