package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"dialer-platform/internal/dialer"
	"dialer-platform/internal/phone"
	"dialer-platform/internal/voice"

	"github.com/spf13/cobra"
)

var (
	callTokenURL   string
	callAPIKey     string
	callUserID     string
	callGatewayURL string
)

var callCmd = &cobra.Command{
	Use:   "call <number>",
	Short: "Place an outbound call",
	Long: `Place an outbound call and stay attached until it ends.

The command connects to the realtime gateway, dials the number, and prints
call state as it changes. Ctrl-C hangs up before exiting.`,
	Args: cobra.ExactArgs(1),
	RunE: runCall,
}

func init() {
	callCmd.Flags().StringVar(&callTokenURL, "token-url", envOr("DIALER_TOKEN_URL", "http://localhost:8080/v1/token"), "token endpoint")
	callCmd.Flags().StringVar(&callAPIKey, "api-key", os.Getenv("DIALER_API_KEY"), "bearer key for the token endpoint")
	callCmd.Flags().StringVar(&callUserID, "user", os.Getenv("DIALER_USER"), "user identity for the capability token")
	callCmd.Flags().StringVar(&callGatewayURL, "gateway-url", envOr("DIALER_GATEWAY_URL", "wss://localhost:8081/realtime"), "realtime gateway endpoint")

	rootCmd.AddCommand(callCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func runCall(cmd *cobra.Command, args []string) error {
	res := phone.Validate(args[0])
	if !res.IsValid {
		return errors.New(res.ErrorMessage)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tokens := &voice.HTTPTokenSource{
		Endpoint: callTokenURL,
		APIKey:   callAPIKey,
		UserID:   callUserID,
	}
	// The token endpoint counted a session slot against us; give it back on
	// the way out so repeated runs don't hit the per-user cap.
	defer releaseSessionSlot()

	client := &voice.WSClient{URL: callGatewayURL}

	conn := dialer.NewConnectionManager(client, tokens, dialer.ConnectionManagerOptions{})
	defer conn.Close()

	mgr := dialer.NewCallManager(dialer.CallManagerOptions{
		Sessions:  conn,
		OnError:   func(msg string) { fmt.Fprintln(os.Stderr, msg) },
		OnSuccess: func(msg string) { fmt.Println(msg) },
	})
	defer mgr.Close()

	fmt.Println("Connecting to the voice platform...")
	conn.Initialize(ctx)
	if err := waitForConnection(ctx, conn); err != nil {
		return err
	}

	mgr.SetPhoneNumber(res.NormalizedNumber)
	fmt.Printf("Dialing %s\n", phone.FormatForDisplay(res.NormalizedNumber))
	if err := mgr.StartCall(ctx); err != nil {
		return err
	}

	return watchCall(ctx, mgr)
}

// releaseSessionSlot tells the token endpoint this client's session is gone.
// Best-effort: the server-side slot TTL covers us if this never lands.
func releaseSessionSlot() {
	if callUserID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	body := strings.NewReader(fmt.Sprintf(`{"userId":%q}`, callUserID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, callTokenURL, body)
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+callAPIKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Debug("session slot release failed", "err", err)
		return
	}
	_ = resp.Body.Close()
}

// waitForConnection polls until the session is up or retries are exhausted.
func waitForConnection(ctx context.Context, conn *dialer.ConnectionManager) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		snap := conn.Snapshot()
		switch snap.Status {
		case dialer.ConnectionConnected:
			return nil
		case dialer.ConnectionError:
			// RetryCount > 0 means a retry is still pending.
			if snap.RetryCount == 0 {
				return errors.New(snap.ErrorMessage)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// watchCall prints state transitions until the call winds down to Idle.
// A cancelled context hangs up before returning.
func watchCall(ctx context.Context, mgr *dialer.CallManager) error {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	last := dialer.CallStateIdle
	sawCall := false
	for {
		snap := mgr.Snapshot()
		if snap.State != last {
			switch snap.State {
			case dialer.CallStateRinging:
				fmt.Println("Ringing...")
			case dialer.CallStateEnded:
				if snap.ErrorMessage != "" {
					fmt.Fprintln(os.Stderr, snap.ErrorMessage)
				}
				fmt.Printf("Call ended after %s\n", mgr.FormattedDuration())
			}
			last = snap.State
		}
		if snap.IsCallActive() {
			sawCall = true
		}
		if sawCall && snap.State == dialer.CallStateIdle {
			return nil
		}

		select {
		case <-ctx.Done():
			if mgr.Snapshot().IsCallActive() {
				fmt.Println("Hanging up...")
				hangupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				mgr.EndCall(hangupCtx)
				cancel()
			}
			return nil
		case <-ticker.C:
		}
	}
}
