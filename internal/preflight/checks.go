package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"newsflow/internal/config"
	"newsflow/internal/queue"
	"newsflow/internal/services/llm"
	"newsflow/internal/services/telegram"
)

// CheckLLM verifies that the LLM API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, name string, cfg config.LLM) Result {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Referer: cfg.Referer,
		Title:   cfg.Title,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeNetworkError("LLM API", err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("API reachable (%s)", client.Model())}
}

// CheckTelegramCredentials checks that the bot token and chat id are set.
func CheckTelegramCredentials(cfg config.Telegram) Result {
	const name = "Telegram"
	switch {
	case strings.TrimSpace(cfg.BotToken) == "":
		return Result{Name: name, Detail: "bot token missing"}
	case strings.TrimSpace(cfg.ChatID) == "":
		return Result{Name: name, Detail: "chat id missing"}
	}
	return Result{Name: name, Passed: true, Detail: "credentials present"}
}

// CheckTelegram verifies the bot token with getMe.
func CheckTelegram(ctx context.Context, cfg config.Telegram) Result {
	if result := CheckTelegramCredentials(cfg); !result.Passed {
		return result
	}
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client := telegram.NewClient(telegram.Config{
		BotToken:       cfg.BotToken,
		BaseURL:        cfg.APIBaseURL,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}, telegram.WithRetry(1, 0, 0))
	if err := client.GetMe(checkCtx); err != nil {
		return Result{Name: "Telegram", Detail: summarizeNetworkError("Bot API", err)}
	}
	return Result{Name: "Telegram", Passed: true, Detail: "bot token accepted"}
}

type healthChecker interface {
	CheckHealth(ctx context.Context) (queue.DatabaseHealth, error)
}

// CheckStore pings the item store. SQLite stores also report schema version,
// item count, and the integrity check result.
func CheckStore(ctx context.Context, items queue.Repository) Result {
	const name = "Item store"
	if items == nil {
		return Result{Name: name, Detail: "not opened"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := items.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("unreachable (%v)", err)}
	}
	hc, ok := items.(healthChecker)
	if !ok {
		return Result{Name: name, Passed: true, Detail: "reachable"}
	}
	health, err := hc.CheckHealth(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", health.DBPath, err)}
	}
	if !health.IntegrityCheck {
		return Result{Name: name, Detail: fmt.Sprintf("%s (integrity check failed)", health.DBPath)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (schema v%d, %d items)", health.DBPath, health.SchemaVersion, health.TotalItems)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// summarizeNetworkError produces a human-readable summary for health check failures.
func summarizeNetworkError(service string, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("health check timed out (%s unresponsive)", service)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("health check timed out (%s unreachable)", service)
	}
	return err.Error()
}
