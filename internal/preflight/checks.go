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

	"notely/internal/attachments"
	"notely/internal/broadcast"
	"notely/internal/config"
	"notely/internal/logging"
	"notely/internal/transfer"
)

const checkTimeout = 5 * time.Second

// Pinger is any dependency that can verify its own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
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

// CheckCredentials reports whether uploads can be signed and attributed.
func CheckCredentials(cfg *config.Config) Result {
	const name = "Storage credentials"
	switch {
	case strings.TrimSpace(cfg.Storage.OwnerID) == "":
		return Result{Name: name, Detail: "owner id missing"}
	case strings.TrimSpace(cfg.Storage.AccessKeyID) == "" || strings.TrimSpace(cfg.Storage.SecretAccessKey) == "":
		return Result{Name: name, Detail: "access key missing"}
	default:
		return Result{Name: name, Passed: true, Detail: "configured"}
	}
}

// CheckStorage verifies the configured bucket is reachable.
func CheckStorage(ctx context.Context, cfg *config.Config) Result {
	s3, err := transfer.New(ctx, cfg, logging.NewNop())
	if err != nil {
		return Result{Name: "Object storage", Detail: err.Error()}
	}
	return CheckPinger(ctx, "Object storage", s3)
}

// CheckPinger runs p.Ping with the standard timeout.
func CheckPinger(ctx context.Context, name string, p Pinger) Result {
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if err := p.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckNoteStore verifies the note database accepts connections.
func CheckNoteStore(ctx context.Context, dsn string) Result {
	const name = "Note store"
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	sink, err := attachments.NewPostgresSink(checkCtx, dsn, logging.NewNop())
	if err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	sink.Close()
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckRedis verifies the broadcast Redis server answers PING.
func CheckRedis(ctx context.Context, rawURL string) Result {
	const name = "Redis broadcast"
	client, err := broadcast.DialRedis(ctx, rawURL)
	if err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	_ = client.Close()
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (unreachable)"
	}
	return err.Error()
}
