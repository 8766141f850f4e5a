package preflight

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"medannotate/internal/config"
	"medannotate/internal/directory"
)

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

// CheckBindAddress verifies the API bind address is a host:port pair.
func CheckBindAddress(addr string) Result {
	const name = "API bind"

	host, port, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%q (error: %v)", addr, err)}
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return Result{Name: name, Detail: fmt.Sprintf("%q (error: invalid port)", addr)}
	}
	if host != "" && host != "localhost" && net.ParseIP(host) == nil {
		return Result{Name: name, Detail: fmt.Sprintf("%q (error: host is not an IP address)", addr)}
	}
	return Result{Name: name, Passed: true, Detail: addr}
}

// CheckLease verifies the reclaimer scans often enough to honour the lease.
func CheckLease(cfg *config.Config) Result {
	const name = "Claim lease"

	timeout := cfg.LeaseTimeout()
	interval := cfg.ReclaimInterval()
	if interval > timeout {
		return Result{Name: name, Detail: fmt.Sprintf("reclaim interval %s exceeds lease timeout %s", interval, timeout)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("timeout %s, scan every %s", timeout, interval)}
}

// HealthChecker reports database diagnostics.
type HealthChecker interface {
	CheckHealth(ctx context.Context) (directory.DatabaseHealth, error)
}

// CheckDatabase verifies the directory database is present, current, and intact.
func CheckDatabase(ctx context.Context, store HealthChecker) Result {
	const name = "Database"

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := store.CheckHealth(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", health.DBPath, err)}
	}
	switch {
	case !health.DatabaseExists:
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", health.DBPath)}
	case health.SchemaVersion != health.ExpectedVersion:
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: schema v%d, expected v%d)", health.DBPath, health.SchemaVersion, health.ExpectedVersion)}
	case len(health.MissingTables) > 0:
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: missing tables %s)", health.DBPath, strings.Join(health.MissingTables, ", "))}
	case !health.IntegrityCheck:
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: integrity check failed)", health.DBPath)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d items)", health.DBPath, health.TotalItems)}
}
