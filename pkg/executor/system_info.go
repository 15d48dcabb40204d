package executor

import (
	"context"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/denysvitali/megacmd-runtime-go/internal/models"
)

type processProbe struct {
	name string
}

// DaemonRunning scans the process table for the daemon by name
func (p *processProbe) DaemonRunning(ctx context.Context) (bool, error) {
	proc, err := findProcess(ctx, p.name)
	if err != nil {
		return false, err
	}
	return proc != nil, nil
}

func findProcess(ctx context.Context, name string) (*process.Process, error) {
	if name == "" {
		return nil, nil
	}
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	for _, proc := range procs {
		n, err := proc.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if n == name {
			return proc, nil
		}
	}
	return nil, nil
}

// GetSystemResources returns resource usage of this process and the daemon using gopsutil
func (e *Executor) GetSystemResources(ctx context.Context) models.SystemResources {
	res := models.SystemResources{CPUCount: runtime.NumCPU()}

	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		e.logger.Warnf("Failed to get process info: %v", err)
		return res
	}

	if cpu, err := proc.CPUPercentWithContext(ctx); err == nil {
		res.CPUPercent = cpu
	} else {
		e.logger.Warnf("Failed to get CPU percent: %v", err)
	}

	if mem, err := proc.MemoryInfoWithContext(ctx); err == nil {
		res.MemoryRSS = mem.RSS
	} else {
		e.logger.Warnf("Failed to get memory info: %v", err)
	}

	if pct, err := proc.MemoryPercentWithContext(ctx); err == nil {
		res.MemoryPercent = pct
	}

	daemon, err := findProcess(ctx, e.cfg.DaemonProcess)
	if err != nil {
		e.logger.Debugf("Failed to scan for daemon: %v", err)
	}
	if daemon != nil {
		res.DaemonPID = daemon.Pid
		if mem, err := daemon.MemoryInfoWithContext(ctx); err == nil {
			res.DaemonRSS = mem.RSS
		}
	}

	return res
}
