package app

import (
	"bufio"
	"bytes"
	"os"
	"runtime"
	"runtime/pprof"
	"strconv"
	"strings"

	"docintake/pkg/store"
)

type HealthInfo struct {
	PID     int    `json:"pid"`
	Status  string `json:"status"`
	Version string `json:"version"`
	AppName string `json:"app_name"`
}

type GoroutineInfo struct {
	ID    int64  `json:"id"`
	State string `json:"state"`
}

type ThreadsInfo struct {
	PID          int             `json:"pid"`
	ThreadNum    int             `json:"thread_num"`
	GoroutineNum int             `json:"goroutine_num"`
	Goroutines   []GoroutineInfo `json:"goroutines"`
}

// PoolInfo reports connection pool usage. Durations are in seconds.
type PoolInfo struct {
	PID                   int   `json:"pid"`
	PoolSize              int   `json:"pool_size"`
	CheckedInConnections  int   `json:"checked_in_connections"`
	CheckedOutConnections int   `json:"checked_out_connections"`
	OverflowConnections   int   `json:"overflow_connections"`
	ConnectionTimeout     int64 `json:"connection_timeout"`
	RecycleTime           int64 `json:"recycle_time"`
	MaxOpenConnections    int   `json:"max_open_connections"`
	WaitCount             int64 `json:"wait_count"`
}

func (a *App) Health() HealthInfo {
	return HealthInfo{
		PID:     os.Getpid(),
		Status:  "ok",
		Version: a.version,
		AppName: a.appName,
	}
}

// Threads lists the OS threads created so far and every live goroutine.
func (a *App) Threads() ThreadsInfo {
	goroutines := goroutineStates()
	threads := 0
	if p := pprof.Lookup("threadcreate"); p != nil {
		threads = p.Count()
	}
	return ThreadsInfo{
		PID:          os.Getpid(),
		ThreadNum:    threads,
		GoroutineNum: len(goroutines),
		Goroutines:   goroutines,
	}
}

// PoolInfo returns connection pool statistics of the store.
func (a *App) PoolInfo() (PoolInfo, error) {
	reporter, ok := a.store.(store.PoolReporter)
	if !ok {
		return PoolInfo{}, ErrPoolStatsUnavailable
	}
	stats, err := reporter.PoolStats()
	if err != nil {
		return PoolInfo{}, err
	}
	return PoolInfo{
		PID:                   os.Getpid(),
		PoolSize:              stats.PoolSize,
		CheckedInConnections:  stats.Idle,
		CheckedOutConnections: stats.InUse,
		OverflowConnections:   stats.Overflow,
		ConnectionTimeout:     int64(stats.Timeout.Seconds()),
		RecycleTime:           int64(stats.Recycle.Seconds()),
		MaxOpenConnections:    stats.MaxOpen,
		WaitCount:             stats.WaitCount,
	}, nil
}

// goroutineStates parses the "goroutine N [state]:" headers of a full stack dump.
func goroutineStates() []GoroutineInfo {
	buf := make([]byte, 64<<10)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			buf = buf[:n]
			break
		}
		buf = make([]byte, 2*len(buf))
	}
	var out []GoroutineInfo
	sc := bufio.NewScanner(bytes.NewReader(buf))
	sc.Buffer(make([]byte, 0, 64<<10), len(buf)+1)
	for sc.Scan() {
		line := sc.Text()
		rest, ok := strings.CutPrefix(line, "goroutine ")
		if !ok {
			continue
		}
		// the header may carry extra fields (gp=, m=) between id and state
		idText, _, _ := strings.Cut(rest, " ")
		_, state, ok := strings.Cut(rest, "[")
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(idText, 10, 64)
		if err != nil {
			continue
		}
		state, _, _ = strings.Cut(state, "]")
		state, _, _ = strings.Cut(state, ",")
		out = append(out, GoroutineInfo{ID: id, State: state})
	}
	return out
}
