// Copyright (c) 2025-2026 the dbagent authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package agent

// In this file: health and monitoring checks.  Each check runs against a
// live connection when one is given and falls back to synthesised values
// when not, so that the server stays useful in demo and dry-run setups.

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dbwatch/dbagent/internal/agent/repository"
)

// Thresholds hold the tunables of the monitoring checks.  Overridable from
// the configuration file.
type Thresholds struct {
	// SlowQueryMS is the response time in milliseconds at and above which a
	// query counts as slow.
	SlowQueryMS float64 `toml:"slow_query_ms" validate:"gt=0"`
	// MaxSizeMB is the database size budget the usage percentage is
	// calculated against.
	MaxSizeMB float64 `toml:"max_size_mb" validate:"gt=0"`
	// UsageCriticalPct is the usage percentage at and above which the file
	// size check reports CRITICAL.
	UsageCriticalPct float64 `toml:"usage_critical_pct" validate:"gt=0,lte=100"`
}

// DefThresholds are the default monitoring thresholds.
var DefThresholds = Thresholds{
	SlowQueryMS:      200,
	MaxSizeMB:        500,
	UsageCriticalPct: 90,
}

// Validate checks the thresholds for consistency.
func (t Thresholds) Validate() error {
	return translateErr(validate.Struct(t))
}

// Check status words.
const (
	StatusNormal     = "NORMAL"
	StatusSlow       = "SLOW"
	StatusCritical   = "CRITICAL"
	StatusDeadlock   = "DEADLOCK DETECTED"
	StatusNoDeadlock = "NO DEADLOCK"
	StatusAbnormal   = "ABNORMAL DATA DETECTED"
)

// Synthesised-check ranges, used when no connection is given.
const (
	synthMinMS     = 15.0
	synthMaxMS     = 250.0
	synthDeadlockP = 0.1
	synthMinSizeMB = 50.0
	synthMaxSizeMB = 500.0
	synthMinUsePct = 60.0
	synthMaxUsePct = 95.0
	synthMinRows   = 50
	synthMaxRows   = 500
	synthBatchMin  = 100
	synthBatchMax  = 1000
	synthAbnormalP = 0.1  // at most 10% of rows abnormal
	synthBatchAbnP = 0.05 // at most 5% of batch rows abnormal
)

// CheckParams are the parameters common to all monitoring checks.
type CheckParams struct {
	// Query is the SQL statement the check runs or reports on.
	Query string `validate:"required"`
	// ConnectionID selects a live connection.  When empty the check
	// synthesises its result.
	ConnectionID string
}

// ResponseTimeCheck is the result of CheckResponseTime.
type ResponseTimeCheck struct {
	Success        bool    `json:"success"`
	Query          string  `json:"query"`
	ResponseTimeMS float64 `json:"response_time_ms"`
	IsSlow         bool    `json:"is_slow"`
	Status         string  `json:"status"`
	Live           bool    `json:"live"`
}

// CheckResponseTime measures (or synthesises) the response time of a query
// and flags it as slow when it meets the slow-query threshold.
func (a *Agent) CheckResponseTime(ctx context.Context, p CheckParams) (ResponseTimeCheck, error) {
	if err := validate.Struct(p); err != nil {
		return ResponseTimeCheck{}, translateErr(err)
	}
	r := ResponseTimeCheck{Success: true, Query: p.Query}
	if p.ConnectionID != "" {
		qr, err := a.Query(ctx, QueryParams{ConnectionID: p.ConnectionID, Query: p.Query})
		if err != nil {
			return ResponseTimeCheck{Query: p.Query}, err
		}
		r.ResponseTimeMS, r.Live = qr.ElapsedMS, true
	} else {
		r.ResponseTimeMS = round2(synthMinMS + a.randf()*(synthMaxMS-synthMinMS))
	}
	r.IsSlow = r.ResponseTimeMS >= a.thresholds.SlowQueryMS
	r.Status = StatusNormal
	if r.IsSlow {
		r.Status = StatusSlow
	}
	a.record(ctx, "check_query_response_time", p.Query, r.Status, r.ResponseTimeMS)
	return r, nil
}

// DeadlockCheck is the result of CheckDeadlock.
type DeadlockCheck struct {
	Success           bool   `json:"success"`
	Query             string `json:"query"`
	DeadlocksDetected bool   `json:"deadlocks_detected"`
	Status            string `json:"status"`
	Live              bool   `json:"live"`
}

// CheckDeadlock probes for lock contention.  On a live connection the query
// is executed and busy/locked errors count as contention; without one the
// result is synthesised.
func (a *Agent) CheckDeadlock(ctx context.Context, p CheckParams) (DeadlockCheck, error) {
	if err := validate.Struct(p); err != nil {
		return DeadlockCheck{}, translateErr(err)
	}
	r := DeadlockCheck{Success: true, Query: p.Query}
	if p.ConnectionID != "" {
		r.Live = true
		if _, err := a.Query(ctx, QueryParams{ConnectionID: p.ConnectionID, Query: p.Query}); err != nil {
			if !isLockErr(err) {
				return DeadlockCheck{Query: p.Query}, err
			}
			r.DeadlocksDetected = true
		}
	} else {
		r.DeadlocksDetected = a.randf() < synthDeadlockP
	}
	r.Status = StatusNoDeadlock
	if r.DeadlocksDetected {
		r.Status = StatusDeadlock
	}
	a.record(ctx, "check_deadlock", p.Query, r.Status, b2f(r.DeadlocksDetected))
	return r, nil
}

// isLockErr reports whether err looks like lock contention.
func isLockErr(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "deadlock") || strings.Contains(s, "locked") || strings.Contains(s, "busy")
}

// FileSizeCheck is the result of CheckFileSize.
type FileSizeCheck struct {
	Success      bool    `json:"success"`
	Query        string  `json:"query"`
	SizeMB       float64 `json:"size_mb"`
	Size         string  `json:"size"`
	UsagePercent float64 `json:"usage_percent"`
	Status       string  `json:"status"`
	Live         bool    `json:"live"`
}

// CheckFileSize reports the database size and its usage against the
// configured size budget, flagging CRITICAL at the critical-usage threshold.
func (a *Agent) CheckFileSize(ctx context.Context, p CheckParams) (FileSizeCheck, error) {
	if err := validate.Struct(p); err != nil {
		return FileSizeCheck{}, translateErr(err)
	}
	r := FileSizeCheck{Success: true, Query: p.Query}
	if p.ConnectionID != "" {
		sizeB, err := a.databaseSize(ctx, p.ConnectionID)
		if err != nil {
			return FileSizeCheck{Query: p.Query}, err
		}
		r.SizeMB = round2(float64(sizeB) / (1 << 20))
		r.UsagePercent = round2(r.SizeMB / a.thresholds.MaxSizeMB * 100)
		r.Live = true
	} else {
		r.SizeMB = round2(synthMinSizeMB + a.randf()*(synthMaxSizeMB-synthMinSizeMB))
		r.UsagePercent = round2(synthMinUsePct + a.randf()*(synthMaxUsePct-synthMinUsePct))
	}
	r.Size = humanize.Bytes(uint64(r.SizeMB * (1 << 20)))
	r.Status = StatusNormal
	if r.UsagePercent >= a.thresholds.UsageCriticalPct {
		r.Status = StatusCritical
	}
	a.record(ctx, "check_file_size", p.Query, r.Status, r.UsagePercent)
	return r, nil
}

// databaseSize returns the size of the connected database in bytes.
func (a *Agent) databaseSize(ctx context.Context, id string) (int64, error) {
	c, err := a.get(id)
	if err != nil {
		return 0, err
	}
	switch c.info.Engine {
	case Sqlite:
		var pageCount, pageSize int64
		if err := c.db.GetContext(ctx, &pageCount, "PRAGMA page_count"); err != nil {
			return 0, err
		}
		if err := c.db.GetContext(ctx, &pageSize, "PRAGMA page_size"); err != nil {
			return 0, err
		}
		return pageCount * pageSize, nil
	default:
		return 0, ErrNotSupported
	}
}

// DataCheck is the result of the abnormal-data and batch-data checks.
type DataCheck struct {
	Success       bool   `json:"success"`
	Query         string `json:"query"`
	TotalRows     int    `json:"total_rows"`
	AbnormalCount int    `json:"abnormal_count"`
	HasAbnormal   bool   `json:"has_abnormal_data"`
	Status        string `json:"status"`
	Live          bool   `json:"live"`
}

// CheckAbnormalData runs the query and counts rows with NULL values as
// abnormal; without a connection, row and abnormal counts are synthesised.
func (a *Agent) CheckAbnormalData(ctx context.Context, p CheckParams) (DataCheck, error) {
	return a.dataCheck(ctx, p, "check_abnormal_data", synthMinRows, synthMaxRows, synthAbnormalP)
}

// CheckBatchData is CheckAbnormalData with batch-sized synthesised ranges.
func (a *Agent) CheckBatchData(ctx context.Context, p CheckParams) (DataCheck, error) {
	return a.dataCheck(ctx, p, "check_batch_data", synthBatchMin, synthBatchMax, synthBatchAbnP)
}

func (a *Agent) dataCheck(ctx context.Context, p CheckParams, name string, minRows, maxRows int, abnormalP float64) (DataCheck, error) {
	if err := validate.Struct(p); err != nil {
		return DataCheck{}, translateErr(err)
	}
	r := DataCheck{Success: true, Query: p.Query}
	if p.ConnectionID != "" {
		qr, err := a.Query(ctx, QueryParams{ConnectionID: p.ConnectionID, Query: p.Query})
		if err != nil {
			return DataCheck{Query: p.Query}, err
		}
		r.TotalRows = len(qr.Rows)
		for _, row := range qr.Rows {
			for _, v := range row {
				if v == nil {
					r.AbnormalCount++
					break
				}
			}
		}
		r.Live = true
	} else {
		r.TotalRows = minRows + a.randn(maxRows-minRows+1)
		r.AbnormalCount = a.randn(int(float64(r.TotalRows)*abnormalP) + 1)
	}
	r.HasAbnormal = r.AbnormalCount > 0
	r.Status = StatusNormal
	if r.HasAbnormal {
		r.Status = StatusAbnormal
	}
	a.record(ctx, name, p.Query, r.Status, float64(r.AbnormalCount))
	return r, nil
}

// CheckHistory returns up to limit recent check results from the catalog,
// optionally filtered by check name.
func (a *Agent) CheckHistory(ctx context.Context, check string, limit int) ([]repository.Check, error) {
	if a.catalog == nil {
		return nil, ErrNoCatalog
	}
	return a.catalog.History(ctx, check, limit)
}

// record stores a check result in the catalog, if one is attached.
func (a *Agent) record(ctx context.Context, name, query, status string, value float64) {
	if a.catalog == nil {
		return
	}
	chk := repository.Check{Name: name, Query: query, Status: status, Value: value, At: time.Now().UTC()}
	if err := a.catalog.RecordCheck(ctx, chk); err != nil {
		a.lg.WarnContext(ctx, "catalog: recording check result failed", "check", name, "error", err)
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
