package tpcb

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

const notAvailable = "n/a"

// Report is the rendered result of one sub-run.
type Report struct {
	SessionID             string   `json:"session_id,omitempty"`
	UseTransactions       bool     `json:"use_transactions"`
	UsePreparedStatements bool     `json:"use_prepared_statements"`
	NumClients            int      `json:"num_clients"`
	TxPerClient           int      `json:"tx_per_client"`
	ElapsedSeconds        float64  `json:"elapsed_seconds"`
	TotalCount            int64    `json:"total_count"`
	PassedCount           int64    `json:"passed_count"`
	FailedCount           int64    `json:"failed_count"`
	Throughput            *float64 `json:"throughput_tps"`
	MinMemory             int64    `json:"min_memory_bytes"`
	MaxMemory             int64    `json:"max_memory_bytes"`
	Aborted               bool     `json:"aborted"`
	Error                 string   `json:"error,omitempty"`
}

// NewReport builds the Report of a completed sub-run.
// Throughput is rounded to two decimal places and left nil when no time has elapsed.
func NewReport(config RunConfig, stats RunStatistics) Report {
	report := Report{
		UseTransactions:       config.UseTransactions,
		UsePreparedStatements: config.UsePreparedStatements,
		NumClients:            config.NumClients,
		TxPerClient:           config.TxPerClient,
		ElapsedSeconds:        stats.ElapsedSeconds(),
		TotalCount:            stats.TotalCount,
		PassedCount:           stats.PassedCount(),
		FailedCount:           stats.FailedCount,
		MinMemory:             stats.MinMemory,
		MaxMemory:             stats.MaxMemory,
	}

	if throughput, ok := stats.Throughput(); ok {
		rounded := roundTwoDecimals(throughput)
		report.Throughput = &rounded
	}

	return report
}

// NewAbortReport builds the Report of a sub-run that was aborted by an unrecoverable error.
func NewAbortReport(config RunConfig, err error) Report {
	report := Report{
		UseTransactions:       config.UseTransactions,
		UsePreparedStatements: config.UsePreparedStatements,
		NumClients:            config.NumClients,
		TxPerClient:           config.TxPerClient,
		Aborted:               true,
	}

	if err != nil {
		report.Error = err.Error()
	}

	return report
}

// RenderReport renders the text report of a completed sub-run.
func RenderReport(config RunConfig, stats RunStatistics) string {
	return NewReport(config, stats).Text()
}

// RenderAbortReport renders the text report of an aborted sub-run.
func RenderAbortReport(config RunConfig, err error) string {
	return NewAbortReport(config, err).Text()
}

// RenderJSONReport renders the report of a completed sub-run as JSON.
func RenderJSONReport(config RunConfig, stats RunStatistics) ([]byte, error) {
	return NewReport(config, stats).JSON()
}

// JSON marshals the report.
func (r Report) JSON() ([]byte, error) {
	return jsoniter.ConfigFastest.Marshal(r)
}

// Text renders the report as aligned text lines.
func (r Report) Text() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "TPC-B sub-run: transactions %s, prepared statements %s\n",
		onOff(r.UseTransactions), onOff(r.UsePreparedStatements))
	fmt.Fprintf(&sb, "  clients:              %d\n", r.NumClients)
	fmt.Fprintf(&sb, "  tx per client:        %d\n", r.TxPerClient)

	if r.Aborted {
		fmt.Fprintf(&sb, "  status:               aborted\n")
		if r.Error != "" {
			fmt.Fprintf(&sb, "  reason:               %s\n", r.Error)
		}

		return sb.String()
	}

	fmt.Fprintf(&sb, "  elapsed (s):          %s\n", formatDecimal(r.ElapsedSeconds))
	fmt.Fprintf(&sb, "  total transactions:   %d\n", r.TotalCount)
	fmt.Fprintf(&sb, "  passed transactions:  %d\n", r.PassedCount)
	fmt.Fprintf(&sb, "  failed transactions:  %d\n", r.FailedCount)
	fmt.Fprintf(&sb, "  throughput (tx/s):    %s\n", r.ThroughputText())
	fmt.Fprintf(&sb, "  memory min/max (B):   %d / %d\n", r.MinMemory, r.MaxMemory)

	return sb.String()
}

// ThroughputText returns the throughput without trailing zeros, e.g. "9.5", or "n/a".
func (r Report) ThroughputText() string {
	if r.Throughput == nil {
		return notAvailable
	}

	return formatDecimal(*r.Throughput)
}

func roundTwoDecimals(v float64) float64 {
	return math.Round(v*100) / 100
}

func formatDecimal(v float64) string {
	return strconv.FormatFloat(roundTwoDecimals(v), 'f', -1, 64)
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
