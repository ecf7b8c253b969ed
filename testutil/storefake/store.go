// Package storefake provides an in-memory tpcb.SessionProvider with call counters and failure
// injection for testing the benchmark engine without a database.
package storefake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/AntonStoeckl/tpcb-benchmark-go/tpcb"
)

// ErrInjected is returned by statements that were configured to fail.
var ErrInjected = errors.New("injected store failure")

// CallCounts is a snapshot of the calls the fake has received.
type CallCounts struct {
	Connects         int64
	FailedConnects   int64
	Begins           int64
	Commits          int64
	Rollbacks        int64
	Prepares         int64
	StatementCloses  int64
	ConnectionCloses int64
	ProviderCloses   int64
	Execs            int64
	Queries          int64
}

// Option defines a functional option for configuring a SessionProvider.
type Option func(*SessionProvider)

// WithDialect sets the dialect reported by the provider. Defaults to tpcb.DialectPostgres.
func WithDialect(dialect string) Option {
	return func(p *SessionProvider) {
		p.dialect = dialect
	}
}

// WithFailEveryNth makes every nth execution of the given statement kind fail, counted across
// all connections.
func WithFailEveryNth(kind tpcb.StatementKind, n int64) Option {
	return func(p *SessionProvider) {
		p.failEveryNth[kind] = n
	}
}

// WithConnectError makes every Connect call fail with err.
func WithConnectError(err error) Option {
	return func(p *SessionProvider) {
		p.connectErr = err
		p.connectFailures = -1
	}
}

// WithConnectFailures makes the first n Connect calls fail.
func WithConnectFailures(n int64) Option {
	return func(p *SessionProvider) {
		p.connectErr = ErrInjected
		p.connectFailures = n
	}
}

// WithPrepareError makes every Prepare call fail with err.
func WithPrepareError(err error) Option {
	return func(p *SessionProvider) {
		p.prepareErr = err
	}
}

// WithCommitError makes every Commit call fail with err.
func WithCommitError(err error) Option {
	return func(p *SessionProvider) {
		p.commitErr = err
	}
}

// WithRollbackError makes every Rollback call fail with err.
func WithRollbackError(err error) Option {
	return func(p *SessionProvider) {
		p.rollbackErr = err
	}
}

// WithCloseError makes the provider's Close fail with err.
func WithCloseError(err error) Option {
	return func(p *SessionProvider) {
		p.closeErr = err
	}
}

// WithExecGate blocks every statement execution until gate is closed.
func WithExecGate(gate <-chan struct{}) Option {
	return func(p *SessionProvider) {
		p.execGate = gate
	}
}

// WithConnectGate blocks the first n Connect calls until gate is closed.
func WithConnectGate(gate <-chan struct{}, n int64) Option {
	return func(p *SessionProvider) {
		p.connectGate = gate
		p.gatedConnects = n
	}
}

// WithStatementLog records the kind of every executed statement.
func WithStatementLog() Option {
	return func(p *SessionProvider) {
		p.logStatements = true
	}
}

// SessionProvider is an in-memory tpcb.SessionProvider. It keeps account, teller, and branch
// balances and the sum of history deltas, so that successful transactions can be verified.
type SessionProvider struct {
	dialect         string
	failEveryNth    map[tpcb.StatementKind]int64
	connectErr      error
	connectFailures int64
	prepareErr      error
	commitErr       error
	rollbackErr     error
	closeErr        error
	execGate        <-chan struct{}
	connectGate     <-chan struct{}
	gatedConnects   int64
	logStatements   bool

	connects         atomic.Int64
	failedConnects   atomic.Int64
	begins           atomic.Int64
	commits          atomic.Int64
	rollbacks        atomic.Int64
	prepares         atomic.Int64
	statementCloses  atomic.Int64
	connectionCloses atomic.Int64
	providerCloses   atomic.Int64
	execs            atomic.Int64
	queries          atomic.Int64
	kindCounters     sync.Map // tpcb.StatementKind -> *atomic.Int64

	mu           sync.Mutex
	balances     map[tpcb.StatementKind]map[int64]int64
	historySum   int64
	historyCount int64
	statementLog []tpcb.StatementKind
}

// NewSessionProvider creates a fake provider.
func NewSessionProvider(options ...Option) *SessionProvider {
	p := &SessionProvider{
		dialect:      tpcb.DialectPostgres,
		failEveryNth: make(map[tpcb.StatementKind]int64),
		balances: map[tpcb.StatementKind]map[int64]int64{
			tpcb.AccountUpdate: {},
			tpcb.TellerUpdate:  {},
			tpcb.BranchUpdate:  {},
		},
	}

	for _, option := range options {
		option(p)
	}

	return p
}

// Connect implements tpcb.SessionProvider.
func (p *SessionProvider) Connect(ctx context.Context) (tpcb.Connection, error) {
	attempt := p.connects.Add(1)

	if p.connectGate != nil && attempt <= p.gatedConnects {
		select {
		case <-p.connectGate:
		case <-ctx.Done():
			return nil, errors.Join(tpcb.ErrConnectionFailed, ctx.Err())
		}
	}

	if p.connectErr != nil && (p.connectFailures < 0 || attempt <= p.connectFailures) {
		p.failedConnects.Add(1)
		return nil, errors.Join(tpcb.ErrConnectionFailed, p.connectErr)
	}

	return &connection{provider: p}, nil
}

// Dialect implements tpcb.SessionProvider.
func (p *SessionProvider) Dialect() string {
	return p.dialect
}

// Close implements tpcb.SessionProvider.
func (p *SessionProvider) Close() error {
	p.providerCloses.Add(1)
	return p.closeErr
}

// Calls returns a snapshot of the call counters.
func (p *SessionProvider) Calls() CallCounts {
	return CallCounts{
		Connects:         p.connects.Load(),
		FailedConnects:   p.failedConnects.Load(),
		Begins:           p.begins.Load(),
		Commits:          p.commits.Load(),
		Rollbacks:        p.rollbacks.Load(),
		Prepares:         p.prepares.Load(),
		StatementCloses:  p.statementCloses.Load(),
		ConnectionCloses: p.connectionCloses.Load(),
		ProviderCloses:   p.providerCloses.Load(),
		Execs:            p.execs.Load(),
		Queries:          p.queries.Load(),
	}
}

// StatementLog returns the kinds of all executed statements in execution order.
func (p *SessionProvider) StatementLog() []tpcb.StatementKind {
	p.mu.Lock()
	defer p.mu.Unlock()

	statementLog := make([]tpcb.StatementKind, len(p.statementLog))
	copy(statementLog, p.statementLog)

	return statementLog
}

// BalanceSum returns the sum of all balances updated by statements of the given kind.
func (p *SessionProvider) BalanceSum(kind tpcb.StatementKind) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	var sum int64
	for _, balance := range p.balances[kind] {
		sum += balance
	}

	return sum
}

// HistorySum returns the sum of the deltas of all history rows.
func (p *SessionProvider) HistorySum() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.historySum
}

// HistoryCount returns the number of history rows.
func (p *SessionProvider) HistoryCount() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.historyCount
}

// injectFailure reports whether this execution of kind is configured to fail.
func (p *SessionProvider) injectFailure(kind tpcb.StatementKind) bool {
	n, ok := p.failEveryNth[kind]
	if !ok || n <= 0 {
		return false
	}

	counter, _ := p.kindCounters.LoadOrStore(kind, &atomic.Int64{})

	return counter.(*atomic.Int64).Add(1)%n == 0
}

func (p *SessionProvider) waitForGate(ctx context.Context) error {
	if p.execGate == nil {
		return nil
	}

	select {
	case <-p.execGate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// mutation is the effect of one statement, applied on success or at commit.
type mutation struct {
	kind  tpcb.StatementKind
	id    int64
	delta int64
}

func (p *SessionProvider) apply(mutations []mutation) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, m := range mutations {
		if m.kind == tpcb.HistoryInsert {
			p.historySum += m.delta
			p.historyCount++

			continue
		}

		p.balances[m.kind][m.id] += m.delta
	}
}

func (p *SessionProvider) balance(kind tpcb.StatementKind, id int64) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.balances[kind][id]
}

func (p *SessionProvider) record(kind tpcb.StatementKind) {
	if !p.logStatements {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.statementLog = append(p.statementLog, kind)
}

// classify maps SQL rendered by tpcb.StatementBuilder with default table names to its statement kind.
func classify(query string) (tpcb.StatementKind, error) {
	normalized := strings.ToUpper(strings.TrimSpace(query))

	switch {
	case strings.HasPrefix(normalized, "SELECT"):
		return tpcb.AccountSelect, nil
	case strings.HasPrefix(normalized, "INSERT"):
		return tpcb.HistoryInsert, nil
	case strings.HasPrefix(normalized, "UPDATE") && strings.Contains(normalized, "ACCOUNTS"):
		return tpcb.AccountUpdate, nil
	case strings.HasPrefix(normalized, "UPDATE") && strings.Contains(normalized, "TELLERS"):
		return tpcb.TellerUpdate, nil
	case strings.HasPrefix(normalized, "UPDATE") && strings.Contains(normalized, "BRANCHES"):
		return tpcb.BranchUpdate, nil
	default:
		return 0, fmt.Errorf("storefake: unsupported statement %q", query)
	}
}
