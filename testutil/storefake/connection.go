package storefake

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/AntonStoeckl/tpcb-benchmark-go/tpcb"
)

// ErrNoTransaction is returned by Commit and Rollback without a preceding Begin.
var ErrNoTransaction = errors.New("storefake: no active transaction")

var integerPattern = regexp.MustCompile(`-?\d+`)

type connection struct {
	provider *SessionProvider
	inTx     bool
	pending  []mutation
	closed   atomic.Bool
}

func (c *connection) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	kind, err := classify(query)
	if err != nil {
		return 0, err
	}

	if len(args) == 0 {
		if args, err = literalArgs(kind, query); err != nil {
			return 0, err
		}
	}

	return c.exec(ctx, kind, args)
}

func (c *connection) QueryInt(ctx context.Context, query string, args ...any) (int64, error) {
	kind, err := classify(query)
	if err != nil {
		return 0, err
	}

	if len(args) == 0 {
		if args, err = literalArgs(kind, query); err != nil {
			return 0, err
		}
	}

	return c.queryInt(ctx, kind, args)
}

func (c *connection) Prepare(_ context.Context, query string) (tpcb.Statement, error) {
	c.provider.prepares.Add(1)

	if c.provider.prepareErr != nil {
		return nil, c.provider.prepareErr
	}

	kind, err := classify(query)
	if err != nil {
		return nil, err
	}

	return &statement{conn: c, kind: kind}, nil
}

func (c *connection) Begin(_ context.Context) error {
	c.provider.begins.Add(1)
	c.inTx = true
	c.pending = c.pending[:0]

	return nil
}

func (c *connection) Commit(_ context.Context) error {
	c.provider.commits.Add(1)

	if !c.inTx {
		return ErrNoTransaction
	}

	if c.provider.commitErr != nil {
		return c.provider.commitErr
	}

	c.provider.apply(c.pending)
	c.inTx = false
	c.pending = c.pending[:0]

	return nil
}

func (c *connection) Rollback(_ context.Context) error {
	c.provider.rollbacks.Add(1)

	c.inTx = false
	c.pending = c.pending[:0]

	return c.provider.rollbackErr
}

func (c *connection) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.provider.connectionCloses.Add(1)
	}

	return nil
}

func (c *connection) exec(ctx context.Context, kind tpcb.StatementKind, args []any) (int64, error) {
	c.provider.execs.Add(1)

	if err := c.provider.waitForGate(ctx); err != nil {
		return 0, err
	}

	c.provider.record(kind)

	if c.provider.injectFailure(kind) {
		return 0, ErrInjected
	}

	m, err := toMutation(kind, args)
	if err != nil {
		return 0, err
	}

	if c.inTx {
		c.pending = append(c.pending, m)
	} else {
		c.provider.apply([]mutation{m})
	}

	return 1, nil
}

func (c *connection) queryInt(ctx context.Context, kind tpcb.StatementKind, args []any) (int64, error) {
	c.provider.queries.Add(1)

	if err := c.provider.waitForGate(ctx); err != nil {
		return 0, err
	}

	c.provider.record(kind)

	if c.provider.injectFailure(kind) {
		return 0, ErrInjected
	}

	if kind != tpcb.AccountSelect || len(args) != 1 {
		return 0, fmt.Errorf("storefake: unsupported query %s with %d args", kind, len(args))
	}

	accountID, err := toInt64(args[0])
	if err != nil {
		return 0, err
	}

	balance := c.provider.balance(tpcb.AccountUpdate, accountID)
	for _, m := range c.pending {
		if m.kind == tpcb.AccountUpdate && m.id == accountID {
			balance += m.delta
		}
	}

	return balance, nil
}

type statement struct {
	conn   *connection
	kind   tpcb.StatementKind
	closed atomic.Bool
}

func (s *statement) Exec(ctx context.Context, args ...any) (int64, error) {
	return s.conn.exec(ctx, s.kind, args)
}

func (s *statement) QueryInt(ctx context.Context, args ...any) (int64, error) {
	return s.conn.queryInt(ctx, s.kind, args)
}

func (s *statement) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.conn.provider.statementCloses.Add(1)
	}

	return nil
}

// toMutation converts the arguments of a statement, in the order of tpcb.StatementBuilder.Args,
// into its effect.
func toMutation(kind tpcb.StatementKind, args []any) (mutation, error) {
	ints := make([]int64, 0, len(args))
	for _, arg := range args {
		if v, err := toInt64(arg); err == nil {
			ints = append(ints, v)
		}
	}

	switch kind {
	case tpcb.AccountUpdate, tpcb.TellerUpdate, tpcb.BranchUpdate:
		if len(ints) != 2 {
			return mutation{}, fmt.Errorf("storefake: %s expects 2 integer args, got %d", kind, len(ints))
		}

		return mutation{kind: kind, id: ints[1], delta: ints[0]}, nil

	case tpcb.HistoryInsert:
		if len(ints) != 4 {
			return mutation{}, fmt.Errorf("storefake: %s expects 4 integer args, got %d", kind, len(ints))
		}

		return mutation{kind: kind, id: ints[2], delta: ints[3]}, nil

	default:
		return mutation{}, fmt.Errorf("storefake: %s is not a mutation", kind)
	}
}

// literalArgs extracts the integer values of a statement rendered in literal mode.
func literalArgs(kind tpcb.StatementKind, query string) ([]any, error) {
	want := 2
	if kind == tpcb.AccountSelect {
		want = 1
	}

	if kind == tpcb.HistoryInsert {
		want = 4

		index := strings.Index(strings.ToUpper(query), "VALUES")
		if index < 0 {
			return nil, fmt.Errorf("storefake: malformed insert %q", query)
		}

		query = query[index:]
	}

	matches := integerPattern.FindAllString(query, want)
	if len(matches) != want {
		return nil, fmt.Errorf("storefake: expected %d integers in %q", want, query)
	}

	args := make([]any, 0, want)
	for _, match := range matches {
		v, err := strconv.ParseInt(match, 10, 64)
		if err != nil {
			return nil, err
		}

		args = append(args, v)
	}

	return args, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("storefake: %T is not an integer", v)
	}
}
