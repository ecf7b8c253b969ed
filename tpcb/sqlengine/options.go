package sqlengine

import (
	"errors"
	"fmt"

	"github.com/AntonStoeckl/tpcb-benchmark-go/tpcb"
)

// Option defines a functional option for configuring a SessionProvider.
type Option func(*SessionProvider) error

// WithDialect sets the goqu dialect of the database, see tpcb.DialectPostgres and tpcb.DialectSQLite3.
func WithDialect(dialect string) Option {
	return func(p *SessionProvider) error {
		switch dialect {
		case tpcb.DialectPostgres, tpcb.DialectSQLite3:
		default:
			return errors.Join(tpcb.ErrUnsupportedDialect, fmt.Errorf("got %q", dialect))
		}

		p.dialect = dialect

		return nil
	}
}

// WithLogger sets the logger for the SessionProvider.
// It receives every executed SQL statement with its execution timing at debug level,
// failed statements include the error.
func WithLogger(logger tpcb.Logger) Option {
	return func(p *SessionProvider) error {
		p.logger = logger
		return nil
	}
}
