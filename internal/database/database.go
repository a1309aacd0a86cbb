// Package database opens stores for the CLI and tools. It knows each
// supported driver's registration name and how to build its DSN from
// discrete settings.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Driver names a database/sql driver.
type Driver string

const (
	Postgres Driver = "postgres" // lib/pq
	PGX      Driver = "pgx"      // jackc/pgx stdlib
	MySQL    Driver = "mysql"    // go-sql-driver/mysql
	SQLite   Driver = "sqlite"   // modernc.org/sqlite
)

// Drivers lists the supported drivers.
func Drivers() []Driver {
	return []Driver{Postgres, PGX, MySQL, SQLite}
}

// ParseDriver returns the driver named s. An empty s is Postgres.
func ParseDriver(s string) (Driver, error) {
	if s == "" {
		return Postgres, nil
	}
	for _, d := range Drivers() {
		if string(d) == strings.ToLower(s) {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown database driver %q (want postgres, pgx, mysql or sqlite)", s)
}

// MySQLSQLMode is set on every MySQL session so that string literals use
// standard SQL quoting.
const MySQLSQLMode = "'ANSI_QUOTES,NO_BACKSLASH_ESCAPES'"

// ErrIncomplete is returned by DSN when required settings are missing.
var ErrIncomplete = errors.New("database settings incomplete")

// Options are the connection settings for one store.
type Options struct {
	Driver   Driver
	URL      string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
	// Path is the SQLite database file.
	Path string
}

// DefaultPort returns the conventional port for d, or 0.
func DefaultPort(d Driver) int {
	switch d {
	case Postgres, PGX:
		return 5432
	case MySQL:
		return 3306
	}
	return 0
}

// DSN returns the data source name for o.Driver. A URL is used as given,
// except that MySQL DSNs always get MySQLSQLMode.
func (o Options) DSN() (string, error) {
	d, err := ParseDriver(string(o.Driver))
	if err != nil {
		return "", err
	}
	switch d {
	case SQLite:
		if o.URL != "" {
			return o.URL, nil
		}
		if o.Path == "" {
			return "", fmt.Errorf("%w: database.path is required for sqlite", ErrIncomplete)
		}
		return o.Path, nil
	case MySQL:
		return o.mysqlDSN()
	default:
		return o.postgresDSN()
	}
}

func (o Options) requireDiscrete() error {
	for _, f := range []struct{ key, val string }{
		{"database.host", o.Host},
		{"database.name", o.Name},
		{"database.user", o.User},
	} {
		if f.val == "" {
			return fmt.Errorf("%w: %s is required when database.url is not set", ErrIncomplete, f.key)
		}
	}
	return nil
}

func (o Options) port() int {
	if o.Port != 0 {
		return o.Port
	}
	return DefaultPort(o.Driver)
}

func (o Options) postgresDSN() (string, error) {
	if o.URL != "" {
		return o.URL, nil
	}
	if err := o.requireDiscrete(); err != nil {
		return "", err
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(o.Host, strconv.Itoa(o.port())),
		Path:   "/" + o.Name,
	}
	if o.Password != "" {
		u.User = url.UserPassword(o.User, o.Password)
	} else {
		u.User = url.User(o.User)
	}
	if o.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", o.SSLMode)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (o Options) mysqlDSN() (string, error) {
	var cfg *mysql.Config
	if o.URL != "" {
		parsed, err := mysql.ParseDSN(o.URL)
		if err != nil {
			return "", fmt.Errorf("parsing mysql dsn: %w", err)
		}
		cfg = parsed
	} else {
		if err := o.requireDiscrete(); err != nil {
			return "", err
		}
		cfg = mysql.NewConfig()
		cfg.User = o.User
		cfg.Passwd = o.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(o.Host, strconv.Itoa(o.port()))
		cfg.DBName = o.Name
	}
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	cfg.Params["sql_mode"] = MySQLSQLMode
	return cfg.FormatDSN(), nil
}

// Open opens and pings the store described by o.
func Open(ctx context.Context, o Options) (*sql.DB, error) {
	d, err := ParseDriver(string(o.Driver))
	if err != nil {
		return nil, err
	}
	o.Driver = d
	dsn, err := o.DSN()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(string(d), dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", d, err)
	}
	if d == SQLite {
		// One writer at a time per file.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to %s database: %w", d, err)
	}
	return db, nil
}
