package pool

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/nerrad567/gray-logic-dbcore/internal/infrastructure/config"
)

// dataSource returns the database/sql driver name and data source name for
// a pool's connection settings, merging user and password into the form the
// driver expects.
func dataSource(c config.ConnConfig) (driverName, dsn string, err error) {
	driverName = c.DriverName()
	switch driverName {
	case "postgres":
		dsn, err = postgresDSN(c)
	case "mysql":
		dsn, err = mysqlDSN(c)
	case "godror":
		dsn = godrorDSN(c)
	case "sqlite3", "sqlite":
		dsn = strings.TrimPrefix(c.URL, "sqlite:")
	case "":
		err = fmt.Errorf("cannot infer driver from url %q", redact(c.URL))
	default:
		dsn = c.URL
	}
	return driverName, dsn, err
}

func postgresDSN(c config.ConnConfig) (string, error) {
	if !strings.Contains(c.URL, "://") {
		// key=value form
		dsn := c.URL
		if c.User != "" {
			dsn += " user=" + quoteKV(c.User)
		}
		if c.Pass != "" {
			dsn += " password=" + quoteKV(c.Pass)
		}
		return strings.TrimSpace(dsn), nil
	}

	u, err := url.Parse(c.URL)
	if err != nil {
		return "", fmt.Errorf("parsing postgres url: %w", err)
	}
	setUserinfo(u, c)
	return u.String(), nil
}

// mysqlDSN accepts either a mysql:// URL or a native go-sql-driver DSN.
// Temporal columns are always parsed into time.Time in UTC.
func mysqlDSN(c config.ConnConfig) (string, error) {
	var mc *mysql.Config
	if strings.HasPrefix(strings.ToLower(c.URL), "mysql://") {
		u, err := url.Parse(c.URL)
		if err != nil {
			return "", fmt.Errorf("parsing mysql url: %w", err)
		}
		mc = mysql.NewConfig()
		mc.Net = "tcp"
		mc.Addr = u.Host
		mc.DBName = strings.TrimPrefix(u.Path, "/")
		if u.User != nil {
			mc.User = u.User.Username()
			mc.Passwd, _ = u.User.Password()
		}
		if q := u.Query(); len(q) > 0 {
			mc.Params = make(map[string]string, len(q))
			for k := range q {
				mc.Params[k] = q.Get(k)
			}
		}
	} else {
		var err error
		if mc, err = mysql.ParseDSN(c.URL); err != nil {
			return "", fmt.Errorf("parsing mysql dsn: %w", err)
		}
	}

	if c.User != "" {
		mc.User = c.User
	}
	if c.Pass != "" {
		mc.Passwd = c.Pass
	}
	mc.ParseTime = true
	return mc.FormatDSN(), nil
}

// godrorDSN renders the logfmt connect string godror expects.
func godrorDSN(c config.ConnConfig) string {
	connect := c.URL
	if u, err := url.Parse(c.URL); err == nil && u.Scheme == "oracle" {
		connect = u.Host + u.Path
		if c.User == "" && u.User != nil {
			c.User = u.User.Username()
			c.Pass, _ = u.User.Password()
		}
	}
	parts := []string{"connectString=" + strconv.Quote(connect)}
	if c.User != "" {
		parts = append(parts, "user="+strconv.Quote(c.User))
	}
	if c.Pass != "" {
		parts = append(parts, "password="+strconv.Quote(c.Pass))
	}
	return strings.Join(parts, " ")
}

func setUserinfo(u *url.URL, c config.ConnConfig) {
	user := c.User
	if user == "" && u.User != nil {
		user = u.User.Username()
	}
	if user == "" {
		return
	}
	pass := c.Pass
	if pass == "" && u.User != nil {
		pass, _ = u.User.Password()
	}
	if pass == "" {
		u.User = url.User(user)
		return
	}
	u.User = url.UserPassword(user, pass)
}

func quoteKV(s string) string {
	if !strings.ContainsAny(s, ` '\"`) {
		return s
	}
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s) + "'"
}

// redact removes any password from a URL for logging.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
