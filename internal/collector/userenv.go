package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/go-tangra/go-tangra-sysinfo/internal/fallback"
	"github.com/go-tangra/go-tangra-sysinfo/internal/platform"
)

type userInfo struct {
	Username string
	Home     string
}

type localeInfo struct {
	Language string
	Encoding string
}

func (c *Collector) collectUserEnvironment(ctx context.Context, r *Result) {
	resolveGroup(ctx, c, r, []string{FieldCurrentUser, FieldHomeDirectory}, func(u userInfo) {
		setOrNoData(r, FieldCurrentUser, u.Username)
		setOrNoData(r, FieldHomeDirectory, u.Home)
	}, c.userStrategies())
	resolveField(ctx, c, r, FieldFullName, Scalar, c.fullNameStrategies())
	resolveField(ctx, c, r, FieldShell, Scalar, c.shellStrategies())
	resolveField(ctx, c, r, FieldSessionStart, func(t time.Time) Value { return Scalar(timestamp(t)) }, c.sessionStartStrategies())

	now := c.opts.Now()
	_, offset := now.Zone()
	r.Set(FieldCurrentTime, Scalar(timestamp(now)))
	r.Set(FieldUTCOffset, Scalar(utcOffset(offset)))
	resolveField(ctx, c, r, FieldTimezone, Scalar, c.timezoneStrategies(now))

	resolveGroup(ctx, c, r, []string{FieldSystemLanguage, FieldEncoding}, func(l localeInfo) {
		setOrNoData(r, FieldSystemLanguage, describeLanguage(l.Language))
		setOrNoData(r, FieldEncoding, l.Encoding)
	}, c.localeStrategies())
}

func (c *Collector) userStrategies() []fallback.Strategy[userInfo] {
	return everywhere(
		fallback.New("os user", func(context.Context) (userInfo, error) {
			u, err := c.opts.User()
			if err != nil {
				return userInfo{}, err
			}
			if u.Username == "" {
				return userInfo{}, fallback.ErrNoData
			}
			return userInfo{Username: u.Username, Home: u.HomeDir}, nil
		}),
		fallback.New("environment", func(context.Context) (userInfo, error) {
			u := userInfo{Username: firstEnv(c.opts.Env, "USER", "USERNAME", "LOGNAME")}
			u.Home = firstEnv(c.opts.Env, "HOME", "USERPROFILE")
			if u.Username == "" {
				return userInfo{}, fallback.ErrNoData
			}
			return u, nil
		}),
	).on(c.family())
}

func firstEnv(env func(string) string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(env(k)); v != "" {
			return v
		}
	}
	return ""
}

func (c *Collector) fullNameStrategies() []fallback.Strategy[string] {
	osUser := fallback.New("os user", func(context.Context) (string, error) {
		u, err := c.opts.User()
		if err != nil {
			return "", err
		}
		// On Unix the name is the GECOS field: "Full Name,Room,Phone,...".
		name, _, _ := strings.Cut(u.Name, ",")
		if name == u.Username {
			return "", fallback.ErrNoData
		}
		return nonEmpty(name)
	})
	t := everywhere(osUser)
	t[platform.MacOS] = []fallback.Strategy[string]{
		command(c, func(out string) (string, error) { return nonEmpty(out) }, "id", "-F"),
		osUser,
	}
	return t.on(c.family())
}

func (c *Collector) shellStrategies() []fallback.Strategy[string] {
	env := func(key string) fallback.Strategy[string] {
		return fallback.New("$"+key, func(context.Context) (string, error) {
			return nonEmpty(c.opts.Env(key))
		})
	}
	t := everywhere(env("SHELL"))
	t[platform.Windows] = []fallback.Strategy[string]{env("ComSpec"), env("SHELL")}
	return t.on(c.family())
}

func (c *Collector) sessionStartStrategies() []fallback.Strategy[time.Time] {
	own := fallback.New("process start", func(ctx context.Context) (time.Time, error) {
		return c.opts.Host.ProcessCreateTime(ctx, c.opts.PID)
	})
	logins := fallback.New("gopsutil host users", func(ctx context.Context) (time.Time, error) {
		users, err := c.opts.Host.Users(ctx)
		if err != nil {
			return time.Time{}, err
		}
		var name string
		if u, err := c.opts.User(); err == nil {
			name = u.Username
		}
		var earliest int
		for _, u := range users {
			if u.User != name || u.Started <= 0 {
				continue
			}
			if earliest == 0 || u.Started < earliest {
				earliest = u.Started
			}
		}
		if earliest == 0 {
			return time.Time{}, fallback.ErrNoData
		}
		return time.Unix(int64(earliest), 0), nil
	})
	return byPlatform[time.Time]{
		platform.MacOS:   {logins, own},
		platform.Linux:   {logins, own},
		platform.Windows: {own},
		platform.Unknown: {own},
	}.on(c.family())
}

func (c *Collector) timezoneStrategies(now time.Time) []fallback.Strategy[string] {
	tz := fallback.New("$TZ", func(context.Context) (string, error) {
		return nonEmpty(strings.TrimPrefix(c.opts.Env("TZ"), ":"))
	})
	localtime := fallback.New("/etc/localtime", func(context.Context) (string, error) {
		return c.zoneFromLocaltime()
	})
	zone := fallback.New("zone abbreviation", func(context.Context) (string, error) {
		name, _ := now.Zone()
		return nonEmpty(name)
	})
	return byPlatform[string]{
		platform.MacOS: {tz, localtime, zone},
		platform.Linux: {
			tz,
			fromFile(c, "/etc/timezone", nonEmpty),
			localtime,
			zone,
		},
		platform.Windows: {
			command(c, nonEmpty, "tzutil", "/g"),
			zone,
		},
		platform.Unknown: {tz, zone},
	}.on(c.family())
}

// zoneFromLocaltime resolves the /etc/localtime symlink into its IANA name,
// e.g. /usr/share/zoneinfo/Europe/Berlin becomes Europe/Berlin.
func (c *Collector) zoneFromLocaltime() (string, error) {
	lr, ok := c.opts.FS.(afero.LinkReader)
	if !ok {
		return "", fallback.ErrUnsupported
	}
	target, err := lr.ReadlinkIfPossible("/etc/localtime")
	if err != nil {
		return "", err
	}
	_, name, ok := strings.Cut(target, "zoneinfo/")
	if !ok {
		return "", fmt.Errorf("/etc/localtime -> %s: %w", target, fallback.ErrNoData)
	}
	return nonEmpty(name)
}

func (c *Collector) localeStrategies() []fallback.Strategy[localeInfo] {
	env := fallback.New("locale environment", func(context.Context) (localeInfo, error) {
		return parseLocale(firstEnv(c.opts.Env, "LC_ALL", "LC_CTYPE", "LANG"))
	})
	return byPlatform[localeInfo]{
		platform.MacOS: {
			env,
			command(c, func(out string) (localeInfo, error) {
				l, err := parseLocale(out)
				if err != nil {
					return localeInfo{}, err
				}
				if l.Encoding == "" {
					l.Encoding = "UTF-8"
				}
				return l, nil
			}, "defaults", "read", "-g", "AppleLocale"),
		},
		platform.Linux:   {env},
		platform.Windows: {c.wmiLocale(), env},
		platform.Unknown: {env},
	}.on(c.family())
}

// parseLocale splits a POSIX locale name such as en_US.UTF-8@euro. The C and
// POSIX locales carry no language.
func parseLocale(s string) (localeInfo, error) {
	s = strings.TrimSpace(s)
	s, _, _ = strings.Cut(s, "@")
	lang, enc, _ := strings.Cut(s, ".")
	if lang == "" || lang == "C" || lang == "POSIX" {
		return localeInfo{}, fallback.ErrNoData
	}
	return localeInfo{Language: lang, Encoding: enc}, nil
}

// describeLanguage canonicalizes a locale name into a BCP 47 tag with its
// English display name, e.g. "en_US" becomes "en-US (American English)".
func describeLanguage(s string) string {
	if s == "" {
		return ""
	}
	tag, err := language.Parse(strings.ReplaceAll(s, "_", "-"))
	if err != nil {
		return s
	}
	name := display.Tags(language.English).Name(tag)
	if name == "" {
		return tag.String()
	}
	return tag.String() + " (" + name + ")"
}
