package collector

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"

	"github.com/go-tangra/go-tangra-sysinfo/internal/fallback"
	"github.com/go-tangra/go-tangra-sysinfo/internal/platform"
)

// netInterface is the source-neutral view of one interface.
type netInterface struct {
	Name     string
	Up       bool
	Loopback bool
	Addrs    []string
}

var vpnPrefixes = []string{"tun", "tap", "utun", "wg", "ppp", "ipsec"}

func isVPNInterface(name string) bool {
	name = strings.ToLower(name)
	if strings.Contains(name, "vpn") {
		return true
	}
	for _, p := range vpnPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

func (c *Collector) collectNetwork(ctx context.Context, r *Result) {
	resolveGroup(ctx, c, r, []string{FieldInterfaces, FieldVPNStatus}, func(ifaces []netInterface) {
		r.Set(FieldInterfaces, ItemList(interfaceItems(ifaces, c.opts.Limits.Interfaces)))
		r.Set(FieldVPNStatus, Scalar(vpnStatus(ifaces)))
	}, c.interfaceStrategies())

	resolveField(ctx, c, r, FieldDefaultGateway, Scalar, c.gatewayStrategies())
	resolveField(ctx, c, r, FieldDNSServers, func(servers []string) Value {
		return ItemList(capped(dedup(servers), c.opts.Limits.DNSServers))
	}, c.dnsStrategies())
	resolveField(ctx, c, r, FieldExternalIP, Scalar, c.externalIPStrategies())
}

// interfaceItems lists interfaces that are up and not loopback, sorted by
// name. Link-local IPv6 addresses are left out.
func interfaceItems(ifaces []netInterface, limit int) []string {
	var shown []netInterface
	for _, i := range ifaces {
		if i.Up && !i.Loopback {
			shown = append(shown, i)
		}
	}
	sort.Slice(shown, func(a, b int) bool { return shown[a].Name < shown[b].Name })
	shown = capped(shown, limit)

	items := make([]string, 0, len(shown))
	for _, i := range shown {
		var addrs []string
		for _, a := range i.Addrs {
			if strings.HasPrefix(strings.ToLower(a), "fe80:") {
				continue
			}
			addrs = append(addrs, a)
		}
		if len(addrs) == 0 {
			items = append(items, i.Name+": no address")
			continue
		}
		items = append(items, i.Name+": "+strings.Join(addrs, ", "))
	}
	return items
}

func vpnStatus(ifaces []netInterface) string {
	var active []string
	for _, i := range ifaces {
		if i.Up && isVPNInterface(i.Name) {
			active = append(active, i.Name)
		}
	}
	if len(active) == 0 {
		return "Not detected"
	}
	sort.Strings(active)
	return "Active (" + strings.Join(active, ", ") + ")"
}

func (c *Collector) interfaceStrategies() []fallback.Strategy[[]netInterface] {
	return everywhere(
		fallback.New("gopsutil net", func(ctx context.Context) ([]netInterface, error) {
			stats, err := c.opts.Host.Interfaces(ctx)
			if err != nil {
				return nil, err
			}
			if len(stats) == 0 {
				return nil, fallback.ErrNoData
			}
			out := make([]netInterface, 0, len(stats))
			for _, s := range stats {
				ni := netInterface{Name: s.Name}
				for _, f := range s.Flags {
					switch f {
					case "up":
						ni.Up = true
					case "loopback":
						ni.Loopback = true
					}
				}
				for _, a := range s.Addrs {
					ni.Addrs = append(ni.Addrs, a.Addr)
				}
				out = append(out, ni)
			}
			return out, nil
		}),
		fallback.New("net interfaces", func(context.Context) ([]netInterface, error) {
			ifs, err := c.opts.NetInterfaces()
			if err != nil {
				return nil, err
			}
			if len(ifs) == 0 {
				return nil, fallback.ErrNoData
			}
			out := make([]netInterface, 0, len(ifs))
			for _, i := range ifs {
				ni := netInterface{
					Name:     i.Name,
					Up:       i.Flags&net.FlagUp != 0,
					Loopback: i.Flags&net.FlagLoopback != 0,
				}
				if addrs, err := i.Addrs(); err == nil {
					for _, a := range addrs {
						ni.Addrs = append(ni.Addrs, a.String())
					}
				}
				out = append(out, ni)
			}
			return out, nil
		}),
	).on(c.family())
}

func (c *Collector) gatewayStrategies() []fallback.Strategy[string] {
	return byPlatform[string]{
		platform.MacOS: {
			command(c, func(out string) (string, error) { return nonEmpty(field(out, "gateway")) },
				"route", "-n", "get", "default"),
		},
		platform.Linux: {
			fromFile(c, "/proc/net/route", parseProcNetRoute),
			command(c, parseIPRouteDefault, "ip", "route", "show", "default"),
		},
		platform.Windows: {
			c.wmiGateway(),
			command(c, parseRoutePrint, "route", "print", "0.0.0.0"),
		},
	}.on(c.family())
}

// parseProcNetRoute finds the default route in /proc/net/route. Addresses
// are little-endian hex.
func parseProcNetRoute(s string) (string, error) {
	for _, line := range strings.Split(s, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 || fields[1] != "00000000" {
			continue
		}
		b, err := hex.DecodeString(fields[2])
		if err != nil || len(b) != 4 {
			continue
		}
		ip := make(net.IP, 4)
		binary.BigEndian.PutUint32(ip, binary.LittleEndian.Uint32(b))
		if ip.IsUnspecified() {
			continue
		}
		return ip.String() + " (" + fields[0] + ")", nil
	}
	return "", fallback.ErrNoData
}

// parseIPRouteDefault reads "default via 192.168.1.1 dev eth0 ...".
func parseIPRouteDefault(out string) (string, error) {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		var gw, dev string
		for i := 0; i+1 < len(fields); i++ {
			switch fields[i] {
			case "via":
				gw = fields[i+1]
			case "dev":
				dev = fields[i+1]
			}
		}
		if gw == "" {
			continue
		}
		if dev != "" {
			return gw + " (" + dev + ")", nil
		}
		return gw, nil
	}
	return "", fallback.ErrNoData
}

// parseRoutePrint reads the active 0.0.0.0/0 route from `route print`.
func parseRoutePrint(out string) (string, error) {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 3 && fields[0] == "0.0.0.0" && fields[1] == "0.0.0.0" && net.ParseIP(fields[2]) != nil {
			return fields[2], nil
		}
	}
	return "", fallback.ErrNoData
}

func (c *Collector) dnsStrategies() []fallback.Strategy[[]string] {
	resolvConf := fromFile(c, "/etc/resolv.conf", parseResolvConf)
	return byPlatform[[]string]{
		platform.MacOS: {
			command(c, parseScutilDNS, "scutil", "--dns"),
			resolvConf,
		},
		platform.Linux: {
			resolvConf,
			command(c, parseResolvectlDNS, "resolvectl", "dns"),
		},
		platform.Windows: {c.wmiDNSServers()},
		platform.Unknown: {resolvConf},
	}.on(c.family())
}

func parseResolvConf(s string) ([]string, error) {
	var servers []string
	for _, line := range strings.Split(s, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == "nameserver" {
			servers = append(servers, fields[1])
		}
	}
	return nonEmptyList(servers)
}

// parseScutilDNS reads "nameserver[n] : addr" lines from `scutil --dns`.
func parseScutilDNS(out string) ([]string, error) {
	var servers []string
	for _, line := range strings.Split(out, "\n") {
		k, v, ok := strings.Cut(line, ":")
		if ok && strings.HasPrefix(strings.TrimSpace(k), "nameserver[") {
			servers = append(servers, strings.TrimSpace(v))
		}
	}
	return nonEmptyList(servers)
}

// parseResolvectlDNS reads `resolvectl dns`, one "Link 2 (eth0): a b" or
// "Global: a" line per scope.
func parseResolvectlDNS(out string) ([]string, error) {
	var servers []string
	for _, line := range strings.Split(out, "\n") {
		_, v, ok := strings.Cut(line, "):")
		if !ok {
			_, v, ok = strings.Cut(line, "Global:")
		}
		if ok {
			servers = append(servers, strings.Fields(v)...)
		}
	}
	return nonEmptyList(servers)
}

func dedup(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if !seen[it] {
			seen[it] = true
			out = append(out, it)
		}
	}
	return out
}

func (c *Collector) externalIPStrategies() []fallback.Strategy[string] {
	if !c.opts.ExternalIPEnabled {
		return everywhere(fallback.New("configuration", func(context.Context) (string, error) {
			return "disabled by configuration", nil
		})).on(c.family())
	}
	strategies := make([]fallback.Strategy[string], 0, len(c.opts.ExternalIPEndpoints))
	for _, url := range c.opts.ExternalIPEndpoints {
		strategies = append(strategies, c.externalIP(url))
	}
	return everywhere(strategies...).on(c.family())
}

// maxIPResponse bounds how much of an endpoint reply is read.
const maxIPResponse = 256

func (c *Collector) externalIP(url string) fallback.Strategy[string] {
	return fallback.New(url, func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return "", fmt.Errorf("external ip request: %w", err)
		}
		resp, err := c.opts.HTTPClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("external ip: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("external ip: %s returned %s", url, resp.Status)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxIPResponse))
		if err != nil {
			return "", fmt.Errorf("external ip: %w", err)
		}
		ip := net.ParseIP(strings.TrimSpace(string(body)))
		if ip == nil {
			return "", fmt.Errorf("external ip: %s: %w", url, fallback.ErrNoData)
		}
		return ip.String(), nil
	})
}
