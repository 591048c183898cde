package collector

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	psnet "github.com/shirou/gopsutil/v3/net"

	"github.com/go-tangra/go-tangra-sysinfo/internal/fallback"
	"github.com/go-tangra/go-tangra-sysinfo/internal/platform"
)

// socket is the source-neutral view of one connection table row.
type socket struct {
	Proto      string
	LocalIP    string
	LocalPort  uint32
	RemoteIP   string
	RemotePort uint32
	Status     string
	PID        int32
}

func (s socket) listening() bool {
	switch s.Proto {
	case "TCP":
		return s.Status == "LISTEN"
	case "UDP":
		return s.LocalPort > 0 && (s.RemoteIP == "" || s.RemoteIP == "*" || s.RemotePort == 0)
	}
	return false
}

func (s socket) established() bool {
	return s.Proto == "TCP" && s.Status == "ESTABLISHED" && s.RemoteIP != ""
}

func bindLabel(ip string) string {
	switch {
	case ip == "" || ip == "*" || ip == "0.0.0.0":
		return "All interfaces"
	case strings.HasPrefix(ip, "127."):
		return "Localhost only"
	case strings.HasPrefix(ip, "::"):
		return "IPv6"
	}
	return ip
}

func (c *Collector) collectOpenPorts(ctx context.Context, r *Result) {
	fields := []string{FieldListeningPorts, FieldEstablishedConnections, FieldTopRemoteHosts}
	resolveGroup(ctx, c, r, fields, func(socks []socket) {
		listen := listeningSockets(socks, c.opts.Limits.ListeningPorts)
		names := make(map[int32]string)
		items := make([]string, len(listen))
		for i, s := range listen {
			items[i] = c.listenLine(ctx, s, names)
		}

		established := 0
		for _, s := range socks {
			if s.established() {
				established++
			}
		}
		r.Set(FieldListeningPorts, ItemList(items))
		r.Set(FieldEstablishedConnections, Scalar(strconv.Itoa(established)))
		r.Set(FieldTopRemoteHosts, ItemList(topRemoteHosts(socks, c.opts.Limits.RemoteHosts)))
	}, c.socketStrategies())
}

// listeningSockets deduplicates listeners and sorts them by port, protocol,
// then address.
func listeningSockets(socks []socket, limit int) []socket {
	seen := make(map[string]bool)
	var out []socket
	for _, s := range socks {
		if !s.listening() {
			continue
		}
		key := fmt.Sprintf("%s|%s|%d", s.Proto, s.LocalIP, s.LocalPort)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.LocalPort != b.LocalPort {
			return a.LocalPort < b.LocalPort
		}
		if a.Proto != b.Proto {
			return a.Proto < b.Proto
		}
		return a.LocalIP < b.LocalIP
	})
	return capped(out, limit)
}

func (c *Collector) listenLine(ctx context.Context, s socket, names map[int32]string) string {
	line := fmt.Sprintf("%d/%s %s", s.LocalPort, s.Proto, bindLabel(s.LocalIP))
	if s.PID <= 0 {
		return line
	}
	name, ok := names[s.PID]
	if !ok {
		name, _ = c.opts.Host.ProcessName(ctx, s.PID)
		names[s.PID] = name
	}
	if name == "" {
		return fmt.Sprintf("%s (PID %d)", line, s.PID)
	}
	return fmt.Sprintf("%s (%s, PID %d)", line, truncateHead(name, 25), s.PID)
}

// topRemoteHosts counts established connections per remote address, sorted
// by count descending then address.
func topRemoteHosts(socks []socket, limit int) []string {
	counts := make(map[string]int)
	for _, s := range socks {
		if s.established() {
			counts[s.RemoteIP]++
		}
	}
	hosts := make([]string, 0, len(counts))
	for h := range counts {
		hosts = append(hosts, h)
	}
	sort.Slice(hosts, func(i, j int) bool {
		if counts[hosts[i]] != counts[hosts[j]] {
			return counts[hosts[i]] > counts[hosts[j]]
		}
		return hosts[i] < hosts[j]
	})
	hosts = capped(hosts, limit)

	items := make([]string, len(hosts))
	for i, h := range hosts {
		items[i] = fmt.Sprintf("%s: %d %s", h, counts[h], plural(counts[h], "connection"))
	}
	return items
}

func (c *Collector) socketStrategies() []fallback.Strategy[[]socket] {
	all := fallback.New("gopsutil net", func(ctx context.Context) ([]socket, error) {
		conns, err := c.opts.Host.Connections(ctx, "inet")
		if err != nil {
			return nil, err
		}
		return fromConnections(conns)
	})
	own := fallback.New("gopsutil net (own process)", func(ctx context.Context) ([]socket, error) {
		conns, err := c.opts.Host.ConnectionsPid(ctx, "inet", c.opts.PID)
		if err != nil {
			return nil, err
		}
		return fromConnections(conns)
	})
	netstat := command(c, parseNetstat, "netstat", "-an")
	return byPlatform[[]socket]{
		platform.MacOS:   {all, own, netstat},
		platform.Linux:   {all, own, command(c, parseSS, "ss", "-tunaH")},
		platform.Windows: {all, netstat},
		platform.Unknown: {all},
	}.on(c.family())
}

const (
	sockStream = 1
	sockDgram  = 2
)

func fromConnections(conns []psnet.ConnectionStat) ([]socket, error) {
	if len(conns) == 0 {
		return nil, fallback.ErrNoData
	}
	out := make([]socket, 0, len(conns))
	for _, cs := range conns {
		s := socket{
			LocalIP:    cs.Laddr.IP,
			LocalPort:  cs.Laddr.Port,
			RemoteIP:   cs.Raddr.IP,
			RemotePort: cs.Raddr.Port,
			Status:     cs.Status,
			PID:        cs.Pid,
		}
		switch cs.Type {
		case sockStream:
			s.Proto = "TCP"
		case sockDgram:
			s.Proto = "UDP"
		default:
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// splitHostPort splits addresses as printed by ss and netstat: "1.2.3.4:80",
// "[::1]:631", "*:53", or with sep '.' on BSD netstat "127.0.0.1.631".
func splitHostPort(addr string, sep byte) (string, uint32, bool) {
	i := strings.LastIndexByte(addr, sep)
	if i < 0 {
		return "", 0, false
	}
	host, port := addr[:i], addr[i+1:]
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if z := strings.IndexByte(host, '%'); z >= 0 {
		host = host[:z]
	}
	if port == "*" {
		return host, 0, true
	}
	p, err := strconv.ParseUint(port, 10, 32)
	if err != nil {
		return "", 0, false
	}
	return host, uint32(p), true
}

// parseSS reads `ss -tunaH`: Netid State Recv-Q Send-Q Local Peer.
func parseSS(out string) ([]socket, error) {
	var socks []socket
	for _, line := range strings.Split(out, "\n") {
		f := strings.Fields(line)
		if len(f) < 6 {
			continue
		}
		s := socket{Proto: strings.ToUpper(f[0]), Status: ssState(f[1])}
		if s.Proto != "TCP" && s.Proto != "UDP" {
			continue
		}
		var ok bool
		if s.LocalIP, s.LocalPort, ok = splitHostPort(f[4], ':'); !ok {
			continue
		}
		s.RemoteIP, s.RemotePort, _ = splitHostPort(f[5], ':')
		socks = append(socks, s)
	}
	if len(socks) == 0 {
		return nil, fallback.ErrNoData
	}
	return socks, nil
}

func ssState(s string) string {
	switch s {
	case "ESTAB":
		return "ESTABLISHED"
	case "UNCONN":
		return ""
	}
	return s
}

// parseNetstat reads `netstat -an` from BSD/macOS ("tcp4 0 0 *.22 *.*
// LISTEN") and Windows ("TCP 0.0.0.0:135 0.0.0.0:0 LISTENING").
func parseNetstat(out string) ([]socket, error) {
	var socks []socket
	for _, line := range strings.Split(out, "\n") {
		f := strings.Fields(line)
		if len(f) < 2 {
			continue
		}
		var (
			s        socket
			sep      byte
			local    string
			remote   string
			stateIdx int
		)
		switch proto := f[0]; {
		case proto == "TCP" || proto == "UDP":
			if len(f) < 3 {
				continue
			}
			s.Proto, sep, local, remote, stateIdx = proto, ':', f[1], f[2], 3
		case strings.HasPrefix(proto, "tcp") || strings.HasPrefix(proto, "udp"):
			if len(f) < 5 {
				continue
			}
			s.Proto, sep, local, remote, stateIdx = strings.ToUpper(proto[:3]), '.', f[3], f[4], 5
		default:
			continue
		}
		if len(f) > stateIdx {
			s.Status = f[stateIdx]
			if s.Status == "LISTENING" {
				s.Status = "LISTEN"
			}
		}
		var ok bool
		if s.LocalIP, s.LocalPort, ok = splitHostPort(local, sep); !ok {
			continue
		}
		s.RemoteIP, s.RemotePort, _ = splitHostPort(remote, sep)
		if s.RemoteIP == "*" {
			s.RemoteIP = ""
		}
		socks = append(socks, s)
	}
	if len(socks) == 0 {
		return nil, fallback.ErrNoData
	}
	return socks, nil
}
