package collector

// Enumeration caps per domain.
const (
	MaxGPUs           = 4
	MaxDisplays       = 8
	MaxInterfaces     = 32
	MaxDNSServers     = 3
	MaxVolumes        = 50
	MaxDevices        = 25
	MaxProcesses      = 20
	MaxListeningPorts = 50
	MaxRemoteHosts    = 10
)

// Limits overrides the enumeration caps. Zero means the default.
type Limits struct {
	GPUs           int `mapstructure:"gpus"`
	Displays       int `mapstructure:"displays"`
	Interfaces     int `mapstructure:"interfaces"`
	DNSServers     int `mapstructure:"dns_servers"`
	Volumes        int `mapstructure:"volumes"`
	Devices        int `mapstructure:"devices"`
	Processes      int `mapstructure:"processes"`
	ListeningPorts int `mapstructure:"listening_ports"`
	RemoteHosts    int `mapstructure:"remote_hosts"`
}

// DefaultLimits returns the default caps.
func DefaultLimits() Limits {
	return Limits{
		GPUs:           MaxGPUs,
		Displays:       MaxDisplays,
		Interfaces:     MaxInterfaces,
		DNSServers:     MaxDNSServers,
		Volumes:        MaxVolumes,
		Devices:        MaxDevices,
		Processes:      MaxProcesses,
		ListeningPorts: MaxListeningPorts,
		RemoteHosts:    MaxRemoteHosts,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	pick := func(v, def int) int {
		if v > 0 {
			return v
		}
		return def
	}
	return Limits{
		GPUs:           pick(l.GPUs, d.GPUs),
		Displays:       pick(l.Displays, d.Displays),
		Interfaces:     pick(l.Interfaces, d.Interfaces),
		DNSServers:     pick(l.DNSServers, d.DNSServers),
		Volumes:        pick(l.Volumes, d.Volumes),
		Devices:        pick(l.Devices, d.Devices),
		Processes:      pick(l.Processes, d.Processes),
		ListeningPorts: pick(l.ListeningPorts, d.ListeningPorts),
		RemoteHosts:    pick(l.RemoteHosts, d.RemoteHosts),
	}
}

func capped[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
