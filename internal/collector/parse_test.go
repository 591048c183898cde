package collector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-tangra/go-tangra-sysinfo/internal/fallback"
)

func TestParseProcNetRoute(t *testing.T) {
	gw, err := parseProcNetRoute("Iface\tDestination\tGateway \tFlags\tRefCnt\tUse\tMetric\tMask\t\tMTU\tWindow\tIRTT\n" +
		"wlan0\t0001A8C0\t00000000\t0001\t0\t0\t600\t00FFFFFF\t0\t0\t0\n" +
		"wlan0\t00000000\tFE01A8C0\t0003\t0\t0\t600\t00000000\t0\t0\t0\n")
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.254 (wlan0)", gw)

	_, err = parseProcNetRoute("Iface\tDestination\tGateway\n")
	assert.ErrorIs(t, err, fallback.ErrNoData)
}

func TestParseIPRouteDefault(t *testing.T) {
	gw, err := parseIPRouteDefault("default via 10.0.0.1 dev wlan0 proto dhcp metric 600\n")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1 (wlan0)", gw)
}

func TestParseRoutePrint(t *testing.T) {
	gw, err := parseRoutePrint(`===========================================================================
Active Routes:
Network Destination        Netmask          Gateway       Interface  Metric
          0.0.0.0          0.0.0.0      192.168.1.1    192.168.1.20     25
===========================================================================
`)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.1", gw)
}

func TestParseDNSSources(t *testing.T) {
	t.Run("resolv.conf", func(t *testing.T) {
		servers, err := parseResolvConf("# comment\nsearch lan\nnameserver 1.1.1.1\nnameserver fd00::1\n")
		require.NoError(t, err)
		assert.Equal(t, []string{"1.1.1.1", "fd00::1"}, servers)
	})

	t.Run("scutil", func(t *testing.T) {
		servers, err := parseScutilDNS(`DNS configuration

resolver #1
  nameserver[0] : 192.168.1.1
  nameserver[1] : 1.1.1.1
  if_index : 6 (en0)
`)
		require.NoError(t, err)
		assert.Equal(t, []string{"192.168.1.1", "1.1.1.1"}, servers)
	})

	t.Run("resolvectl", func(t *testing.T) {
		servers, err := parseResolvectlDNS("Global:\nLink 2 (eth0): 192.168.1.1 fd00::1\nLink 3 (wlan0):\n")
		require.NoError(t, err)
		assert.Equal(t, []string{"192.168.1.1", "fd00::1"}, servers)
	})

	t.Run("dedup keeps first occurrence", func(t *testing.T) {
		assert.Equal(t, []string{"a", "b", "c"}, dedup([]string{"a", "b", "a", "c", "b"}))
	})
}

const spDisplays = `Graphics/Displays:

    Apple M1 Pro:

      Chipset Model: Apple M1 Pro
      Type: GPU
      Bus: Built-In
      Total Number of Cores: 16
      Vendor: Apple (0x106b)
      Metal Support: Metal 3
      Displays:
        Color LCD:
          Display Type: Built-in Liquid Retina XDR Display
          Resolution: 3456 x 2234 Retina
          Main Display: Yes
          Mirror: Off
          Online: Yes
        DELL U2720Q:
          Resolution: 3840 x 2160 (2160p/4K UHD 1 - Ultra High Definition)
          UI Looks like: 1920 x 1080 @ 60.00Hz
          Mirror: Off
          Online: Yes
`

func TestParseDisplaysModes(t *testing.T) {
	modes, err := parseDisplaysModes(spDisplays)
	require.NoError(t, err)
	require.Len(t, modes, 2)

	assert.Equal(t, displayMode{Name: "Color LCD", Width: 3456, Height: 2234, Primary: true}, modes[0])
	assert.Equal(t, displayMode{Name: "DELL U2720Q", Width: 3840, Height: 2160, Refresh: 60}, modes[1])
	assert.Equal(t, "DELL U2720Q: 3840 x 2160 @ 60 Hz", modes[1].String())

	hz, err := primaryRefresh(modes)
	require.NoError(t, err)
	assert.Equal(t, 60.0, hz)
}

func TestParseDisplaysGPUs(t *testing.T) {
	gpus, err := parseDisplaysGPUs(spDisplays)
	require.NoError(t, err)
	assert.Equal(t, []string{"Apple M1 Pro"}, gpus)
}

func TestParseXrandrNoConnectedOutputs(t *testing.T) {
	_, err := parseXrandr("Screen 0: minimum 320 x 200\nHDMI-1 disconnected (normal)\n")
	assert.ErrorIs(t, err, fallback.ErrNoData)
}

func TestParseLspciGPUs(t *testing.T) {
	gpus, err := parseLspciGPUs(`00:1f.3 "Audio device" "Intel Corporation" "HD Audio" -r21 "Lenovo" "Device 225d"
06:00.0 "Display controller" "Advanced Micro Devices, Inc. [AMD/ATI]" "Cezanne" -rc5 "Lenovo" "Device 5099"
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"Advanced Micro Devices, Inc. [AMD/ATI] Cezanne"}, gpus)

	_, err = parseLspciGPUs(`00:1f.3 "Audio device" "Intel Corporation" "HD Audio"`)
	assert.ErrorIs(t, err, fallback.ErrNoData)
}

func TestParseLsusb(t *testing.T) {
	devices, err := parseLsusb(`Bus 002 Device 001: ID 1d6b:0003 Linux Foundation 3.0 root hub
Bus 001 Device 004: ID 0bda:5411
Bus 001 Device 003: ID 046d:c52b Logitech, Inc. Unifying Receiver
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"USB device 0bda:5411", "Logitech, Inc. Unifying Receiver"}, devices)
}

func TestParseSPUSB(t *testing.T) {
	devices, err := parseSPUSB(`USB:

    USB 3.1 Bus:

      Host Controller Driver: AppleT8103USBXHCI

        USB3.1 Hub:

          Product ID: 0x0612

            Magic Keyboard with Touch ID:

              Product ID: 0x029c
              Vendor ID: 0x05ac (Apple Inc.)

        YubiKey OTP+FIDO+CCID:

          Product ID: 0x0407
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"Magic Keyboard with Touch ID", "YubiKey OTP+FIDO+CCID"}, devices)
}

func TestParseSPBluetooth(t *testing.T) {
	devices, err := parseSPBluetooth(`Bluetooth:

      Bluetooth Controller:
          Address: AA:BB:CC:DD:EE:FF
          State: On
          Chipset: BCM_4387
      Connected:
          Magic Keyboard:
              Address: 11:22:33:44:55:66
              Vendor ID: 0x004C
          AirPods Pro:
              Address: 22:33:44:55:66:77
      Not Connected:
          MX Master 3:
              Address: 33:44:55:66:77:88
`)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Magic Keyboard (Connected)",
		"AirPods Pro (Connected)",
		"MX Master 3 (Paired, not connected)",
	}, devices)
}

func TestParseBluetoothctlEmpty(t *testing.T) {
	devices, err := parseBluetoothctl("\n")
	require.NoError(t, err)
	assert.Empty(t, devices)
	assert.NotNil(t, devices)
}

func TestParsePmset(t *testing.T) {
	t.Run("discharging", func(t *testing.T) {
		items, ok := parsePmset("Now drawing from 'Battery Power'\n -InternalBattery-0 (id=4653155)\t72%; discharging; 3:12 remaining present: true\n")
		require.True(t, ok)
		assert.Equal(t, []string{"Charge Level: 72.0%", "Status: On battery", "Time Remaining: 3h 12m"}, items)
	})

	t.Run("charging", func(t *testing.T) {
		items, ok := parsePmset("Now drawing from 'AC Power'\n -InternalBattery-0 (id=4653155)\t41%; charging; 1:05 remaining present: true\n")
		require.True(t, ok)
		assert.Equal(t, []string{"Charge Level: 41.0%", "Status: Charging (plugged in)", "Time to Full: 1h 05m"}, items)
	})

	t.Run("no battery", func(t *testing.T) {
		_, ok := parsePmset("Now drawing from 'AC Power'\n")
		assert.False(t, ok)
	})
}

func TestParseSS(t *testing.T) {
	socks, err := parseSS(`tcp   LISTEN 0      4096   127.0.0.53%lo:53        0.0.0.0:*
tcp   LISTEN 0      128          0.0.0.0:22        0.0.0.0:*
tcp   ESTAB  0      0       192.168.1.10:51234  140.82.112.3:443
udp   UNCONN 0      0            0.0.0.0:5353      0.0.0.0:*
tcp   LISTEN 0      128             [::]:22           [::]:*
`)
	require.NoError(t, err)
	require.Len(t, socks, 5)
	assert.Equal(t, socket{Proto: "TCP", LocalIP: "127.0.0.53", LocalPort: 53, RemoteIP: "0.0.0.0", Status: "LISTEN"}, socks[0])
	assert.Equal(t, socket{Proto: "TCP", LocalIP: "192.168.1.10", LocalPort: 51234, RemoteIP: "140.82.112.3", RemotePort: 443, Status: "ESTABLISHED"}, socks[2])
	assert.Equal(t, "::", socks[4].LocalIP)

	listen := listeningSockets(socks, 0)
	got := make([]string, len(listen))
	for i, s := range listen {
		got[i] = s.Proto + " " + s.LocalIP
	}
	assert.Equal(t, []string{"TCP 0.0.0.0", "TCP ::", "TCP 127.0.0.53", "UDP 0.0.0.0"}, got)
	assert.Equal(t, []string{"140.82.112.3: 1 connection"}, topRemoteHosts(socks, 10))
}

func TestParseNetstat(t *testing.T) {
	t.Run("bsd", func(t *testing.T) {
		socks, err := parseNetstat(`Active Internet connections (including servers)
Proto Recv-Q Send-Q  Local Address          Foreign Address        (state)
tcp4       0      0  192.168.1.5.54321      17.57.144.10.443       ESTABLISHED
tcp46      0      0  *.5000                 *.*                    LISTEN
udp4       0      0  *.5353                 *.*
`)
		require.NoError(t, err)
		require.Len(t, socks, 3)
		assert.Equal(t, socket{Proto: "TCP", LocalIP: "192.168.1.5", LocalPort: 54321, RemoteIP: "17.57.144.10", RemotePort: 443, Status: "ESTABLISHED"}, socks[0])
		assert.Equal(t, socket{Proto: "TCP", LocalIP: "*", LocalPort: 5000, Status: "LISTEN"}, socks[1])
		assert.True(t, socks[2].listening())
	})

	t.Run("windows", func(t *testing.T) {
		socks, err := parseNetstat(`
Active Connections

  Proto  Local Address          Foreign Address        State
  TCP    0.0.0.0:135            0.0.0.0:0              LISTENING
  TCP    [::]:445               [::]:0                 LISTENING
  UDP    0.0.0.0:500            *:*
`)
		require.NoError(t, err)
		require.Len(t, socks, 3)
		assert.Equal(t, "LISTEN", socks[0].Status)
		assert.Equal(t, "::", socks[1].LocalIP)
		assert.Equal(t, uint32(445), socks[1].LocalPort)
		assert.Empty(t, socks[2].RemoteIP)
		assert.True(t, socks[2].listening())
	})
}

func TestBindLabel(t *testing.T) {
	for ip, want := range map[string]string{
		"":             "All interfaces",
		"*":            "All interfaces",
		"0.0.0.0":      "All interfaces",
		"127.0.0.1":    "Localhost only",
		"::":           "IPv6",
		"192.168.1.10": "192.168.1.10",
	} {
		assert.Equal(t, want, bindLabel(ip), ip)
	}
}

func TestParseDF(t *testing.T) {
	vols, err := parseDF(`Filesystem     1024-blocks      Used Available Capacity Mounted on
/dev/disk3s1s1   482797652  10060452 250397952       4% /
devfs                  203       203         0     100% /dev
/dev/disk4s2        102400     51200     51200      50% /Volumes/My Disk
`)
	require.NoError(t, err)
	require.Len(t, vols, 2)
	assert.Equal(t, volume{Device: "/dev/disk4s2", Mountpoint: "/Volumes/My Disk", Total: 102400 * 1024, Free: 51200 * 1024}, vols[1])
	assert.Equal(t, "/Volumes/My Disk (/dev/disk4s2): 0.1 GB total, 0.0 GB free (50.0% free)", vols[1].String())
}

func TestParsePS(t *testing.T) {
	procs, err := parsePS(`    1   0.0  0.1 /sbin/launchd
  412  12.5  1.2 /Applications/Google Chrome.app/Contents/MacOS/Google Chrome
 9001   0.0  0.0 bash
`)
	require.NoError(t, err)
	require.Len(t, procs, 3)
	assert.Equal(t, ProcessSample{
		PID:    412,
		Name:   "Google Chrome",
		CPU:    12.5,
		Memory: 1.2,
		Path:   "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	}, procs[1])
	assert.Equal(t, ProcessSample{PID: 9001, Name: "bash"}, procs[2])
}

func TestProcessLine(t *testing.T) {
	p := ProcessSample{
		PID:    412,
		Name:   "Google Chrome Helper (Renderer)",
		CPU:    12.5,
		Memory: 1.2,
		Path:   "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	}
	assert.Equal(t, "PID 412 Google Chrome Helper: CPU 12.5%, Memory 1.2%, ...rome.app/Contents/MacOS/Google Chrome", processLine(p))
	assert.Equal(t, "PID 1 init: CPU 0.0%, Memory 0.0%, N/A", processLine(ProcessSample{PID: 1, Name: "init"}))
}

func TestRankProcessesLeavesInputAlone(t *testing.T) {
	in := []ProcessSample{{PID: 3, CPU: 1}, {PID: 1, CPU: 5}, {PID: 2, CPU: 5, Memory: 2}}
	ranked := rankProcesses(in, 2)

	assert.Equal(t, []int32{2, 1}, []int32{ranked[0].PID, ranked[1].PID})
	assert.Equal(t, int32(3), in[0].PID)
}

func TestParseLocale(t *testing.T) {
	l, err := parseLocale("de_DE.ISO-8859-15@euro")
	require.NoError(t, err)
	assert.Equal(t, localeInfo{Language: "de_DE", Encoding: "ISO-8859-15"}, l)

	for _, s := range []string{"", "C", "POSIX", "C.UTF-8"} {
		_, err := parseLocale(s)
		assert.ErrorIs(t, err, fallback.ErrNoData, s)
	}
}

func TestDescribeLanguage(t *testing.T) {
	assert.Equal(t, "en-US (American English)", describeLanguage("en_US"))
	assert.Equal(t, "", describeLanguage(""))
	assert.Equal(t, "!!", describeLanguage("!!"))
}

func TestInterfaceItemsAndVPN(t *testing.T) {
	ifaces := []netInterface{
		{Name: "utun3", Up: true, Addrs: []string{"fe80::1%utun3"}},
		{Name: "en0", Up: true, Addrs: []string{"192.168.1.5/24", "fe80::aede:48ff/64"}},
		{Name: "lo0", Up: true, Loopback: true, Addrs: []string{"127.0.0.1/8"}},
		{Name: "tun0", Addrs: []string{"10.0.0.2/32"}},
	}
	assert.Equal(t, []string{"en0: 192.168.1.5/24", "utun3: no address"}, interfaceItems(ifaces, 0))
	assert.Equal(t, []string{"en0: 192.168.1.5/24"}, interfaceItems(ifaces, 1))
	assert.Equal(t, "Active (utun3)", vpnStatus(ifaces))
	assert.Equal(t, "Not detected", vpnStatus(ifaces[1:3]))
}

func TestUnits(t *testing.T) {
	assert.Equal(t, "1.5 GB", gigabytes(3<<29))
	assert.Equal(t, "0 days, 0 hours", uptime(-time.Minute))
	assert.Equal(t, "1 day, 1 hour", uptime(25*time.Hour))
	assert.Equal(t, "UTC-05:30", utcOffset(-(5*3600 + 1800)))
	assert.Equal(t, "abc", truncateHead("abcdef", 3))
	assert.Equal(t, "abcdef", truncateTail("abcdef", 6))
	assert.Equal(t, "...fg", truncateTail("abcdefg", 5))
	assert.Equal(t, "Apple M1", field("  Chip:   Apple M1\n  Chip Count: 1\n", "Chip"))
	assert.Equal(t, "", field("Chipset Model: X\n", "Chip"))
}

func TestSysfsHelpers(t *testing.T) {
	assert.True(t, isCardDevice("card0"))
	assert.False(t, isCardDevice("card0-HDMI-A-1"))
	assert.False(t, isCardDevice("renderD128"))
	assert.Equal(t, "NVIDIA", pciVendorName("10de"))
	assert.Equal(t, "0x1234", pciVendorName("1234"))
	assert.Equal(t, map[string]string{"DRIVER": "i915", "PCI_ID": "8086:5917"}, parseUevent("DRIVER=i915\nPCI_ID=8086:5917\n\n"))
}
