package collector

import (
	"github.com/go-tangra/go-tangra-sysinfo/internal/report"
)

// Domain names one diagnostic area.
type Domain string

const (
	Summary         Domain = "summary"
	Hardware        Domain = "hardware"
	Display         Domain = "display"
	Network         Domain = "network"
	Storage         Domain = "storage"
	Devices         Domain = "devices"
	UserEnvironment Domain = "user-environment"
	Processes       Domain = "processes"
	OpenPorts       Domain = "open-ports"
)

// Domains lists every domain in full-report order.
var Domains = []Domain{
	Summary, Hardware, Display, Network, Storage, Devices, UserEnvironment, Processes, OpenPorts,
}

// Field names. The same name always means the same thing across domains.
const (
	FieldHostname     = "Hostname"
	FieldPlatform     = "Platform"
	FieldArchitecture = "Architecture"
	FieldProcessor    = "Processor"
	FieldSerialNumber = "Serial Number"
	FieldCPUCores     = "CPU Cores"
	FieldCPUFrequency = "CPU Frequency"
	FieldCPUUsage     = "CPU Usage"
	FieldLoadAverage  = "Load Average"
	FieldTotalRAM     = "Total RAM"
	FieldAvailableRAM = "Available RAM"
	FieldSwap         = "Swap"
	FieldSystemVendor = "System Vendor"
	FieldSystemModel  = "System Model"
	FieldBIOS         = "BIOS"
	FieldGPU          = "GPU"
	FieldBattery      = "Battery"
	FieldBootTime     = "Boot Time"
	FieldUptime       = "Uptime"

	FieldDisplayServer     = "Display Server"
	FieldDisplays          = "Displays"
	FieldPrimaryResolution = "Primary Resolution"
	FieldRefreshRate       = "Refresh Rate"

	FieldInterfaces     = "Interfaces"
	FieldDefaultGateway = "Default Gateway"
	FieldDNSServers     = "DNS Servers"
	FieldExternalIP     = "External IP"
	FieldVPNStatus      = "VPN Status"

	FieldVolumes       = "Volumes"
	FieldTotalCapacity = "Total Capacity"
	FieldTotalFree     = "Total Free"

	FieldUSBDevices       = "USB Devices"
	FieldBluetoothDevices = "Bluetooth Devices"

	FieldCurrentUser    = "Current User"
	FieldFullName       = "Full Name"
	FieldHomeDirectory  = "Home Directory"
	FieldShell          = "Shell"
	FieldSessionStart   = "Session Start"
	FieldCurrentTime    = "Current Time"
	FieldTimezone       = "Timezone"
	FieldUTCOffset      = "UTC Offset"
	FieldSystemLanguage = "System Language"
	FieldEncoding       = "Encoding"

	FieldTopProcesses    = "Top Processes"
	FieldTotalProcesses  = "Total Processes"
	FieldActiveProcesses = "Active Processes"

	FieldListeningPorts         = "Listening Ports"
	FieldEstablishedConnections = "Established Connections"
	FieldTopRemoteHosts         = "Top Remote Hosts"
)

// Schema fixes the title and field order of a domain's section.
type Schema struct {
	Domain Domain
	Title  string
	Fields []string
}

var schemas = map[Domain]Schema{
	Summary: {Summary, "System Summary", []string{
		FieldHostname, FieldPlatform, FieldArchitecture, FieldProcessor, FieldSerialNumber,
		FieldCPUCores, FieldCPUUsage, FieldTotalRAM, FieldAvailableRAM, FieldBootTime, FieldUptime,
	}},
	Hardware: {Hardware, "Hardware", []string{
		FieldSystemVendor, FieldSystemModel, FieldBIOS, FieldProcessor, FieldCPUCores,
		FieldCPUFrequency, FieldCPUUsage, FieldLoadAverage, FieldTotalRAM, FieldAvailableRAM,
		FieldSwap, FieldGPU, FieldBattery, FieldBootTime, FieldUptime,
	}},
	Display: {Display, "Display", []string{
		FieldDisplayServer, FieldDisplays, FieldPrimaryResolution, FieldRefreshRate,
	}},
	Network: {Network, "Network", []string{
		FieldInterfaces, FieldDefaultGateway, FieldDNSServers, FieldExternalIP, FieldVPNStatus,
	}},
	Storage: {Storage, "Storage", []string{
		FieldVolumes, FieldTotalCapacity, FieldTotalFree,
	}},
	Devices: {Devices, "Connected Devices", []string{
		FieldUSBDevices, FieldBluetoothDevices,
	}},
	UserEnvironment: {UserEnvironment, "User Environment", []string{
		FieldCurrentUser, FieldFullName, FieldHomeDirectory, FieldShell, FieldSessionStart,
		FieldCurrentTime, FieldTimezone, FieldUTCOffset, FieldSystemLanguage, FieldEncoding,
	}},
	Processes: {Processes, "Running Processes", []string{
		FieldTopProcesses, FieldTotalProcesses, FieldActiveProcesses,
	}},
	OpenPorts: {OpenPorts, "Open Ports", []string{
		FieldListeningPorts, FieldEstablishedConnections, FieldTopRemoteHosts,
	}},
}

// SchemaFor returns the schema of d.
func SchemaFor(d Domain) (Schema, bool) {
	s, ok := schemas[d]
	return s, ok
}

// Value is a collected field value: either scalar text or an ordered list.
type Value struct {
	Text  string
	Items []string
	List  bool
}

// Scalar returns a text value.
func Scalar(s string) Value { return Value{Text: s} }

// ItemList returns a list value. A nil or empty list renders as "none".
func ItemList(items []string) Value { return Value{Items: items, List: true} }

// Result is what an adapter collected for one domain. Fields are either set
// or degraded with a reason.
type Result struct {
	Schema   Schema
	values   map[string]Value
	degraded map[string]string
}

// NewResult returns an empty result for the schema.
func NewResult(s Schema) *Result {
	return &Result{
		Schema:   s,
		values:   make(map[string]Value, len(s.Fields)),
		degraded: make(map[string]string),
	}
}

// UnavailableResult returns a result in which every field is degraded with
// the same reason.
func UnavailableResult(s Schema, reason string) *Result {
	r := NewResult(s)
	for _, f := range s.Fields {
		r.Degrade(f, reason)
	}
	return r
}

// Set records a value for field, clearing any earlier degradation.
func (r *Result) Set(field string, v Value) {
	delete(r.degraded, field)
	r.values[field] = v
}

// Degrade marks field as unavailable.
func (r *Result) Degrade(field, reason string) {
	delete(r.values, field)
	r.degraded[field] = reason
}

// Get returns the value of field, if one was collected.
func (r *Result) Get(field string) (Value, bool) {
	v, ok := r.values[field]
	return v, ok
}

// DegradedReason returns why field is unavailable, if it is.
func (r *Result) DegradedReason(field string) (string, bool) {
	reason, ok := r.degraded[field]
	return reason, ok
}

// DegradedFields returns the degraded fields in schema order.
func (r *Result) DegradedFields() []string {
	var out []string
	for _, f := range r.Schema.Fields {
		if _, ok := r.values[f]; !ok {
			out = append(out, f)
		}
	}
	return out
}

// Section renders the result as a report section in schema order. A field
// that was neither set nor degraded still gets a line.
func (r *Result) Section() report.Section {
	lines := make([]report.Line, 0, len(r.Schema.Fields))
	for _, f := range r.Schema.Fields {
		if v, ok := r.values[f]; ok {
			if v.List {
				lines = append(lines, report.List(f, v.Items))
			} else {
				lines = append(lines, report.Text(f, v.Text))
			}
			continue
		}
		reason, ok := r.degraded[f]
		if !ok {
			reason = "not collected"
		}
		lines = append(lines, report.Unavailable(f, reason))
	}
	return report.Section{Title: r.Schema.Title, Lines: lines}
}
