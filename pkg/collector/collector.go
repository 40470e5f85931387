// Package collector implements host telemetry tables. Each table has a package-level catalog,
// a row type answering Value by column id, an availability probe and a collector reading the
// data source on every Rows call.
package collector

import (
	"os"
	"runtime"

	"github.com/go-pkgz/fileutils"

	"github.com/umputun/hostquery/pkg/registry"
	"github.com/umputun/hostquery/pkg/table"
)

// Default locations of file based tables
const (
	DefaultHostsFile     = "/etc/hosts"
	DefaultProtocolsFile = "/etc/protocols"
	DefaultServicesFile  = "/etc/services"
)

// Files defines locations of file based tables, defaults used for empty fields
type Files struct {
	Hosts     string
	Protocols string
	Services  string
}

func (f Files) withDefaults() Files {
	if f.Hosts == "" {
		f.Hosts = DefaultHostsFile
	}
	if f.Protocols == "" {
		f.Protocols = DefaultProtocolsFile
	}
	if f.Services == "" {
		f.Services = DefaultServicesFile
	}
	return f
}

// Providers returns every known table in listing order. Availability is checked by the registry.
func Providers(files Files) []registry.Provider {
	files = files.withDefaults()
	return []registry.Provider{
		{Name: "etc_hosts", Catalog: etcHostsCatalog, Available: fileReadable(files.Hosts),
			Factory: func() registry.Collector { return NewEtcHosts(files.Hosts) }},
		{Name: "etc_protocols", Catalog: etcProtocolsCatalog, Available: fileReadable(files.Protocols),
			Factory: func() registry.Collector { return NewEtcProtocols(files.Protocols) }},
		{Name: "etc_services", Catalog: etcServicesCatalog, Available: fileReadable(files.Services),
			Factory: func() registry.Collector { return NewEtcServices(files.Services) }},
		{Name: "system_info", Catalog: systemInfoCatalog,
			Factory: func() registry.Collector { return NewSystemInfo() }},
		{Name: "os_version", Catalog: osVersionCatalog,
			Factory: func() registry.Collector { return NewOSVersion() }},
		{Name: "logical_drives", Catalog: logicalDrivesCatalog,
			Factory: func() registry.Collector { return NewLogicalDrives() }},
		{Name: "interface_address", Catalog: interfaceAddressCatalog, Available: notOn("darwin"),
			Factory: func() registry.Collector { return NewInterfaceAddress() }},
		{Name: "interface_details", Catalog: interfaceDetailsCatalog, Available: notOn("darwin"),
			Factory: func() registry.Collector { return NewInterfaceDetails() }},
		{Name: "uptime", Catalog: uptimeCatalog,
			Factory: func() registry.Collector { return NewUptime() }},
		{Name: "process_open_sockets", Catalog: openSocketsCatalog, Available: notOn("darwin"),
			Factory: func() registry.Collector { return NewOpenSockets() }},
		{Name: "processes", Catalog: processesCatalog,
			Factory: func() registry.Collector { return NewProcesses() }},
		{Name: "process_memory_map", Catalog: memoryMapCatalog, Available: procMapsReadable("/proc"),
			Factory: func() registry.Collector { return NewMemoryMap("/proc") }},
		{Name: "process_envs", Catalog: processEnvsCatalog, Available: notOn("windows"),
			Factory: func() registry.Collector { return NewProcessEnvs() }},
	}
}

// notOn makes probe failing on listed operating systems
func notOn(goos ...string) func() bool {
	return func() bool {
		for _, g := range goos {
			if runtime.GOOS == g {
				return false
			}
		}
		return true
	}
}

// fileReadable makes probe checking the file exists and can be opened
func fileReadable(path string) func() bool {
	return func() bool {
		if !fileutils.IsFile(path) {
			return false
		}
		fh, err := os.Open(path) //nolint gosec
		if err != nil {
			return false
		}
		_ = fh.Close()
		return true
	}
}

// procMapsReadable checks memory maps can be read for the current process
func procMapsReadable(procRoot string) func() bool {
	return func() bool {
		return runtime.GOOS == "linux" && fileReadable(procRoot+"/self/maps")()
	}
}

// text makes Text value, Null for empty strings
func text(s string) table.Value {
	if s == "" {
		return table.Null()
	}
	return table.Text(s)
}

// uint64Value converts unsigned counters, values above int64 range are clamped
func uint64Value(v uint64) table.Value {
	if v > 1<<63-1 {
		return table.Int(1<<63 - 1)
	}
	return table.Int(int64(v))
}
