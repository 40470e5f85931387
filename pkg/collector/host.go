package collector

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/umputun/hostquery/pkg/table"
)

const (
	uptimeDays table.ColumnID = iota
	uptimeHours
	uptimeMinutes
	uptimeSeconds
	uptimeTotalSeconds
)

var uptimeCatalog = table.NewCatalog(
	table.Column{Name: "days", Type: table.TypeInteger},
	table.Column{Name: "hours", Type: table.TypeInteger},
	table.Column{Name: "minutes", Type: table.TypeInteger},
	table.Column{Name: "seconds", Type: table.TypeInteger},
	table.Column{Name: "total_seconds", Type: table.TypeInteger},
)

// UptimeRow splits uptime into days, hours, minutes and seconds
type UptimeRow struct {
	Days, Hours, Minutes, Seconds, TotalSeconds int64
}

// Value implements table.Row
func (r UptimeRow) Value(id table.ColumnID) table.Value {
	switch id {
	case uptimeDays:
		return table.Int(r.Days)
	case uptimeHours:
		return table.Int(r.Hours)
	case uptimeMinutes:
		return table.Int(r.Minutes)
	case uptimeSeconds:
		return table.Int(r.Seconds)
	case uptimeTotalSeconds:
		return table.Int(r.TotalSeconds)
	}
	return table.Null()
}

// NewUptimeRow makes row from total seconds
func NewUptimeRow(total uint64) UptimeRow {
	t := int64(total) //nolint gosec
	return UptimeRow{
		Days:         t / 86400,
		Hours:        t % 86400 / 3600,
		Minutes:      t % 3600 / 60,
		Seconds:      t % 60,
		TotalSeconds: t,
	}
}

// Uptime collects system uptime, always a single row
type Uptime struct {
	uptime func() (uint64, error)
}

// NewUptime makes uptime collector
func NewUptime() *Uptime { return &Uptime{uptime: host.Uptime} }

// Catalog of uptime
func (u *Uptime) Catalog() *table.Catalog { return uptimeCatalog }

// Rows returns single uptime row
func (u *Uptime) Rows() ([]table.Row, error) {
	total, err := u.uptime()
	if err != nil {
		return nil, fmt.Errorf("can't get uptime: %w", err)
	}
	return []table.Row{NewUptimeRow(total)}, nil
}

const (
	osVersionName table.ColumnID = iota
	osVersionPlatform
	osVersionPlatformLike
	osVersionVersion
	osVersionMajor
	osVersionMinor
	osVersionPatch
	osVersionBuild
	osVersionCodename
)

var osVersionCatalog = table.NewCatalog(
	table.Column{Name: "name", Type: table.TypeText},
	table.Column{Name: "platform", Type: table.TypeText},
	table.Column{Name: "platform_like", Type: table.TypeText},
	table.Column{Name: "version", Type: table.TypeText},
	table.Column{Name: "major", Type: table.TypeInteger},
	table.Column{Name: "minor", Type: table.TypeInteger},
	table.Column{Name: "patch", Type: table.TypeInteger},
	table.Column{Name: "build", Type: table.TypeText},
	table.Column{Name: "codename", Type: table.TypeText},
)

// OSVersionRow describes the operating system
type OSVersionRow struct {
	Name         string
	Platform     string
	PlatformLike string
	Version      string
	Major        int64
	Minor        int64
	Patch        int64
	Build        string
	Codename     string
}

// Value implements table.Row
func (r OSVersionRow) Value(id table.ColumnID) table.Value {
	switch id {
	case osVersionName:
		return table.Text(r.Name)
	case osVersionPlatform:
		return table.Text(r.Platform)
	case osVersionPlatformLike:
		return text(r.PlatformLike)
	case osVersionVersion:
		return table.Text(r.Version)
	case osVersionMajor:
		return table.Int(r.Major)
	case osVersionMinor:
		return table.Int(r.Minor)
	case osVersionPatch:
		return table.Int(r.Patch)
	case osVersionBuild:
		return text(r.Build)
	case osVersionCodename:
		return text(r.Codename)
	}
	return table.Null()
}

// OSVersion collects operating system version, always a single row
type OSVersion struct {
	info      func() (*host.InfoStat, error)
	osRelease string
}

// NewOSVersion makes os_version collector
func NewOSVersion() *OSVersion { return &OSVersion{info: host.Info, osRelease: "/etc/os-release"} }

// Catalog of os_version
func (o *OSVersion) Catalog() *table.Catalog { return osVersionCatalog }

// Rows returns single os version row
func (o *OSVersion) Rows() ([]table.Row, error) {
	info, err := o.info()
	if err != nil {
		return nil, fmt.Errorf("can't get host info: %w", err)
	}
	row := OSVersionRow{
		Name:         info.Platform,
		Platform:     info.OS,
		PlatformLike: info.PlatformFamily,
		Version:      info.PlatformVersion,
		Build:        info.KernelVersion,
	}
	if row.Name == "" {
		row.Name = info.OS
	}
	row.Major, row.Minor, row.Patch = splitVersion(info.PlatformVersion)

	if release, err := readOSRelease(o.osRelease); err == nil {
		row.Codename = release["VERSION_CODENAME"]
		if name := release["NAME"]; name != "" {
			row.Name = name
		}
	}
	return []table.Row{row}, nil
}

// splitVersion extracts up to three leading numeric components, "22.04.3 LTS" is 22, 4, 3
func splitVersion(v string) (major, minor, patch int64) {
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return 0, 0, 0
	}
	var res [3]int64
	for i, p := range strings.SplitN(fields[0], ".", 4) {
		if i >= len(res) {
			break
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			break
		}
		res[i] = n
	}
	return res[0], res[1], res[2]
}

// readOSRelease parses KEY=VALUE lines of os-release file
func readOSRelease(path string) (map[string]string, error) {
	fh, err := os.Open(path) //nolint gosec
	if err != nil {
		return nil, err
	}
	defer fh.Close() //nolint

	res := map[string]string{}
	scanner := bufio.NewScanner(fh)
	for scanner.Scan() {
		k, v, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok || strings.HasPrefix(k, "#") {
			continue
		}
		res[k] = strings.Trim(v, `"'`)
	}
	return res, scanner.Err()
}

const (
	systemInfoHostname table.ColumnID = iota
	systemInfoCPUBrand
	systemInfoCPULogicalCores
	systemInfoCPUPhysicalCores
	systemInfoPhysicalMemory
	systemInfoComputerName
	systemInfoUUID
)

var systemInfoCatalog = table.NewCatalog(
	table.Column{Name: "hostname", Type: table.TypeText},
	table.Column{Name: "cpu_brand", Type: table.TypeText},
	table.Column{Name: "cpu_logical_cores", Type: table.TypeInteger},
	table.Column{Name: "cpu_physical_cores", Type: table.TypeInteger},
	table.Column{Name: "physical_memory", Type: table.TypeInteger},
	table.Column{Name: "computer_name", Type: table.TypeText},
	table.Column{Name: "uuid", Type: table.TypeText},
)

// SystemInfoRow describes host hardware
type SystemInfoRow struct {
	Hostname         string
	CPUBrand         string
	CPULogicalCores  int64
	CPUPhysicalCores int64
	PhysicalMemory   uint64
	ComputerName     string
	UUID             string
}

// Value implements table.Row
func (r SystemInfoRow) Value(id table.ColumnID) table.Value {
	switch id {
	case systemInfoHostname:
		return table.Text(r.Hostname)
	case systemInfoCPUBrand:
		return text(r.CPUBrand)
	case systemInfoCPULogicalCores:
		return table.Int(r.CPULogicalCores)
	case systemInfoCPUPhysicalCores:
		return table.Int(r.CPUPhysicalCores)
	case systemInfoPhysicalMemory:
		return uint64Value(r.PhysicalMemory)
	case systemInfoComputerName:
		return text(r.ComputerName)
	case systemInfoUUID:
		return text(r.UUID)
	}
	return table.Null()
}

// SystemInfo collects host hardware summary, always a single row
type SystemInfo struct {
	info     func() (*host.InfoStat, error)
	cpus     func() ([]cpu.InfoStat, error)
	counts   func(logical bool) (int, error)
	memory   func() (*mem.VirtualMemoryStat, error)
	hostname func() (string, error)
}

// NewSystemInfo makes system_info collector
func NewSystemInfo() *SystemInfo {
	return &SystemInfo{info: host.Info, cpus: cpu.Info, counts: cpu.Counts, memory: mem.VirtualMemory, hostname: os.Hostname}
}

// Catalog of system_info
func (s *SystemInfo) Catalog() *table.Catalog { return systemInfoCatalog }

// Rows returns single row. Host info is required, cpu and memory failures leave zero values.
func (s *SystemInfo) Rows() ([]table.Row, error) {
	info, err := s.info()
	if err != nil {
		return nil, fmt.Errorf("can't get host info: %w", err)
	}
	row := SystemInfoRow{Hostname: info.Hostname, UUID: info.HostID}

	if cpus, err := s.cpus(); err == nil && len(cpus) > 0 {
		row.CPUBrand = strings.TrimSpace(cpus[0].ModelName)
	} else if err != nil {
		log.Printf("[DEBUG] can't get cpu info: %v", err)
	}
	if n, err := s.counts(true); err == nil {
		row.CPULogicalCores = int64(n)
	}
	if n, err := s.counts(false); err == nil {
		row.CPUPhysicalCores = int64(n)
	}
	if vm, err := s.memory(); err == nil {
		row.PhysicalMemory = vm.Total
	} else {
		log.Printf("[DEBUG] can't get memory info: %v", err)
	}
	if name, err := s.hostname(); err == nil {
		row.ComputerName = name
	}
	return []table.Row{row}, nil
}
