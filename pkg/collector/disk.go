package collector

import (
	"fmt"
	"log"
	"strings"

	"github.com/go-pkgz/stringutils"
	"github.com/shirou/gopsutil/v4/disk"

	"github.com/umputun/hostquery/pkg/table"
)

const (
	drivesDeviceID table.ColumnID = iota
	drivesType
	drivesDescription
	drivesFreeSpace
	drivesSize
	drivesFileSystem
	drivesBootPartition
)

var logicalDrivesCatalog = table.NewCatalog(
	table.Column{Name: "device_id", Type: table.TypeText},
	table.Column{Name: "type", Type: table.TypeText},
	table.Column{Name: "description", Type: table.TypeText},
	table.Column{Name: "free_space", Type: table.TypeInteger},
	table.Column{Name: "size", Type: table.TypeInteger},
	table.Column{Name: "file_system", Type: table.TypeText},
	table.Column{Name: "boot_partition", Type: table.TypeInteger},
)

var (
	networkFS = []string{"nfs", "nfs4", "cifs", "smbfs", "smb3", "afpfs", "9p", "fuse.sshfs"}
	ramFS     = []string{"tmpfs", "ramfs", "devtmpfs"}
	bootMount = []string{"/", "/boot", `C:\`, "C:"}
)

// DriveRow is a mounted partition
type DriveRow struct {
	DeviceID      string
	Type          string
	Description   string
	FreeSpace     uint64
	Size          uint64
	HasUsage      bool // free_space and size are known
	FileSystem    string
	BootPartition bool
}

// Value implements table.Row
func (r DriveRow) Value(id table.ColumnID) table.Value {
	switch id {
	case drivesDeviceID:
		return table.Text(r.DeviceID)
	case drivesType:
		return table.Text(r.Type)
	case drivesDescription:
		return text(r.Description)
	case drivesFreeSpace:
		if !r.HasUsage {
			return table.Null()
		}
		return uint64Value(r.FreeSpace)
	case drivesSize:
		if !r.HasUsage {
			return table.Null()
		}
		return uint64Value(r.Size)
	case drivesFileSystem:
		return text(r.FileSystem)
	case drivesBootPartition:
		if r.BootPartition {
			return table.Int(1)
		}
		return table.Int(0)
	}
	return table.Null()
}

// LogicalDrives collects mounted partitions with their usage
type LogicalDrives struct {
	partitions func(all bool) ([]disk.PartitionStat, error)
	usage      func(path string) (*disk.UsageStat, error)
}

// NewLogicalDrives makes logical_drives collector
func NewLogicalDrives() *LogicalDrives {
	return &LogicalDrives{partitions: disk.Partitions, usage: disk.Usage}
}

// Catalog of logical_drives
func (l *LogicalDrives) Catalog() *table.Catalog { return logicalDrivesCatalog }

// Rows lists physical partitions. Usage failure of a single mount leaves its sizes null.
func (l *LogicalDrives) Rows() ([]table.Row, error) {
	parts, err := l.partitions(false)
	if err != nil {
		return nil, fmt.Errorf("can't get partitions: %w", err)
	}
	res := make([]table.Row, 0, len(parts))
	for _, p := range parts {
		row := DriveRow{
			DeviceID:      p.Device,
			Type:          driveType(p.Fstype),
			Description:   p.Mountpoint,
			FileSystem:    p.Fstype,
			BootPartition: stringutils.Contains(p.Mountpoint, bootMount),
		}
		if u, err := l.usage(p.Mountpoint); err == nil {
			row.FreeSpace, row.Size, row.HasUsage = u.Free, u.Total, true
		} else {
			log.Printf("[DEBUG] can't get usage of %s: %v", p.Mountpoint, err)
		}
		res = append(res, row)
	}
	return res, nil
}

func driveType(fstype string) string {
	fs := strings.ToLower(fstype)
	switch {
	case stringutils.Contains(fs, networkFS):
		return "Network Drive"
	case stringutils.Contains(fs, ramFS):
		return "RAM Disk"
	case fs == "iso9660" || fs == "udf" || fs == "cdfs":
		return "CD-ROM Disc"
	}
	return "Local Disk"
}
