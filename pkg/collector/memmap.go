package collector

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/umputun/hostquery/pkg/table"
)

const (
	mapPid table.ColumnID = iota
	mapStart
	mapEnd
	mapPermissions
	mapOffset
	mapDevice
	mapInode
	mapPath
	mapPseudo
)

var memoryMapCatalog = table.NewCatalog(
	table.Column{Name: "pid", Type: table.TypeInteger},
	table.Column{Name: "start", Type: table.TypeText},
	table.Column{Name: "end", Type: table.TypeText},
	table.Column{Name: "permissions", Type: table.TypeText},
	table.Column{Name: "offset", Type: table.TypeInteger},
	table.Column{Name: "device", Type: table.TypeText},
	table.Column{Name: "inode", Type: table.TypeInteger},
	table.Column{Name: "path", Type: table.TypeText},
	table.Column{Name: "pseudo", Type: table.TypeInteger},
)

// MemoryMapRow is a mapped memory region of a process
type MemoryMapRow struct {
	Pid         int64
	Start       string
	End         string
	Permissions string
	Offset      int64
	Device      string
	Inode       int64
	Path        string
	Pseudo      bool // anonymous or kernel region like [heap] or [vdso]
}

// Value implements table.Row
func (r MemoryMapRow) Value(id table.ColumnID) table.Value {
	switch id {
	case mapPid:
		return table.Int(r.Pid)
	case mapStart:
		return table.Text(r.Start)
	case mapEnd:
		return table.Text(r.End)
	case mapPermissions:
		return table.Text(r.Permissions)
	case mapOffset:
		return table.Int(r.Offset)
	case mapDevice:
		return table.Text(r.Device)
	case mapInode:
		return table.Int(r.Inode)
	case mapPath:
		return table.Text(r.Path)
	case mapPseudo:
		if r.Pseudo {
			return table.Int(1)
		}
		return table.Int(0)
	}
	return table.Null()
}

// MemoryMap reads memory maps of all processes from procfs
type MemoryMap struct {
	procRoot string
}

// NewMemoryMap makes process_memory_map collector for procfs mounted at procRoot
func NewMemoryMap(procRoot string) *MemoryMap { return &MemoryMap{procRoot: procRoot} }

// Catalog of process_memory_map
func (m *MemoryMap) Catalog() *table.Catalog { return memoryMapCatalog }

// Rows returns regions of every process with readable maps
func (m *MemoryMap) Rows() ([]table.Row, error) {
	entries, err := os.ReadDir(m.procRoot)
	if err != nil {
		return nil, fmt.Errorf("can't read %s: %w", m.procRoot, err)
	}
	var res []table.Row
	for _, e := range entries {
		pid, err := strconv.ParseInt(e.Name(), 10, 64)
		if err != nil || !e.IsDir() {
			continue
		}
		fh, err := os.Open(filepath.Join(m.procRoot, e.Name(), "maps")) //nolint gosec
		if err != nil {
			continue
		}
		rows, err := parseMaps(pid, fh)
		_ = fh.Close()
		if err != nil {
			continue
		}
		res = append(res, rows...)
	}
	return res, nil
}

// parseMaps parses lines like
// 7f1c2a000000-7f1c2a021000 r-xp 00000000 08:01 1048602 /usr/lib/libc.so.6
func parseMaps(pid int64, r io.Reader) ([]table.Row, error) {
	var res []table.Row
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 {
			continue
		}
		start, end, ok := strings.Cut(fields[0], "-")
		if !ok {
			continue
		}
		offset, err := strconv.ParseInt(fields[2], 16, 64)
		if err != nil {
			continue
		}
		inode, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			continue
		}
		path := strings.Join(fields[5:], " ")
		res = append(res, MemoryMapRow{
			Pid:         pid,
			Start:       "0x" + start,
			End:         "0x" + end,
			Permissions: fields[1],
			Offset:      offset,
			Device:      fields[3],
			Inode:       inode,
			Path:        path,
			Pseudo:      path == "" || strings.HasPrefix(path, "["),
		})
	}
	return res, scanner.Err()
}
