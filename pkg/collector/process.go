package collector

import (
	"fmt"
	"log"
	"strings"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/umputun/hostquery/pkg/table"
)

const (
	procPid table.ColumnID = iota
	procName
	procPath
	procCmdline
	procState
	procCwd
	procUID
	procGID
	procParent
	procResidentSize
	procTotalSize
	procStartTime
	procNice
	procThreads
)

var processesCatalog = table.NewCatalog(
	table.Column{Name: "pid", Type: table.TypeInteger},
	table.Column{Name: "name", Type: table.TypeText},
	table.Column{Name: "path", Type: table.TypeText},
	table.Column{Name: "cmdline", Type: table.TypeText},
	table.Column{Name: "state", Type: table.TypeText},
	table.Column{Name: "cwd", Type: table.TypeText},
	table.Column{Name: "uid", Type: table.TypeInteger},
	table.Column{Name: "gid", Type: table.TypeInteger},
	table.Column{Name: "parent", Type: table.TypeInteger},
	table.Column{Name: "resident_size", Type: table.TypeInteger},
	table.Column{Name: "total_size", Type: table.TypeInteger},
	table.Column{Name: "start_time", Type: table.TypeInteger},
	table.Column{Name: "nice", Type: table.TypeInteger},
	table.Column{Name: "threads", Type: table.TypeInteger},
)

// ProcessRow is a running process. Negative uid, gid and parent mean unknown.
type ProcessRow struct {
	Pid          int64
	Name         string
	Path         string
	Cmdline      string
	State        string
	Cwd          string
	UID          int64
	GID          int64
	Parent       int64
	ResidentSize uint64
	TotalSize    uint64
	StartTime    int64 // unix seconds
	Nice         int64
	Threads      int64
}

// Value implements table.Row
func (r ProcessRow) Value(id table.ColumnID) table.Value {
	switch id {
	case procPid:
		return table.Int(r.Pid)
	case procName:
		return table.Text(r.Name)
	case procPath:
		return text(r.Path)
	case procCmdline:
		return text(r.Cmdline)
	case procState:
		return text(r.State)
	case procCwd:
		return text(r.Cwd)
	case procUID:
		return known(r.UID)
	case procGID:
		return known(r.GID)
	case procParent:
		return known(r.Parent)
	case procResidentSize:
		return uint64Value(r.ResidentSize)
	case procTotalSize:
		return uint64Value(r.TotalSize)
	case procStartTime:
		return table.Int(r.StartTime)
	case procNice:
		return table.Int(r.Nice)
	case procThreads:
		return table.Int(r.Threads)
	}
	return table.Null()
}

// known makes Null for negative values
func known(v int64) table.Value {
	if v < 0 {
		return table.Null()
	}
	return table.Int(v)
}

// Processes collects all running processes
type Processes struct {
	list func() ([]*process.Process, error)
}

// NewProcesses makes processes collector
func NewProcesses() *Processes { return &Processes{list: process.Processes} }

// Catalog of processes
func (p *Processes) Catalog() *table.Catalog { return processesCatalog }

// Rows returns a row per process. Processes gone between listing and reading are skipped,
// attributes not readable for permission reasons are left empty.
func (p *Processes) Rows() ([]table.Row, error) {
	procs, err := p.list()
	if err != nil {
		return nil, fmt.Errorf("can't list processes: %w", err)
	}
	res := make([]table.Row, 0, len(procs))
	for _, proc := range procs {
		row, err := processRow(proc)
		if err != nil {
			log.Printf("[DEBUG] skip process %d: %v", proc.Pid, err)
			continue
		}
		res = append(res, row)
	}
	return res, nil
}

func processRow(proc *process.Process) (ProcessRow, error) {
	name, err := proc.Name()
	if err != nil {
		return ProcessRow{}, fmt.Errorf("can't get name: %w", err)
	}
	row := ProcessRow{Pid: int64(proc.Pid), Name: name, UID: -1, GID: -1, Parent: -1}

	// optional attributes, permission denied on any of them keeps the process in the result
	row.Path, _ = proc.Exe()
	row.Cmdline, _ = proc.Cmdline()
	row.Cwd, _ = proc.Cwd()
	if st, err := proc.Status(); err == nil && len(st) > 0 {
		row.State = st[0]
	}
	if uids, err := proc.Uids(); err == nil && len(uids) > 0 {
		row.UID = int64(uids[0])
	}
	if gids, err := proc.Gids(); err == nil && len(gids) > 0 {
		row.GID = int64(gids[0])
	}
	if ppid, err := proc.Ppid(); err == nil {
		row.Parent = int64(ppid)
	}
	if mi, err := proc.MemoryInfo(); err == nil && mi != nil {
		row.ResidentSize, row.TotalSize = mi.RSS, mi.VMS
	}
	if ct, err := proc.CreateTime(); err == nil {
		row.StartTime = ct / 1000
	}
	if nice, err := proc.Nice(); err == nil {
		row.Nice = int64(nice)
	}
	if threads, err := proc.NumThreads(); err == nil {
		row.Threads = int64(threads)
	}
	return row, nil
}

const (
	envsPid table.ColumnID = iota
	envsKey
	envsValue
)

var processEnvsCatalog = table.NewCatalog(
	table.Column{Name: "pid", Type: table.TypeInteger},
	table.Column{Name: "key", Type: table.TypeText},
	table.Column{Name: "value", Type: table.TypeText},
)

// EnvRow is an environment variable of a process
type EnvRow struct {
	Pid   int64
	Key   string
	Val   string
}

// Value implements table.Row
func (r EnvRow) Value(id table.ColumnID) table.Value {
	switch id {
	case envsPid:
		return table.Int(r.Pid)
	case envsKey:
		return table.Text(r.Key)
	case envsValue:
		return table.Text(r.Val)
	}
	return table.Null()
}

// ProcessEnvs collects environment of all processes readable by the current user
type ProcessEnvs struct {
	list func() ([]*process.Process, error)
}

// NewProcessEnvs makes process_envs collector
func NewProcessEnvs() *ProcessEnvs { return &ProcessEnvs{list: process.Processes} }

// Catalog of process_envs
func (p *ProcessEnvs) Catalog() *table.Catalog { return processEnvsCatalog }

// Rows returns a row per variable per process
func (p *ProcessEnvs) Rows() ([]table.Row, error) {
	procs, err := p.list()
	if err != nil {
		return nil, fmt.Errorf("can't list processes: %w", err)
	}
	var res []table.Row
	for _, proc := range procs {
		env, err := proc.Environ()
		if err != nil {
			continue
		}
		res = append(res, envRows(int64(proc.Pid), env)...)
	}
	return res, nil
}

// envRows splits KEY=VALUE pairs, entries without "=" are skipped
func envRows(pid int64, env []string) []table.Row {
	res := make([]table.Row, 0, len(env))
	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		res = append(res, EnvRow{Pid: pid, Key: k, Val: v})
	}
	return res
}
