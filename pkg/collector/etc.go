package collector

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/umputun/hostquery/pkg/table"
)

const (
	etcHostsAddress table.ColumnID = iota
	etcHostsHostnames
)

var etcHostsCatalog = table.NewCatalog(
	table.Column{Name: "address", Type: table.TypeText},
	table.Column{Name: "hostnames", Type: table.TypeText},
)

// HostsRow is a line of hosts file
type HostsRow struct {
	Address   string
	Hostnames string // space separated
}

// Value implements table.Row
func (r HostsRow) Value(id table.ColumnID) table.Value {
	switch id {
	case etcHostsAddress:
		return table.Text(r.Address)
	case etcHostsHostnames:
		return table.Text(r.Hostnames)
	}
	return table.Null()
}

// EtcHosts reads hosts file
type EtcHosts struct {
	path string
}

// NewEtcHosts makes collector for hosts file at path
func NewEtcHosts(path string) *EtcHosts { return &EtcHosts{path: path} }

// Catalog of etc_hosts
func (e *EtcHosts) Catalog() *table.Catalog { return etcHostsCatalog }

// Rows parses the file, lines without hostname are skipped
func (e *EtcHosts) Rows() ([]table.Row, error) {
	var res []table.Row
	err := scanFile(e.path, func(fields []string, _ string) {
		if len(fields) < 2 {
			return
		}
		res = append(res, HostsRow{Address: fields[0], Hostnames: strings.Join(fields[1:], " ")})
	})
	return res, err
}

const (
	etcProtocolsName table.ColumnID = iota
	etcProtocolsNumber
	etcProtocolsAlias
	etcProtocolsComment
)

var etcProtocolsCatalog = table.NewCatalog(
	table.Column{Name: "name", Type: table.TypeText},
	table.Column{Name: "number", Type: table.TypeInteger},
	table.Column{Name: "alias", Type: table.TypeText},
	table.Column{Name: "comment", Type: table.TypeText},
)

// ProtocolRow is a line of protocols file
type ProtocolRow struct {
	Name    string
	Number  int64
	Alias   string
	Comment string
}

// Value implements table.Row
func (r ProtocolRow) Value(id table.ColumnID) table.Value {
	switch id {
	case etcProtocolsName:
		return table.Text(r.Name)
	case etcProtocolsNumber:
		return table.Int(r.Number)
	case etcProtocolsAlias:
		return table.Text(r.Alias)
	case etcProtocolsComment:
		return table.Text(r.Comment)
	}
	return table.Null()
}

// EtcProtocols reads protocols file
type EtcProtocols struct {
	path string
}

// NewEtcProtocols makes collector for protocols file at path
func NewEtcProtocols(path string) *EtcProtocols { return &EtcProtocols{path: path} }

// Catalog of etc_protocols
func (e *EtcProtocols) Catalog() *table.Catalog { return etcProtocolsCatalog }

// Rows parses the file, lines with non-numeric protocol number are skipped
func (e *EtcProtocols) Rows() ([]table.Row, error) {
	var res []table.Row
	err := scanFile(e.path, func(fields []string, comment string) {
		if len(fields) < 2 {
			return
		}
		num, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return
		}
		res = append(res, ProtocolRow{Name: fields[0], Number: num, Alias: strings.Join(fields[2:], " "), Comment: comment})
	})
	return res, err
}

const (
	etcServicesName table.ColumnID = iota
	etcServicesPort
	etcServicesProtocol
	etcServicesAliases
	etcServicesComment
)

var etcServicesCatalog = table.NewCatalog(
	table.Column{Name: "name", Type: table.TypeText},
	table.Column{Name: "port", Type: table.TypeInteger},
	table.Column{Name: "protocol", Type: table.TypeText},
	table.Column{Name: "aliases", Type: table.TypeText},
	table.Column{Name: "comment", Type: table.TypeText},
)

// ServiceRow is a line of services file
type ServiceRow struct {
	Name     string
	Port     int64
	Protocol string
	Aliases  string
	Comment  string
}

// Value implements table.Row
func (r ServiceRow) Value(id table.ColumnID) table.Value {
	switch id {
	case etcServicesName:
		return table.Text(r.Name)
	case etcServicesPort:
		return table.Int(r.Port)
	case etcServicesProtocol:
		return table.Text(r.Protocol)
	case etcServicesAliases:
		return table.Text(r.Aliases)
	case etcServicesComment:
		return table.Text(r.Comment)
	}
	return table.Null()
}

// EtcServices reads services file
type EtcServices struct {
	path string
}

// NewEtcServices makes collector for services file at path
func NewEtcServices(path string) *EtcServices { return &EtcServices{path: path} }

// Catalog of etc_services
func (e *EtcServices) Catalog() *table.Catalog { return etcServicesCatalog }

// Rows parses the file, lines without valid port/protocol pair are skipped
func (e *EtcServices) Rows() ([]table.Row, error) {
	var res []table.Row
	err := scanFile(e.path, func(fields []string, comment string) {
		if len(fields) < 2 {
			return
		}
		portStr, proto, ok := strings.Cut(fields[1], "/")
		if !ok {
			return
		}
		port, err := strconv.ParseInt(portStr, 10, 64)
		if err != nil {
			return
		}
		res = append(res, ServiceRow{Name: fields[0], Port: port, Protocol: proto,
			Aliases: strings.Join(fields[2:], " "), Comment: comment})
	})
	return res, err
}

// scanFile calls fn for every non-empty line of the file with whitespace separated fields
// and the trailing comment, comment-only lines are skipped
func scanFile(path string, fn func(fields []string, comment string)) error {
	fh, err := os.Open(path) //nolint gosec
	if err != nil {
		return fmt.Errorf("can't open %s: %w", path, err)
	}
	defer fh.Close() //nolint
	if err := scanLines(fh, fn); err != nil {
		return fmt.Errorf("can't read %s: %w", path, err)
	}
	return nil
}

func scanLines(r io.Reader, fn func(fields []string, comment string)) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line, comment, _ := strings.Cut(scanner.Text(), "#")
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		fn(fields, strings.TrimSpace(comment))
	}
	return scanner.Err()
}
