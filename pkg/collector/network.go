package collector

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-pkgz/stringutils"
	psnet "github.com/shirou/gopsutil/v4/net"

	"github.com/umputun/hostquery/pkg/table"
)

const (
	ifaceAddrInterface table.ColumnID = iota
	ifaceAddrAddress
	ifaceAddrMask
	ifaceAddrType
	ifaceAddrFriendlyName
)

var interfaceAddressCatalog = table.NewCatalog(
	table.Column{Name: "interface", Type: table.TypeText},
	table.Column{Name: "address", Type: table.TypeText},
	table.Column{Name: "mask", Type: table.TypeText},
	table.Column{Name: "interface_type", Type: table.TypeText},
	table.Column{Name: "friendly_name", Type: table.TypeText},
)

// InterfaceAddressRow is a single address assigned to an interface
type InterfaceAddressRow struct {
	Interface     string
	Address       string
	Mask          string
	InterfaceType string
	FriendlyName  string
}

// Value implements table.Row
func (r InterfaceAddressRow) Value(id table.ColumnID) table.Value {
	switch id {
	case ifaceAddrInterface:
		return table.Text(r.Interface)
	case ifaceAddrAddress:
		return table.Text(r.Address)
	case ifaceAddrMask:
		return text(r.Mask)
	case ifaceAddrType:
		return table.Text(r.InterfaceType)
	case ifaceAddrFriendlyName:
		return text(r.FriendlyName)
	}
	return table.Null()
}

// InterfaceAddress collects addresses of all interfaces
type InterfaceAddress struct {
	interfaces func() (psnet.InterfaceStatList, error)
}

// NewInterfaceAddress makes interface_address collector
func NewInterfaceAddress() *InterfaceAddress { return &InterfaceAddress{interfaces: psnet.Interfaces} }

// Catalog of interface_address
func (i *InterfaceAddress) Catalog() *table.Catalog { return interfaceAddressCatalog }

// Rows returns one row per interface address
func (i *InterfaceAddress) Rows() ([]table.Row, error) {
	ifaces, err := i.interfaces()
	if err != nil {
		return nil, fmt.Errorf("can't get interfaces: %w", err)
	}
	var res []table.Row
	for _, iface := range ifaces {
		for _, a := range iface.Addrs {
			addr, mask := splitCIDR(a.Addr)
			res = append(res, InterfaceAddressRow{
				Interface:     iface.Name,
				Address:       addr,
				Mask:          mask,
				InterfaceType: interfaceType(iface),
				FriendlyName:  iface.Name,
			})
		}
	}
	return res, nil
}

// splitCIDR converts "10.0.0.1/24" to address and dotted mask, ipv6 masks are in ip notation too
func splitCIDR(s string) (addr, mask string) {
	ip, ipnet, err := net.ParseCIDR(s)
	if err != nil {
		return s, ""
	}
	return ip.String(), net.IP(ipnet.Mask).String()
}

func interfaceType(iface psnet.InterfaceStat) string {
	switch {
	case stringutils.Contains("loopback", iface.Flags):
		return "loopback"
	case stringutils.Contains("pointtopoint", iface.Flags):
		return "point-to-point"
	case iface.HardwareAddr != "":
		return "ethernet"
	}
	return "virtual"
}

const (
	ifaceDetailsInterface table.ColumnID = iota
	ifaceDetailsMAC
	ifaceDetailsMTU
	ifaceDetailsEnabled
)

var interfaceDetailsCatalog = table.NewCatalog(
	table.Column{Name: "interface", Type: table.TypeText},
	table.Column{Name: "mac", Type: table.TypeText},
	table.Column{Name: "mtu", Type: table.TypeInteger},
	table.Column{Name: "enabled", Type: table.TypeInteger},
)

// InterfaceDetailsRow is a network interface
type InterfaceDetailsRow struct {
	Interface string
	MAC       string
	MTU       int64
	Enabled   bool
}

// Value implements table.Row
func (r InterfaceDetailsRow) Value(id table.ColumnID) table.Value {
	switch id {
	case ifaceDetailsInterface:
		return table.Text(r.Interface)
	case ifaceDetailsMAC:
		return table.Text(r.MAC)
	case ifaceDetailsMTU:
		return table.Int(r.MTU)
	case ifaceDetailsEnabled:
		if r.Enabled {
			return table.Int(1)
		}
		return table.Int(0)
	}
	return table.Null()
}

// InterfaceDetails collects network interfaces
type InterfaceDetails struct {
	interfaces func() (psnet.InterfaceStatList, error)
}

// NewInterfaceDetails makes interface_details collector
func NewInterfaceDetails() *InterfaceDetails { return &InterfaceDetails{interfaces: psnet.Interfaces} }

// Catalog of interface_details
func (i *InterfaceDetails) Catalog() *table.Catalog { return interfaceDetailsCatalog }

// Rows returns one row per interface
func (i *InterfaceDetails) Rows() ([]table.Row, error) {
	ifaces, err := i.interfaces()
	if err != nil {
		return nil, fmt.Errorf("can't get interfaces: %w", err)
	}
	res := make([]table.Row, 0, len(ifaces))
	for _, iface := range ifaces {
		res = append(res, InterfaceDetailsRow{
			Interface: iface.Name,
			MAC:       iface.HardwareAddr,
			MTU:       int64(iface.MTU),
			Enabled:   stringutils.Contains("up", iface.Flags),
		})
	}
	return res, nil
}

const (
	socketsPid table.ColumnID = iota
	socketsFd
	socketsSocket
	socketsFamily
	socketsProtocol
	socketsLocalAddress
	socketsRemoteAddress
	socketsLocalPort
	socketsRemotePort
	socketsState
)

var openSocketsCatalog = table.NewCatalog(
	table.Column{Name: "pid", Type: table.TypeInteger},
	table.Column{Name: "fd", Type: table.TypeInteger},
	table.Column{Name: "socket", Type: table.TypeInteger},
	table.Column{Name: "family", Type: table.TypeInteger},
	table.Column{Name: "protocol", Type: table.TypeInteger},
	table.Column{Name: "local_address", Type: table.TypeText},
	table.Column{Name: "remote_address", Type: table.TypeText},
	table.Column{Name: "local_port", Type: table.TypeInteger},
	table.Column{Name: "remote_port", Type: table.TypeInteger},
	table.Column{Name: "state", Type: table.TypeText},
)

// socket types as reported by the kernel, mapped to ip protocol numbers
const (
	sockStream = 1
	sockDgram  = 2
	protoTCP   = 6
	protoUDP   = 17
)

// OpenSocketRow is a socket opened by a process
type OpenSocketRow struct {
	Pid           int64
	Fd            int64
	Socket        int64 // inode, zero if unknown
	Family        int64
	Protocol      int64
	LocalAddress  string
	RemoteAddress string
	LocalPort     int64
	RemotePort    int64
	State         string
}

// Value implements table.Row
func (r OpenSocketRow) Value(id table.ColumnID) table.Value {
	switch id {
	case socketsPid:
		return table.Int(r.Pid)
	case socketsFd:
		return table.Int(r.Fd)
	case socketsSocket:
		if r.Socket == 0 {
			return table.Null()
		}
		return table.Int(r.Socket)
	case socketsFamily:
		return table.Int(r.Family)
	case socketsProtocol:
		return table.Int(r.Protocol)
	case socketsLocalAddress:
		return text(r.LocalAddress)
	case socketsRemoteAddress:
		return text(r.RemoteAddress)
	case socketsLocalPort:
		return table.Int(r.LocalPort)
	case socketsRemotePort:
		return table.Int(r.RemotePort)
	case socketsState:
		return text(r.State)
	}
	return table.Null()
}

// OpenSockets collects inet sockets of all processes
type OpenSockets struct {
	connections func(kind string) ([]psnet.ConnectionStat, error)
	procRoot    string
}

// NewOpenSockets makes process_open_sockets collector
func NewOpenSockets() *OpenSockets { return &OpenSockets{connections: psnet.Connections, procRoot: "/proc"} }

// Catalog of process_open_sockets
func (o *OpenSockets) Catalog() *table.Catalog { return openSocketsCatalog }

// Rows returns sockets with known owner pid
func (o *OpenSockets) Rows() ([]table.Row, error) {
	conns, err := o.connections("inet")
	if err != nil {
		return nil, fmt.Errorf("can't get connections: %w", err)
	}
	res := make([]table.Row, 0, len(conns))
	for _, c := range conns {
		if c.Pid <= 0 {
			continue
		}
		row := OpenSocketRow{
			Pid:           int64(c.Pid),
			Fd:            int64(c.Fd),
			Socket:        o.socketInode(c.Pid, c.Fd),
			Family:        int64(c.Family),
			LocalAddress:  c.Laddr.IP,
			RemoteAddress: c.Raddr.IP,
			LocalPort:     int64(c.Laddr.Port),
			RemotePort:    int64(c.Raddr.Port),
			State:         c.Status,
		}
		switch c.Type {
		case sockStream:
			row.Protocol = protoTCP
		case sockDgram:
			row.Protocol = protoUDP
		}
		res = append(res, row)
	}
	return res, nil
}

// socketInode resolves "socket:[inode]" link of the descriptor, zero if not available
func (o *OpenSockets) socketInode(pid int32, fd uint32) int64 {
	link, err := os.Readlink(filepath.Join(o.procRoot, strconv.Itoa(int(pid)), "fd", strconv.Itoa(int(fd))))
	if err != nil {
		return 0
	}
	inode, ok := strings.CutPrefix(link, "socket:[")
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSuffix(inode, "]"), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
