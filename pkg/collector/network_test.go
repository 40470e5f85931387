package collector

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	psnet "github.com/shirou/gopsutil/v4/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/hostquery/pkg/table"
)

var testInterfaces = psnet.InterfaceStatList{
	{Name: "lo", MTU: 65536, Flags: []string{"up", "loopback", "running"},
		Addrs: []psnet.InterfaceAddr{{Addr: "127.0.0.1/8"}, {Addr: "::1/128"}}},
	{Name: "eth0", MTU: 1500, HardwareAddr: "52:54:00:12:34:56", Flags: []string{"up", "broadcast", "multicast"},
		Addrs: []psnet.InterfaceAddr{{Addr: "10.0.2.15/24"}}},
	{Name: "wg0", MTU: 1420, Flags: []string{"pointtopoint"}},
}

func TestInterfaceAddress(t *testing.T) {
	c := &InterfaceAddress{interfaces: func() (psnet.InterfaceStatList, error) { return testInterfaces, nil }}
	rows, err := c.Rows()
	require.NoError(t, err)
	assert.Equal(t, []table.Row{
		InterfaceAddressRow{Interface: "lo", Address: "127.0.0.1", Mask: "255.0.0.0", InterfaceType: "loopback", FriendlyName: "lo"},
		InterfaceAddressRow{Interface: "lo", Address: "::1", Mask: "ffff:ffff:ffff:ffff:ffff:ffff:ffff:ffff",
			InterfaceType: "loopback", FriendlyName: "lo"},
		InterfaceAddressRow{Interface: "eth0", Address: "10.0.2.15", Mask: "255.255.255.0", InterfaceType: "ethernet",
			FriendlyName: "eth0"},
	}, rows)

	c = &InterfaceAddress{interfaces: func() (psnet.InterfaceStatList, error) { return nil, errors.New("failed") }}
	_, err = c.Rows()
	require.Error(t, err)
}

func TestSplitCIDR(t *testing.T) {
	addr, mask := splitCIDR("192.168.1.10/16")
	assert.Equal(t, "192.168.1.10", addr)
	assert.Equal(t, "255.255.0.0", mask)

	addr, mask = splitCIDR("fe80::1")
	assert.Equal(t, "fe80::1", addr)
	assert.Empty(t, mask)
}

func TestInterfaceDetails(t *testing.T) {
	c := &InterfaceDetails{interfaces: func() (psnet.InterfaceStatList, error) { return testInterfaces, nil }}
	rows, err := c.Rows()
	require.NoError(t, err)
	vals := table.ProjectAll(interfaceDetailsCatalog, rows)
	assert.Equal(t, [][]table.Value{
		{table.Text("lo"), table.Text(""), table.Int(65536), table.Int(1)},
		{table.Text("eth0"), table.Text("52:54:00:12:34:56"), table.Int(1500), table.Int(1)},
		{table.Text("wg0"), table.Text(""), table.Int(1420), table.Int(0)},
	}, vals)
}

func TestOpenSockets(t *testing.T) {
	procRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(procRoot, "100", "fd"), 0o750))
	require.NoError(t, os.Symlink("socket:[4242]", filepath.Join(procRoot, "100", "fd", "3")))
	require.NoError(t, os.Symlink("/dev/null", filepath.Join(procRoot, "100", "fd", "4")))

	conns := []psnet.ConnectionStat{
		{Fd: 3, Family: 2, Type: 1, Laddr: psnet.Addr{IP: "0.0.0.0", Port: 22}, Status: "LISTEN", Pid: 100},
		{Fd: 4, Family: 10, Type: 2, Laddr: psnet.Addr{IP: "::", Port: 53}, Raddr: psnet.Addr{IP: "::1", Port: 5353},
			Status: "NONE", Pid: 100},
		{Fd: 5, Family: 2, Type: 1, Laddr: psnet.Addr{IP: "10.0.0.1", Port: 40000}, Status: "TIME_WAIT"},
	}
	var kind string
	c := &OpenSockets{procRoot: procRoot, connections: func(k string) ([]psnet.ConnectionStat, error) {
		kind = k
		return conns, nil
	}}
	rows, err := c.Rows()
	require.NoError(t, err)
	assert.Equal(t, "inet", kind)
	assert.Equal(t, []table.Row{
		OpenSocketRow{Pid: 100, Fd: 3, Socket: 4242, Family: 2, Protocol: 6, LocalAddress: "0.0.0.0", LocalPort: 22,
			State: "LISTEN"},
		OpenSocketRow{Pid: 100, Fd: 4, Family: 10, Protocol: 17, LocalAddress: "::", RemoteAddress: "::1",
			LocalPort: 53, RemotePort: 5353, State: "NONE"},
	}, rows, "sockets without pid skipped")

	vals := table.Project(openSocketsCatalog, rows, []string{"socket", "remote_address"})
	assert.Equal(t, [][]table.Value{{table.Int(4242), table.Null()}, {table.Null(), table.Text("::1")}}, vals)
}
