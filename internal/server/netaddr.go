package server

import (
	"fmt"
	"net"
)

// InterfaceAddr is a non-loopback IPv4 address and the interface carrying it.
type InterfaceAddr struct {
	Address   string `json:"address"`
	Interface string `json:"interface"`
}

const loopbackAddress = "127.0.0.1"

// LocalAddresses lists the IPv4 addresses other LAN devices can reach,
// in interface order.
func LocalAddresses() ([]InterfaceAddr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	var out []InterfaceAddr
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		out = append(out, ipv4Addrs(iface.Name, addrs)...)
	}
	return out, nil
}

func ipv4Addrs(name string, addrs []net.Addr) []InterfaceAddr {
	var out []InterfaceAddr
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		ip4 := ip.To4()
		if ip4 == nil || ip4.IsLoopback() {
			continue
		}
		out = append(out, InterfaceAddr{Address: ip4.String(), Interface: name})
	}
	return out
}

// PrimaryAddress returns the first LAN IPv4 address, or loopback when the
// host has none.
func PrimaryAddress() string {
	addrs, err := LocalAddresses()
	if err != nil || len(addrs) == 0 {
		return loopbackAddress
	}
	return addrs[0].Address
}
