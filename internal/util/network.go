// Package util holds small host-network helpers shared by the API layer.
package util

import (
	"bufio"
	"errors"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
)

// RTF_GATEWAY in the kernel route table flags.
const rtfGateway = 0x2

// DetectWANInterface returns the interface carrying the default IPv4 route,
// read from /proc/net/route.
func DetectWANInterface() (string, error) {
	file, err := os.Open("/proc/net/route")
	if err != nil {
		return "", err
	}
	defer file.Close()
	return wanInterfaceFromRoutes(file)
}

// DetectWANIPv4 returns the first IPv4 address bound to the default-route
// interface. Behind NAT this is the router-facing address rather than the
// public one, which is still the useful hint for a single-homed host.
func DetectWANIPv4() (string, error) {
	name, err := DetectWANInterface()
	if err != nil {
		return "", err
	}
	return InterfaceIPv4(name)
}

// InterfaceIPv4 returns the first IPv4 address bound to an interface.
func InterfaceIPv4(name string) (string, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return "", err
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return "", err
	}
	return firstIPv4(addrs)
}

// wanInterfaceFromRoutes scans route table rows for a zero destination with
// the gateway flag set. The flags column is hex, so the bit has to be
// tested numerically.
func wanInterfaceFromRoutes(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	// skip header
	if !scanner.Scan() {
		return "", errors.New("unexpected route table format")
	}
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 11 {
			continue
		}
		flags, err := strconv.ParseUint(fields[3], 16, 32)
		if err != nil {
			continue
		}
		if fields[1] == "00000000" && flags&rtfGateway != 0 {
			return fields[0], nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", errors.New("default route not found")
}

func firstIPv4(addrs []net.Addr) (string, error) {
	for _, addr := range addrs {
		ip, _, err := net.ParseCIDR(addr.String())
		if err != nil {
			continue
		}
		if v4 := ip.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	return "", errors.New("no IPv4 address found")
}
