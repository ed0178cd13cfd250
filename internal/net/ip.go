package net

import (
	"log"
	"net"
)

// GetOutgoingIP returns the LAN address peers should use to reach this host.
func GetOutgoingIP() string {
	// UDP dial sends nothing; it only selects the outgoing interface.
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err == nil {
		defer conn.Close()
		if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
			return addr.IP.String()
		}
	}
	return firstIPv4()
}

// firstIPv4 is for networks without a default route.
func firstIPv4() string {
	ifaces, _ := net.Interfaces()
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, _ := iface.Addrs()
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil {
				return ipnet.IP.To4().String()
			}
		}
	}
	log.Println("[NET] No LAN address found, share link will use loopback")
	return "127.0.0.1"
}
