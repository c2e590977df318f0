package server

import "net"

// localIP discovers the LAN address of this host by opening a UDP socket
// toward a public address and reading the chosen source IP. No packet is
// sent; the kernel just picks the outbound interface. Returns empty when the
// host has no route (offline), in which case only the localhost URL is
// printed at startup.
func localIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return ""
	}
	return addr.IP.String()
}
