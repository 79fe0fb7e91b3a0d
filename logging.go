package authguard

import (
	"net/netip"

	"go.uber.org/zap"
)

// maskIP truncates an address to its /24 (IPv4) or /48 (IPv6) network so logs
// and audit events never carry a full client address.
func maskIP(ip string) string {
	if ip == "" {
		return ""
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "invalid"
	}
	addr = addr.Unmap().WithZone("")

	bits := 48
	if addr.Is4() {
		bits = 24
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.String()
}

func ipField(ip string) zap.Field {
	return zap.String("ip", maskIP(ip))
}

func (e *Engine) logger() *zap.Logger {
	if e == nil || e.log == nil {
		return zap.NewNop()
	}
	return e.log
}
