package neighbor

import (
	"fmt"
	"net"
	"strings"
)

// ouiVendors is a small, compact table of well-known IEEE OUI prefixes. No
// example repo carries an OUI/vendor database dependency, so this is a
// deliberately minimal hand-rolled table rather than a full IEEE registry
// mirror — good enough for common home/office gear, not exhaustive.
var ouiVendors = map[string]string{
	"00:1A:11": "Google",
	"F4:F5:D8": "Google",
	"DC:A6:32": "Raspberry Pi Foundation",
	"B8:27:EB": "Raspberry Pi Foundation",
	"00:50:56": "VMware",
	"00:0C:29": "VMware",
	"08:00:27": "Oracle VirtualBox",
	"00:1B:63": "Apple",
	"3C:22:FB": "Apple",
	"F0:18:98": "Apple",
	"A4:83:E7": "Apple",
	"00:E0:4C": "Realtek",
	"00:16:3E": "Xensource",
	"52:54:00": "QEMU/KVM",
	"00:15:5D": "Microsoft Hyper-V",
	"00:1C:42": "Parallels",
	"00:25:90": "Super Micro Computer",
	"D0:50:99": "Ubiquiti Networks",
	"24:A4:3C": "Ubiquiti Networks",
	"FC:EC:DA": "Ubiquiti Networks",
	"00:18:0A": "Netgear",
	"A0:40:A0": "Netgear",
	"B0:B9:8A": "TP-Link",
	"50:C7:BF": "TP-Link",
	"00:1D:D8": "Microsoft",
	"7C:D1:C3": "Amazon Technologies",
	"FC:A1:83": "Amazon Technologies",
}

// VendorForMAC returns the known vendor name for mac's OUI (first three
// octets), or "" when the prefix isn't in the table.
func VendorForMAC(mac net.HardwareAddr) string {
	if len(mac) < 3 {
		return ""
	}
	key := strings.ToUpper(fmt.Sprintf("%02X:%02X:%02X", mac[0], mac[1], mac[2]))
	return ouiVendors[key]
}
