package pcap

import (
	"fmt"

	"NetSage/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Parse decodes one raw Ethernet frame into a record. IPv4 packets
// carrying TCP, UDP or ICMP are supported; anything else is rejected and
// the caller decides whether to skip or fail.
func Parse(data []byte, ci gopacket.CaptureInfo) (*model.Record, error) {
	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)

	record := &model.Record{
		Timestamp: ci.Timestamp,
		Length:    ci.Length,
	}
	if record.Length == 0 {
		record.Length = len(data)
	}
	for _, layer := range packet.Layers() {
		record.Layers = append(record.Layers, layer.LayerType().String())
	}

	ipLayer := packet.Layer(layers.LayerTypeIPv4)
	if ipLayer == nil {
		return nil, fmt.Errorf("not an IPv4 packet")
	}
	ip := ipLayer.(*layers.IPv4)
	record.SrcIP = ip.SrcIP
	record.DstIP = ip.DstIP

	switch {
	case packet.Layer(layers.LayerTypeTCP) != nil:
		tcp := packet.Layer(layers.LayerTypeTCP).(*layers.TCP)
		record.Protocol = "TCP"
		record.SrcPort = uint16(tcp.SrcPort)
		record.DstPort = uint16(tcp.DstPort)
		record.Flags = tcpFlags(tcp)
	case packet.Layer(layers.LayerTypeUDP) != nil:
		udp := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		record.Protocol = "UDP"
		record.SrcPort = uint16(udp.SrcPort)
		record.DstPort = uint16(udp.DstPort)
	case packet.Layer(layers.LayerTypeICMPv4) != nil:
		record.Protocol = "ICMP"
	default:
		return nil, fmt.Errorf("unsupported transport protocol %d", ip.Protocol)
	}

	return record, nil
}

func tcpFlags(tcp *layers.TCP) model.TCPFlags {
	var f model.TCPFlags
	if tcp.FIN {
		f |= model.FlagFIN
	}
	if tcp.SYN {
		f |= model.FlagSYN
	}
	if tcp.RST {
		f |= model.FlagRST
	}
	if tcp.PSH {
		f |= model.FlagPSH
	}
	if tcp.ACK {
		f |= model.FlagACK
	}
	if tcp.URG {
		f |= model.FlagURG
	}
	return f
}
