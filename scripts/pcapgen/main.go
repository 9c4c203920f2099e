// pcapgen writes a synthetic capture for exercising ns-ask and the
// gateway without real traffic: a small pool of hosts exchanging TCP and
// UDP conversations, optionally mixed with a SYN flood and probes against
// blacklisted ports so the triage heuristics have something to flag.
package main

import (
	"flag"
	"log"
	"math/rand"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

var (
	hosts = []net.IP{
		{192, 168, 1, 10},
		{192, 168, 1, 20},
		{192, 168, 1, 30},
		{10, 0, 0, 5},
		{10, 0, 0, 8},
		{8, 8, 8, 8},
	}
	services    = []layers.TCPPort{80, 443, 22, 8080, 3306}
	probedPorts = []layers.TCPPort{31337, 6667, 65535}
	attackerIP  = net.IP{203, 0, 113, 66}
	floodTarget = net.IP{192, 168, 1, 10}
	srcMAC      = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	dstMAC      = net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA}
)

func main() {
	outputFile := flag.String("o", "demo.pcap", "Output pcap file path")
	normalCount := flag.Int("c", 500, "Number of normal conversation packets")
	floodCount := flag.Int("flood", 50, "Number of SYN flood packets from a single source")
	scanCount := flag.Int("scan", 10, "Number of probes against blacklisted ports")
	seed := flag.Int64("seed", 0, "Random seed, 0 uses the clock")
	flag.Parse()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	f, err := os.Create(*outputFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		log.Fatalf("Failed to write pcap header: %v", err)
	}

	ts := time.Now().Add(-time.Hour)
	total := 0

	for i := 0; i < *normalCount; i++ {
		ts = ts.Add(time.Duration(rng.Intn(200)) * time.Millisecond)
		if rng.Intn(4) == 0 {
			writePacket(w, ts, udpPacket(rng))
		} else {
			writePacket(w, ts, tcpConversation(rng))
		}
		total++
	}

	for i := 0; i < *floodCount; i++ {
		ts = ts.Add(time.Duration(rng.Intn(5)) * time.Millisecond)
		writePacket(w, ts, synFlood(rng))
		total++
	}

	for i := 0; i < *scanCount; i++ {
		ts = ts.Add(time.Duration(rng.Intn(500)) * time.Millisecond)
		writePacket(w, ts, portProbe(rng))
		total++
	}

	log.Printf("Wrote %d packets to %s (seed %d)", total, *outputFile, *seed)
}

// tcpConversation is one segment of an established exchange between two
// pool hosts: ACK or PSH|ACK with a payload.
func tcpConversation(rng *rand.Rand) []gopacket.SerializableLayer {
	src, dst := pickPair(rng)
	ip := &layers.IPv4{
		SrcIP:    src,
		DstIP:    dst,
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(rng.Intn(64511) + 1024),
		DstPort: services[rng.Intn(len(services))],
		Seq:     rng.Uint32(),
		Ack:     rng.Uint32(),
		ACK:     true,
		PSH:     rng.Intn(2) == 0,
		Window:  14600,
	}
	tcp.SetNetworkLayerForChecksum(ip)
	payload := make([]byte, rng.Intn(1200)+64)
	rng.Read(payload)
	return []gopacket.SerializableLayer{ethernet(), ip, tcp, gopacket.Payload(payload)}
}

func udpPacket(rng *rand.Rand) []gopacket.SerializableLayer {
	src, dst := pickPair(rng)
	ip := &layers.IPv4{
		SrcIP:    src,
		DstIP:    dst,
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(rng.Intn(64511) + 1024),
		DstPort: 53,
	}
	udp.SetNetworkLayerForChecksum(ip)
	payload := make([]byte, rng.Intn(200)+32)
	rng.Read(payload)
	return []gopacket.SerializableLayer{ethernet(), ip, udp, gopacket.Payload(payload)}
}

// synFlood is a bare SYN from the fixed attacker to the flood target,
// cycling source ports the way a flood tool does.
func synFlood(rng *rand.Rand) []gopacket.SerializableLayer {
	ip := &layers.IPv4{
		SrcIP:    attackerIP,
		DstIP:    floodTarget,
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(rng.Intn(64511) + 1024),
		DstPort: 80,
		Seq:     rng.Uint32(),
		SYN:     true,
		Window:  1024,
	}
	tcp.SetNetworkLayerForChecksum(ip)
	return []gopacket.SerializableLayer{ethernet(), ip, tcp}
}

func portProbe(rng *rand.Rand) []gopacket.SerializableLayer {
	ip := &layers.IPv4{
		SrcIP:    attackerIP,
		DstIP:    hosts[rng.Intn(len(hosts))],
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(rng.Intn(64511) + 1024),
		DstPort: probedPorts[rng.Intn(len(probedPorts))],
		Seq:     rng.Uint32(),
		SYN:     true,
		Window:  1024,
	}
	tcp.SetNetworkLayerForChecksum(ip)
	return []gopacket.SerializableLayer{ethernet(), ip, tcp}
}

func ethernet() *layers.Ethernet {
	return &layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
}

func pickPair(rng *rand.Rand) (net.IP, net.IP) {
	src := hosts[rng.Intn(len(hosts))]
	dst := hosts[rng.Intn(len(hosts))]
	for dst.Equal(src) {
		dst = hosts[rng.Intn(len(hosts))]
	}
	return src, dst
}

func writePacket(w *pcapgo.Writer, ts time.Time, pktLayers []gopacket.SerializableLayer) {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		ComputeChecksums: true,
		FixLengths:       true,
	}
	if err := gopacket.SerializeLayers(buf, opts, pktLayers...); err != nil {
		log.Fatalf("Failed to serialize layers: %v", err)
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(buf.Bytes()),
		Length:        len(buf.Bytes()),
	}
	if err := w.WritePacket(ci, buf.Bytes()); err != nil {
		log.Fatalf("Failed to write packet: %v", err)
	}
}
