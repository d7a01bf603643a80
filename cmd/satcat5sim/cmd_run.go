package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/satcat5-go/satcat5/pkg/hwport"
	satnet "github.com/satcat5-go/satcat5/pkg/net"
	"github.com/satcat5-go/satcat5/pkg/sched"
	"github.com/satcat5-go/satcat5/pkg/telemetry"
	"github.com/satcat5-go/satcat5/pkg/tpipe"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the stack against a Linux TAP device",
	Long: `Run brings up the full stack against a TAP device: Ethernet, IPv4,
ARP, UDP, and ICMP dispatch, optionally with a Tpipe session to a peer.

The TAP device must already be permitted for this process (CAP_NET_ADMIN,
or a pre-created device owned by the invoking user).`,
	RunE: runRun,
}

func init() {
	flags := runCmd.Flags()
	flags.String("tap", "tap0", "TAP device name")
	flags.Int("mtu", 1500, "interface MTU")
	flags.String("self-mac", "02:00:00:00:00:01", "this interface's MAC address")
	flags.String("self-ip", "10.0.0.1", "this interface's IPv4 address")
	flags.String("mask", "255.255.255.0", "local subnet mask")
	flags.String("gateway", "", "default gateway IPv4 (empty disables the default route)")
	flags.Uint16("tpipe-port", 0, "UDP port for an optional Tpipe session (0 disables it)")
	flags.String("peer-ip", "", "Tpipe peer IPv4 address, required when --tpipe-port is set")
	flags.String("session", "satcat5sim", "Tpipe session identifier")
	flags.String("telemetry", "", "path to a JSON-L telemetry sink (empty disables telemetry)")
	flags.Duration("tick", 5*time.Millisecond, "poll loop interval")

	for _, name := range []string{"tap", "mtu", "self-mac", "self-ip", "mask", "gateway", "tpipe-port", "peer-ip", "session", "telemetry", "tick"} {
		_ = viper.BindPFlag("run."+name, flags.Lookup(name))
	}

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	selfMAC, err := parseMAC(viper.GetString("run.self-mac"))
	if err != nil {
		return err
	}
	selfIP, err := parseIPv4(viper.GetString("run.self-ip"))
	if err != nil {
		return err
	}
	mask, err := parseIPv4(viper.GetString("run.mask"))
	if err != nil {
		return err
	}

	var emitter *telemetry.Emitter
	if path := viper.GetString("run.telemetry"); path != "" {
		sink, err := telemetry.NewJSONLSink(path)
		if err != nil {
			return fmt.Errorf("telemetry sink: %w", err)
		}
		defer sink.Close()
		emitter = telemetry.NewEmitter(telemetry.EmitterConfig{}, sink)
	}

	tapName := viper.GetString("run.tap")
	mtu := viper.GetInt("run.mtu")

	port, err := hwport.Open(tapName, mtu)
	if err != nil {
		return fmt.Errorf("open tap %s: %w", tapName, err)
	}
	defer port.Close()
	port.SetEmitter(emitter, tapName)

	s := sched.New(false)
	clock := newWallClock()
	tk := sched.NewTimekeeper(s, clock)
	s.RegisterAlways(port.Poll)

	eth := satnet.NewEthernetDispatch(port.Rx(), port, selfMAC, false)
	eth.SetEmitter(emitter, tapName)

	ipv4 := satnet.NewIPv4Dispatch(eth, selfIP)
	ipv4.SetEmitter(emitter, tapName)

	def := satnet.Route{Gateway: satnet.ADDRNone}
	if gw := viper.GetString("run.gateway"); gw != "" {
		gwIP, err := parseIPv4(gw)
		if err != nil {
			return err
		}
		def = satnet.Route{Gateway: gwIP}
	}
	routes := satnet.NewRouteTable(16, def)
	routes.SetEmitter(emitter, tapName)
	if err := routes.AddStatic(satnet.Route{Subnet: selfIP, Mask: mask, Gateway: satnet.ADDRBroadcast}); err != nil {
		return fmt.Errorf("add local route: %w", err)
	}

	arp := satnet.NewResolver(s, eth, routes, selfMAC, selfIP)
	arp.SetEmitter(emitter, tapName)

	icmp := satnet.NewICMPHandler(ipv4, routes)
	icmp.SetEmitter(emitter, tapName)

	udp := satnet.NewUDPDispatch(ipv4, 0)
	udp.SetEmitter(emitter, tapName)

	var session *tpipe.Tpipe
	if tpipePort := uint16(viper.GetUint("run.tpipe-port")); tpipePort != 0 {
		peerIP, err := parseIPv4(viper.GetString("run.peer-ip"))
		if err != nil {
			return fmt.Errorf("--peer-ip: %w", err)
		}
		addr := satnet.NewAddress(ipv4, routes, arp, satnet.IPProtoUDP)
		addr.Connect(peerIP)
		transport := tpipe.NewUDPTransport(udp, addr, tpipePort, tpipePort)
		session = tpipe.New(s, transport, viper.GetString("run.session"))
		session.SetEmitter(emitter, tapName)
		session.Connect()
	}

	fmt.Printf("satcat5sim: %s up on %s, mac=%s ip=%s\n", tapName, tapName, selfMAC, selfIP)

	tick := viper.GetDuration("run.tick")
	for {
		tk.RequestPoll()
		s.Service()
		if session != nil && session.EOS() {
			return nil
		}
		time.Sleep(tick)
	}
}
