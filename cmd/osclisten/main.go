package main

import (
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/grandcat/zeroconf"
	goosc "github.com/hypebeast/go-osc/osc"
	"github.com/spf13/pflag"

	"keycast.pinglu.dev/internal/config"
	"keycast.pinglu.dev/internal/listener"
	"keycast.pinglu.dev/internal/osc"
	"keycast.pinglu.dev/internal/targets"
)

var (
	host       string
	port       int
	announce   string
	dispatcher bool

	beacon *zeroconf.Server
)

func main() {
	pflag.StringVar(&host, "host", "0.0.0.0", "address to listen on")
	pflag.IntVar(&port, "port", config.DEFAULT_PORT, "UDP port to listen on")
	pflag.StringVar(&announce, "announce", "", "advertise this instance name as "+targets.DEFAULT_MDNS_SERVICE+" over mDNS")
	pflag.BoolVar(&dispatcher, "dispatcher", false, "decode with go-osc instead of the built-in decoder")
	pflag.Parse()

	if announce != "" {
		var err error
		beacon, err = zeroconf.Register(announce, targets.DEFAULT_MDNS_SERVICE, targets.MDNS_DOMAIN, port, []string{"txtvers=1"}, nil)
		if err != nil {
			log.Fatalf("Error registering mDNS service: %v", err)
		}
		defer stopBeacon()
		log.Printf("mDNS service registered: %s.%s%s on port %d", announce, targets.DEFAULT_MDNS_SERVICE, targets.MDNS_DOMAIN, port)
	}

	if dispatcher {
		serveDispatcher()
		return
	}

	server, err := listener.Serve(host, port, func(msg *osc.Message, from *net.UDPAddr) {
		fmt.Printf("%s %s\n", from, msg)
	})
	if err != nil {
		log.Fatalf("Error starting listener: %v", err)
	}
	defer server.Close()
	log.Println("Listening for OSC messages on", server.Addr())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("Listener stopped")
}

// serveDispatcher runs go-osc's own server. It has no shutdown hook, so the
// process exits straight from the signal handler.
func serveDispatcher() {
	d := goosc.NewStandardDispatcher()
	err := d.AddMsgHandler("*", func(msg *goosc.Message) {
		fmt.Printf("%s %v\n", msg.Address, msg.Arguments)
	})
	if err != nil {
		log.Fatalf("Error adding handler: %v", err)
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	server := &goosc.Server{
		Addr:       addr,
		Dispatcher: d,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("Listener stopped")
		stopBeacon()
		os.Exit(0)
	}()

	log.Printf("Listening for OSC messages on %s (go-osc)", addr)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Error starting go-osc server: %v", err)
	}
}

func stopBeacon() {
	if beacon != nil {
		beacon.Shutdown()
		beacon = nil
	}
}
