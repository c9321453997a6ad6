// loco agent: local mock of the booking (TLS) and ticket (secure) services.
package main

import (
	"context"
	"crypto/rsa"
	"crypto/tls"
	"errors"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"dev.c0redev.loco/internal/agent"
	"dev.c0redev.loco/internal/crypto"
	"github.com/spf13/cobra"
)

var (
	bookingAddr string
	ticketAddr  string
	chatAddr    string
	certFile    string
	keyFile     string
	privKeyFile string
)

var rootCmd = &cobra.Command{
	Use:          "loco-agent",
	Short:        "Mock LOCO booking and ticket services",
	SilenceUsage: true,
	RunE:         run,
}

func run(cmd *cobra.Command, args []string) error {
	if bookingAddr == "" && ticketAddr == "" {
		return errors.New("nothing to serve: set --booking and/or --ticket")
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handlers := agent.DefaultHandlers(chatAddr)
	var listeners []net.Listener
	errc := make(chan error, 2)

	if bookingAddr != "" {
		if certFile == "" || keyFile == "" {
			return errors.New("--booking needs --tls-cert and --tls-key")
		}
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return err
		}
		ln, err := tls.Listen("tcp", bookingAddr, &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12})
		if err != nil {
			return err
		}
		listeners = append(listeners, ln)
		log.Println("booking (tls) listening on", ln.Addr())
		go func() { errc <- (&agent.Server{Handlers: handlers}).Serve(ln) }()
	}

	if ticketAddr != "" {
		priv, err := privateKey()
		if err != nil {
			return err
		}
		ln, err := net.Listen("tcp", ticketAddr)
		if err != nil {
			return err
		}
		listeners = append(listeners, ln)
		log.Println("ticket (secure) listening on", ln.Addr())
		go func() { errc <- (&agent.Server{Handlers: handlers, PrivateKey: priv}).Serve(ln) }()
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-errc:
	}
	for _, ln := range listeners {
		ln.Close()
	}
	log.Println("shutdown")
	return err
}

func privateKey() (*rsa.PrivateKey, error) {
	if privKeyFile == "" {
		return nil, errors.New("--ticket needs --private-key (clients must be given the matching public key)")
	}
	data, err := os.ReadFile(privKeyFile)
	if err != nil {
		return nil, err
	}
	return crypto.ParsePrivateKeyPEM(data)
}

func main() {
	f := rootCmd.Flags()
	f.StringVar(&bookingAddr, "booking", "", "TLS listen address for GETCONF")
	f.StringVar(&ticketAddr, "ticket", "", "TCP listen address for CHECKIN (secure)")
	f.StringVar(&chatAddr, "chat-addr", "127.0.0.1:5223", "host:port advertised in replies")
	f.StringVar(&certFile, "tls-cert", "", "certificate PEM for --booking")
	f.StringVar(&keyFile, "tls-key", "", "key PEM for --booking")
	f.StringVar(&privKeyFile, "private-key", "", "RSA private key PEM for --ticket")
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatal(err)
	}
}
