// loco client: GETCONF over TLS (booking), CHECKIN over a secure session (ticket).
package main

import (
	"context"
	"crypto/rsa"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"dev.c0redev.loco/internal/client"
	"dev.c0redev.loco/internal/config"
	"dev.c0redev.loco/internal/crypto"
	"dev.c0redev.loco/internal/proto"
	"dev.c0redev.loco/internal/store"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	insecure bool
	noCache  bool
	cfg      *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "loco",
	Short:         "LOCO protocol client",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.DefaultPath()
		}
		var err error
		cfg, err = config.Load(path)
		return err
	},
}

var getconfCmd = &cobra.Command{
	Use:   "getconf",
	Short: "Fetch connection parameters from the booking service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := exchangeContext(cmd.Context())
		defer cancel()
		svc := client.BookingService
		svc.Addr, svc.ServerName = cfg.BookingAddr, cfg.BookingHost
		opts := &client.Options{}
		if insecure {
			opts.TLSConfig = &tls.Config{InsecureSkipVerify: true, MinVersion: tls.VersionTLS12}
		}
		c, err := client.Dial(ctx, svc, opts)
		if err != nil {
			return err
		}
		defer c.Close()
		res, err := client.GetConf(ctx, c, &client.BookingRequest{
			Model:  cfg.Device.Model,
			OS:     cfg.Device.OS,
			MCCMNC: cfg.Device.MCCMNC,
		})
		if err != nil {
			return err
		}
		log.Println("getconf: packet", res.Header.PacketID, "status", res.Header.StatusCode)
		return printJSON(res.Body)
	},
}

var checkinCmd = &cobra.Command{
	Use:   "checkin",
	Short: "Resolve the chat server through the ticket service (cached for cacheExpire)",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openCache()
		if err != nil {
			return err
		}
		defer db.Close()
		if !noCache {
			if e, err := db.Get(client.TicketService.Name, client.MethodCheckin); err != nil {
				return err
			} else if e != nil {
				var body client.CheckinResponse
				if err := proto.UnmarshalBody(e.Body, &body); err == nil {
					log.Println("checkin: cached until", e.ExpiresAt.Format(time.RFC3339))
					return printJSON(&body)
				}
			}
		}

		pub, err := publicKey()
		if err != nil {
			return err
		}
		ctx, cancel := exchangeContext(cmd.Context())
		defer cancel()
		svc := client.TicketService
		svc.Addr = cfg.TicketAddr
		c, err := client.Dial(ctx, svc, &client.Options{PublicKey: pub})
		if err != nil {
			return err
		}
		defer c.Close()
		p, err := c.Exchange(ctx, client.MethodCheckin, &client.CheckinRequest{
			UserID:     cfg.Device.UserID,
			OS:         cfg.Device.OS,
			NetType:    cfg.Device.NetType,
			AppVersion: cfg.Device.AppVersion,
			Lang:       cfg.Device.Lang,
			MCCMNC:     cfg.Device.MCCMNC,
		})
		if err != nil {
			return err
		}
		body, err := proto.DecodeBody[client.CheckinResponse](p)
		if err != nil {
			return err
		}
		log.Println("checkin: packet", p.Header.PacketID, "status", body.Status)
		ttl := time.Duration(body.CacheExpire) * time.Second
		if err := db.Put(svc.Name, client.MethodCheckin, p.Header.StatusCode, p.Body, ttl); err != nil {
			log.Println("cache put:", err)
		}
		return printJSON(body)
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the reply cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached replies",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openCache()
		if err != nil {
			return err
		}
		defer db.Close()
		entries, err := db.List()
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s\t%s\tstatus=%d\t%d bytes\texpires %s\n", e.Service, e.Method, e.Status, len(e.Body), e.ExpiresAt.Format(time.RFC3339))
		}
		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired replies",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openCache()
		if err != nil {
			return err
		}
		defer db.Close()
		n, err := db.Prune()
		if err != nil {
			return err
		}
		log.Println("pruned", n)
		return nil
	},
}

func exchangeContext(parent context.Context) (context.Context, context.CancelFunc) {
	if cfg.Timeout > 0 {
		return context.WithTimeout(parent, cfg.Timeout)
	}
	return context.WithCancel(parent)
}

func openCache() (*store.DB, error) {
	if cfg.CachePath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.CachePath), 0o700); err != nil {
			return nil, err
		}
	}
	return store.Open(cfg.CachePath)
}

func publicKey() (*rsa.PublicKey, error) {
	if cfg.PublicKeyFile == "" {
		return crypto.DefaultPublicKey()
	}
	data, err := os.ReadFile(cfg.PublicKeyFile)
	if err != nil {
		return nil, err
	}
	return crypto.ParsePublicKeyPEM(data)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.loco/config.yaml)")
	getconfCmd.Flags().BoolVar(&insecure, "insecure", false, "skip TLS verification (local agent)")
	checkinCmd.Flags().BoolVar(&noCache, "no-cache", false, "ignore cached CHECKIN reply")
	cacheCmd.AddCommand(cacheListCmd, cachePruneCmd)
	rootCmd.AddCommand(getconfCmd, checkinCmd, cacheCmd)
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
