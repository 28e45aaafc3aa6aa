// Command dlnad runs a lightweight DLNA/UPnP-AV media server over one
// media directory.
package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anacrolix/log"
	"github.com/jessevdk/go-flags"

	"github.com/anacrolix/microdlna/dlna/dms"
)

type options struct {
	Path           string        `short:"p" long:"path" description:"media directory to serve" required:"true"`
	Port           int           `long:"port" description:"HTTP listening port" default:"2800"`
	NotifyInterval time.Duration `long:"notify-interval" description:"interval between SSDP alive bursts" default:"895s"`
	MaxConnections int           `long:"max-connections" description:"maximum concurrent media transfers" default:"10"`
	FriendlyName   string        `long:"friendly-name" description:"UPnP friendly name advertised to control points"`
	UUID           string        `long:"uuid" description:"override the device UUID instead of deriving it"`
	Interfaces     []string      `long:"interface" description:"network interface to bind SSDP to (repeatable); default is all"`
	LogHeaders     bool          `long:"log-headers" description:"log every request's headers"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	logger := log.Default

	srv, err := dms.New(dms.Config{
		Port:           opts.Port,
		NotifyInterval: opts.NotifyInterval,
		MaxConnections: opts.MaxConnections,
		MediaRoot:      opts.Path,
		FriendlyName:   opts.FriendlyName,
		UUID:           opts.UUID,
		InterfaceNames: opts.Interfaces,
		LogHeaders:     opts.LogHeaders,
	}, logger)
	if err != nil {
		logger.Levelf(log.Critical, "configuring server: %v", err)
		os.Exit(1)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		for sig := range sigs {
			switch sig {
			case syscall.SIGHUP:
				srv.ReloadInterfaces()
			case syscall.SIGTERM, syscall.SIGINT:
				logger.Levelf(log.Info, "shutting down")
				srv.Close()
				return
			}
		}
	}()

	if err := srv.Run(); err != nil {
		logger.Levelf(log.Critical, "server exited: %v", err)
		os.Exit(1)
	}
}
