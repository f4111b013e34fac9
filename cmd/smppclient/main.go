// Command smppclient is a demonstration ESME: it connects and binds using
// a JSON config file, forwards delivered messages to the log, and submits
// a message from the command line, splitting it into UDH-concatenated
// parts when it is too long for one submit_sm.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oarkflow/smpp-esme/internal/config"
	"github.com/oarkflow/smpp-esme/internal/errorrecovery"
	"github.com/oarkflow/smpp-esme/internal/logger"
	"github.com/oarkflow/smpp-esme/internal/metrics"
	"github.com/oarkflow/smpp-esme/internal/ratelimit"
	"github.com/oarkflow/smpp-esme/internal/seqstore"
	"github.com/oarkflow/smpp-esme/pkg/smpp"
	"github.com/oarkflow/smpp-esme/pkg/smpptext"
)

func main() {
	configPath := flag.String("config", "configs/client.json", "path to client config file")
	writeConfig := flag.Bool("write-config", false, "write a default config file to -config and exit")
	source := flag.String("source", "", "source address for -message")
	dest := flag.String("dest", "", "destination address for -message")
	message := flag.String("message", "", "text to submit after binding; empty means just listen")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultFile(*configPath); err != nil {
			log.Fatalf("write config: %v", err)
		}
		log.Printf("wrote default config to %s", *configPath)
		return
	}

	fileCfg, err := config.NewManager(*configPath).Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLogger := logger.NewDefaultLogger(fileCfg.Logging.Level)

	cfg := fileCfg.ToClientConfig()
	cfg.Logger = appLogger

	if fileCfg.Metrics.Enabled {
		collector := metrics.NewPrometheusMetricsCollector(fileCfg.Metrics.Port)
		defer collector.Stop()
		cfg.MetricsCollector = collector
	}

	if fileCfg.SequenceFile != "" {
		store, err := seqstore.NewFileStore(fileCfg.SequenceFile)
		if err != nil {
			appLogger.Fatal("open sequence store", "error", err)
		}
		gen, err := smpp.NewPersistentSequenceGenerator(store)
		if err != nil {
			appLogger.Fatal("load sequence store", "error", err)
		}
		gen.Logger = appLogger
		cfg.SequenceGenerator = gen
	}

	client := smpp.NewClient(cfg)
	appLogger = logger.ForSession(appLogger, client.ID)

	client.Callbacks.On(smpp.CommandSubmitSMResp, func(p *smpp.PDU) (uint32, bool) {
		resp, ok := p.Body.(*smpp.SubmitSMResp)
		if !ok {
			return 0, false
		}
		if p.Header.CommandStatus != smpp.StatusOK {
			appLogger.Error("submit rejected",
				"status", smpp.StatusName(p.Header.CommandStatus),
				"sequence", p.Header.SequenceNumber)
			return 0, false
		}
		appLogger.Info("submit accepted",
			"message_id", resp.MessageID.Value,
			"sequence", p.Header.SequenceNumber)
		return 0, false
	})

	client.Callbacks.On(smpp.CommandDeliverSM, func(p *smpp.PDU) (uint32, bool) {
		dsm, ok := p.Body.(*smpp.DeliverSM)
		if !ok {
			return 0, false
		}
		text, err := smpptext.DecodeShortMessage(dsm.ShortMessageBytes, dsm.DataCoding)
		if err != nil {
			appLogger.Warn("undecodable deliver_sm payload",
				"data_coding", dsm.DataCoding, "error", err)
			text = string(dsm.ShortMessageBytes)
		}
		appLogger.Info("deliver_sm",
			"from", dsm.Source.Addr.Value,
			"to", dsm.Dest.Addr.Value,
			"esm_class", dsm.ESMClass,
			"text", text)
		return 0, false
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appLogger.Info("connecting", "host", fileCfg.Host, "port", fileCfg.Port,
		"system_id", fileCfg.SystemID, "bind_type", fileCfg.BindType)

	result := errorrecovery.Retry(ctx, errorrecovery.DefaultConfig(), func() error {
		if err := client.Connect(ctx); err != nil {
			return err
		}
		if err := bind(ctx, client, fileCfg.BindType); err != nil {
			_ = client.Disconnect(ctx)
			return err
		}
		return nil
	})
	if result.Error != nil {
		appLogger.Fatal("bind failed", "attempts", result.Attempts, "error", result.Error)
	}
	appLogger.Info("bound", "state", client.State().String(),
		"version", client.NegotiatedVersion(), "attempts", result.Attempts)

	// The read loop consumes everything inbound: deliver_sm, the responses
	// to our own submits, enquire_link. Sends stay on this goroutine.
	listenDone := make(chan error, 1)
	go func() { listenDone <- client.Listen(ctx) }()

	if fileCfg.EnquireLinkInterval.Duration > 0 {
		go func() { _ = client.Keepalive(ctx, fileCfg.EnquireLinkInterval.Duration) }()
	}

	if *message != "" {
		if err := submit(ctx, client, fileCfg, appLogger, *source, *dest, *message); err != nil {
			appLogger.Error("submit failed", "error", err)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		appLogger.Info("shutting down")
	case err := <-listenDone:
		if err != nil {
			appLogger.Error("listen loop ended", "error", err)
		}
		return
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if _, err := client.Unbind(shutdownCtx); err != nil {
		appLogger.Warn("unbind failed, disconnecting anyway", "error", err)
		_ = client.Disconnect(shutdownCtx)
		return
	}
	// the read loop exits once the unbind_resp arrives
	select {
	case <-listenDone:
	case <-shutdownCtx.Done():
		_ = client.Disconnect(shutdownCtx)
	}
}

func bind(ctx context.Context, client *smpp.Client, bindType string) error {
	switch bindType {
	case "transmitter":
		return client.BindTransmitter(ctx)
	case "receiver":
		return client.BindReceiver(ctx)
	default:
		return client.BindTransceiver(ctx)
	}
}

// submit splits text per its data coding and submits each part, pacing on
// the configured TPS cap.
func submit(ctx context.Context, client *smpp.Client, fileCfg *config.ClientFileConfig, appLogger smpp.Logger, source, dest, text string) error {
	esmClass, dataCoding, parts, err := smpptext.Split(text, smpp.DataCodingDefault)
	if err != nil {
		return err
	}

	var bucket *ratelimit.TokenBucket
	if fileCfg.SubmitTPS > 0 {
		bucket = ratelimit.PerSecond(fileCfg.SubmitTPS)
	}

	for i, part := range parts {
		if bucket != nil {
			if err := bucket.Wait(ctx); err != nil {
				return err
			}
		}
		req := &smpp.SubmitSM{ShortMessage: smpp.ShortMessage{
			Source:            smpp.Address{TON: fileCfg.AddrTON, NPI: fileCfg.AddrNPI, Addr: smpp.NewCString(source)},
			Dest:              smpp.Address{TON: fileCfg.AddrTON, NPI: fileCfg.AddrNPI, Addr: smpp.NewCString(dest)},
			ESMClass:          esmClass,
			DataCoding:        dataCoding,
			ShortMessageBytes: part,
		}}
		seq, err := client.SubmitSM(ctx, req)
		if err != nil {
			return err
		}
		appLogger.Info("submitted", "part", i+1, "parts", len(parts),
			"sequence", seq, "data_coding", dataCoding)
	}
	return nil
}
