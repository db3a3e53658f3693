package main

import (
	"context"
	"log"
	"net/http"

	"github.com/okassov/paygate/internal/api"
	"github.com/okassov/paygate/internal/config"
	"github.com/okassov/paygate/internal/domain"
	"github.com/okassov/paygate/internal/monitor"
	"github.com/okassov/paygate/internal/service"
	"github.com/okassov/paygate/internal/store"
	"github.com/okassov/paygate/internal/telegram"
	"github.com/okassov/paygate/internal/tron"
	"github.com/okassov/paygate/internal/verify"
	"github.com/okassov/paygate/internal/window"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if len(cfg.Payment.Addresses) == 0 {
		log.Fatal("No payment addresses configured; point CONFIG_FILE at a YAML address book")
	}

	ledger, err := store.NewPostgresLedger(cfg.DBSource)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer ledger.Close()

	// Initialize Layers
	oracle := tron.NewClient(cfg.Tron.BaseURL, cfg.Tron.APIKey, cfg.Tron.USDTContract, nil)
	verifier := verify.NewVerifier(oracle, nil)
	bot := telegram.NewBot(cfg.Telegram.BotToken, cfg.Telegram.ChannelID, "", nil)
	coordinator := service.NewCoordinator(
		ledger, verifier, bot,
		cfg.Payment.ExpectedAmountMinor, cfg.Payment.MaxAgeHours, cfg.Telegram.InviteTTL(),
	)

	calc := window.NewCalculator(window.Rule{OpenDay: cfg.Window.OpenDay, CloseDay: cfg.Window.CloseDay})
	handler := api.NewHandler(coordinator, ledger, calc, cfg.Payment.Addresses)
	router := api.NewRouter(handler, []byte(cfg.AdminJWTSecret))

	if cfg.Monitor.Enabled {
		startWatchers(cfg, oracle)
	}

	log.Printf("Server starting on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Fatal(err)
	}
}

// startWatchers logs incoming deposits per configured address so
// operators see transfers as they land, independent of claims.
func startWatchers(cfg *config.Config, oracle *tron.Client) {
	for _, addr := range cfg.Payment.Addresses {
		addr := addr
		w := monitor.NewWatcher(oracle, addr.Address, cfg.Monitor.Interval(), 0, func(tx domain.LedgerTransaction) {
			log.Printf("deposit observed: address=%s tx=%s amount=%s USDT",
				addr.ID, tx.Reference, tron.FormatAmount(tx.AmountMinor, domain.USDTDecimals))
		})
		go w.Run(context.Background())
	}
}
