// Command flash-invite-ops runs fleet maintenance against the same database
// and bot tokens the server uses. Bulk actions that touch many bots prompt
// for confirmation before running.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/visorry/flash-invite-sub001/internal/config"
	"github.com/visorry/flash-invite-sub001/internal/confirm"
	"github.com/visorry/flash-invite-sub001/internal/db"
	"github.com/visorry/flash-invite-sub001/internal/settings"
	"github.com/visorry/flash-invite-sub001/internal/telegram"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to config.yaml")
	yes := flag.Bool("yes", false, "answer every confirmation prompt with yes")
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		fmt.Fprintln(os.Stderr, "usage: flash-invite-ops [flags] <health-check|restart-unhealthy|resync>")
		os.Exit(2)
	}

	dsn, errLoad := config.LoadDatabaseDSN(config.ResolveConfigPath(*configPath))
	if errLoad != nil {
		log.WithError(errLoad).Error("load config failed")
		os.Exit(1)
	}
	conn, errOpen := db.Open(dsn)
	if errOpen != nil {
		log.WithError(errOpen).Error("open database failed")
		os.Exit(1)
	}

	ctx := context.Background()
	if errRefresh := settings.RefreshDBConfigSnapshot(ctx, conn); errRefresh != nil {
		log.WithError(errRefresh).Warn("settings snapshot refresh failed, using defaults")
	}

	broker := confirm.NewBroker()
	defer broker.Close()
	go answerPrompts(broker, *yes)

	manager := telegram.NewManager(nil)
	switch command {
	case "health-check":
		if errSweep := manager.CheckFleet(ctx, conn); errSweep != nil {
			log.WithError(errSweep).Error("health check failed")
			os.Exit(1)
		}
		printStats(ctx, conn)
	case "restart-unhealthy":
		ok, errAsk := broker.Request(ctx, confirm.Options{
			Title:   "Restart unhealthy bots",
			Message: "every bot currently marked unhealthy reconnects and its restart counter advances",
			Danger:  true,
		})
		if errAsk != nil || !ok {
			fmt.Println("aborted")
			return
		}
		restarted, failed, errRestart := manager.RestartUnhealthy(ctx, conn)
		if errRestart != nil {
			log.WithError(errRestart).Error("restart failed")
			os.Exit(1)
		}
		fmt.Printf("restarted %d bot(s), %d failed\n", restarted, len(failed))
	case "resync":
		ok, errAsk := broker.Request(ctx, confirm.Options{
			Title:   "Resync all entities",
			Message: "titles, usernames and member counts are re-fetched for every linked entity",
		})
		if errAsk != nil || !ok {
			fmt.Println("aborted")
			return
		}
		if errResync := manager.ResyncAll(ctx, conn); errResync != nil {
			log.WithError(errResync).Error("resync failed")
			os.Exit(1)
		}
		fmt.Println("resync complete")
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", command)
		os.Exit(2)
	}
}

// answerPrompts services the broker from the terminal. With -yes it approves
// everything without asking.
func answerPrompts(broker *confirm.Broker, autoYes bool) {
	reader := bufio.NewReader(os.Stdin)
	for {
		prompt := broker.Pending()
		if prompt == nil {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		if autoYes {
			broker.Resolve(true)
			continue
		}
		marker := ""
		if prompt.Options.Danger {
			marker = " [irreversible]"
		}
		fmt.Printf("%s%s\n  %s\nProceed? [y/N]: ", prompt.Options.Title, marker, prompt.Options.Message)
		line, errRead := reader.ReadString('\n')
		if errRead != nil {
			broker.Resolve(false)
			continue
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		broker.Resolve(answer == "y" || answer == "yes")
	}
}

func printStats(ctx context.Context, conn *gorm.DB) {
	stats, errStats := telegram.Stats(ctx, conn)
	if errStats != nil {
		log.WithError(errStats).Warn("fleet stats unavailable")
		return
	}
	fmt.Printf("total=%d active=%d healthy=%d unhealthy=%d unknown=%d\n",
		stats.Total, stats.Active, stats.Healthy, stats.Unhealthy, stats.Unknown)
}
