package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"pccmo/internal"
	"pccmo/internal/config"
	"pccmo/internal/connectors"
	"pccmo/internal/dedup"
	"pccmo/internal/line"
	"pccmo/internal/listener"
	"pccmo/internal/pipeline"
	"pccmo/internal/server"
	"pccmo/internal/sheets"
	"pccmo/internal/storage"
	"pccmo/internal/util"
)

type app struct {
	cfg    config.Config
	db     *storage.DB
	sync   *sheets.SyncService
	ingest *pipeline.IngestService
	proc   *pipeline.ProcessingService
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	db, err := storage.Open(cfg.DBPath, storage.WithLocation(cfg.Location()))
	if err != nil {
		return nil, err
	}
	syncSvc := sheets.NewFromConfig(ctx, cfg, db)

	var syncer pipeline.SheetSyncer
	if syncSvc.Configured() {
		syncer = syncSvc
	}
	ingest := pipeline.NewIngestService(db, dedup.NewGuard(db), syncer, cfg)

	return &app{
		cfg:    cfg,
		db:     db,
		sync:   syncSvc,
		ingest: ingest,
		proc:   pipeline.NewProcessingService(db, ingest),
	}, nil
}

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	if cmd == "parse" {
		runParse(os.Args[2:])
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg)
	must(err)
	defer a.db.Close()

	switch cmd {
	case "serve":
		must(a.serve(ctx))
	case "sync:sheets":
		n, err := a.sync.SyncUnsynced(ctx)
		must(err)
		fmt.Printf("synced %d orders to sheets\n", n)
	case "sheets:init":
		must(a.sync.EnsureHeader(ctx))
		fmt.Println("header row ready")
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", "", "output xlsx path")
		date := fs.String("date", "", "order date YYYY-MM-DD")
		month := fs.String("month", "", "order month YYYY-MM")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--out is required"))
		}
		n, err := a.export(ctx, *out, *date, *month)
		must(err)
		fmt.Printf("exported %d orders to %s\n", n, *out)
	case "migrate:quantities":
		total, updated, err := a.proc.BackfillProductQuantities(ctx)
		must(err)
		fmt.Printf("quantity backfill examined=%d updated=%d\n", total, updated)
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.MailListenerProvider, "gmail|imap")
		label := fs.String("label", cfg.MailListenerLabel, "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(os.Args[2:])
		mailbox, err := connectors.NewMailbox(*provider, cfg)
		must(err)
		fetch := connectors.NewFetchService(a.db, cfg.RawMailDir, mailbox)
		result, err := fetch.FetchAndStore(ctx, *label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d known=%d\n", *provider, result.Fetched, result.Stored, result.Known)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.MailListenerProvider, "gmail|imap")
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", 20, "batch size")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*messageID) != "" {
			res, err := a.proc.ProcessByProviderMessageID(ctx, *provider, *messageID)
			must(err)
			fmt.Printf("processed email id=%d status=%s saved=%d\n", res.EmailID, res.Status, res.Saved)
			return
		}
		emails, saved, err := a.proc.ProcessPendingEmails(ctx, *batch, *provider)
		must(err)
		fmt.Printf("processed pending emails=%d saved=%d\n", emails, saved)
	case "mail:listen":
		s := listener.NewService(a.db, cfg, a.proc)
		must(s.Run(ctx))
	default:
		usage()
		os.Exit(1)
	}
}

func (a *app) serve(ctx context.Context) error {
	var replier server.Replier
	if a.cfg.LineChannelAccessToken != "" {
		replier = line.NewClient(a.cfg)
	}
	srv := server.New(a.cfg, a.db, a.ingest, a.proc, a.sync, replier)

	if a.cfg.SheetsSyncIntervalSec > 0 {
		go a.sync.Run(ctx, time.Duration(a.cfg.SheetsSyncIntervalSec)*time.Second)
	}

	httpServer := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func (a *app) export(ctx context.Context, out, date, month string) (int, error) {
	filter := internal.OrderFilter{}
	var (
		summary []internal.SummaryRow
		err     error
	)
	switch {
	case date != "":
		filter.StartDate, filter.EndDate = date, date
		summary, err = a.db.DailySummary(ctx, date)
	case month != "":
		filter.StartDate, filter.EndDate = month+"-01", month+"-31"
		summary, err = a.db.SummaryByMonth(ctx, month, "factory")
	}
	if err != nil {
		return 0, err
	}

	total, err := a.db.CountOrders(ctx, filter)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, fmt.Errorf("no orders to export")
	}
	orders, err := a.db.ListOrders(ctx, filter, total, 0)
	if err != nil {
		return 0, err
	}
	if dir := filepath.Dir(out); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, err
		}
	}
	return len(orders), pipeline.ExportOrdersToXLSX(orders, summary, out)
}

type parsedItem struct {
	OrderDate       *string `json:"orderDate"`
	FactoryID       *int    `json:"factoryId"`
	ProductCode     *string `json:"productCode"`
	ProductDetail   *string `json:"productDetail"`
	ProductQuantity string  `json:"productQuantity,omitempty"`
	ProductUnit     *string `json:"productUnit"`
	CementQuantity  string  `json:"cementQuantity,omitempty"`
	Supervisor      *string `json:"supervisor"`
}

func runParse(args []string) {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	text := fs.String("text", "", "raw order text")
	eml := fs.String("eml", "", "path to an .eml file")
	pdf := fs.String("pdf", "", "path to a PDF file")
	_ = fs.Parse(args)

	var (
		items []internal.OrderItem
		err   error
	)
	switch {
	case *text != "":
		items, err = pipeline.ParseInput("text", *text)
	case *eml != "":
		items, err = pipeline.ParseInput("eml", *eml)
	case *pdf != "":
		items, err = pipeline.ParseInput("pdf", *pdf)
	default:
		err = fmt.Errorf("one of --text, --eml or --pdf is required")
	}
	must(err)

	out := make([]parsedItem, 0, len(items))
	for _, it := range items {
		out = append(out, parsedItem{
			OrderDate:       it.OrderDate,
			FactoryID:       it.FactoryID,
			ProductCode:     it.ProductCode,
			ProductDetail:   it.ProductDetail,
			ProductQuantity: util.FormatDecimal(it.ProductQuantity),
			ProductUnit:     it.ProductUnit,
			CementQuantity:  util.FormatDecimal(it.CementQuantity),
			Supervisor:      it.Supervisor,
		})
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	must(enc.Encode(out))
}

func usage() {
	fmt.Println("usage: pccmo <command>")
	fmt.Println("commands:")
	fmt.Println("  serve")
	fmt.Println("  parse --text=... | --eml=path | --pdf=path")
	fmt.Println("  sync:sheets")
	fmt.Println("  sheets:init")
	fmt.Println("  export:xlsx --out=./out/orders.xlsx [--date=YYYY-MM-DD | --month=YYYY-MM]")
	fmt.Println("  migrate:quantities")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  mail:process --provider=gmail|imap [--messageId=...] [--batch=20]")
	fmt.Println("  mail:listen")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
