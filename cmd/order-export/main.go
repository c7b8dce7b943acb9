// Command order-export dumps all orders as gzip-compressed NDJSON for
// reporting and offline analysis.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/milsabores/ventas/internal/domain/order"
	"github.com/milsabores/ventas/internal/storage/postgres"
)

const pageSize = 500

func main() {
	var (
		databaseURL string
		outPath     string
		status      string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&outPath, "out", "orders.ndjson.gz", "output file path")
	flag.StringVar(&status, "status", "", "export only orders in this status (e.g. APPROVED)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	start := time.Now()
	n, err := run(ctx, databaseURL, outPath, status)
	if err != nil {
		slog.Error("order export failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("order export completed",
		slog.Int("orders", n),
		slog.String("out", outPath),
		slog.Duration("elapsed", time.Since(start)))
}

func run(ctx context.Context, databaseURL, outPath, status string) (int, error) {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return 0, errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	repo := postgres.NewOrderRepository(pool)

	f, err := os.Create(outPath)
	if err != nil {
		return 0, errors.Wrap(err, "create output file")
	}
	defer f.Close()

	// Reader and writer run in parallel: pgzip compresses on all cores while
	// the producer pages through the table.
	rows := make(chan order.Order, pageSize)
	g, ctx := errgroup.WithContext(ctx)

	var exported int
	g.Go(func() error {
		defer close(rows)
		return fetchOrders(ctx, repo, status, rows)
	})
	g.Go(func() error {
		gz := pgzip.NewWriter(f)
		bw := bufio.NewWriter(gz)
		enc := json.NewEncoder(bw)

		for o := range rows {
			if err := enc.Encode(exportRecord(o)); err != nil {
				return errors.Wrap(err, "encode order")
			}
			exported++
		}

		if err := bw.Flush(); err != nil {
			return errors.Wrap(err, "flush output")
		}
		return errors.Wrap(gz.Close(), "close gzip stream")
	})

	if err := g.Wait(); err != nil {
		return 0, err
	}
	return exported, f.Sync()
}

func fetchOrders(ctx context.Context, repo *postgres.OrderRepository, status string, out chan<- order.Order) error {
	if status != "" {
		st := order.Status(status)
		if !st.Valid() {
			return errors.Errorf("unknown status %q", status)
		}
		orders, err := repo.FindByStatus(ctx, st)
		if err != nil {
			return errors.Wrap(err, "fetch orders by status")
		}
		for _, o := range orders {
			select {
			case out <- o:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}

	for offset := 0; ; offset += pageSize {
		page, err := repo.List(ctx, order.ListParams{Limit: pageSize, Offset: offset})
		if err != nil {
			return errors.Wrapf(err, "fetch orders at offset %d", offset)
		}
		for _, o := range page {
			select {
			case out <- o:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if len(page) < pageSize {
			return nil
		}
	}
}

// record is the flat NDJSON line shape: one order per line, amounts as
// strings so downstream tools keep exact decimals.
type record struct {
	ID              int64        `json:"id"`
	BuyOrder        string       `json:"buy_order"`
	Status          order.Status `json:"status"`
	Amount          string       `json:"amount"`
	DiscountAmount  string       `json:"discount_amount"`
	FinalAmount     string       `json:"final_amount"`
	PaymentMethod   order.Method `json:"payment_method"`
	CustomerEmail   string       `json:"customer_email"`
	ItemCount       int          `json:"item_count"`
	CreatedAt       time.Time    `json:"created_at"`
	TransactionDate *time.Time   `json:"transaction_date,omitempty"`
}

func exportRecord(o order.Order) record {
	return record{
		ID:              o.ID,
		BuyOrder:        o.BuyOrder,
		Status:          o.Status,
		Amount:          o.Amount.String(),
		DiscountAmount:  o.DiscountAmount.String(),
		FinalAmount:     o.FinalAmount.String(),
		PaymentMethod:   o.PaymentMethod,
		CustomerEmail:   o.Customer.Email,
		ItemCount:       len(o.Items),
		CreatedAt:       o.CreatedAt,
		TransactionDate: o.TransactionDate,
	}
}
