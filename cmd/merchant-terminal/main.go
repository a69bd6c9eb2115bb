// Command merchant-terminal runs the merchant side of a CloudPay POS lane.
// Cart items are entered on stdin, by barcode lookup against the merchant's
// inventory or as free-form name/price lines.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/protegacloudpay/cloudpay/internal/channel"
	"github.com/protegacloudpay/cloudpay/internal/client"
	"github.com/protegacloudpay/cloudpay/internal/config"
	"github.com/protegacloudpay/cloudpay/internal/domain"
	"github.com/protegacloudpay/cloudpay/internal/terminal"
)

func main() {
	cfg, err := config.LoadTerminal()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := client.New(cfg.APIBaseURL)
	if err := api.Login(ctx, cfg.Email, cfg.Password); err != nil {
		log.Fatalf("Failed to log in to %s: %v", cfg.APIBaseURL, err)
	}
	log.Printf("Logged in to %s as %s", cfg.APIBaseURL, cfg.Email)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	ch := channel.NewRedisChannel(redisClient, cfg.PollInterval)

	m := terminal.NewMerchant(ch, api, terminal.Config{
		Group:       cfg.Group,
		ResetDelay:  cfg.ResetDelay,
		WaitTimeout: cfg.WaitTimeout,
	})
	m.SetOnChange(func(old, next terminal.MerchantState) {
		log.Printf("merchant: %s -> %s", old, next)
		if next == terminal.MerchantCancelled {
			log.Printf("merchant: %s", m.FailReason())
		}
		if next == terminal.MerchantComplete {
			if txn := m.LastTransaction(); txn != nil {
				log.Printf("merchant: transaction %s total %.2f", txn.ID, txn.Total)
			}
		}
	})
	go m.Run(ctx)

	log.Printf("Merchant terminal ready on lane %q", cfg.Group)
	fmt.Println("commands: scan <barcode> | add <name> <price> | cart | start | cancel | stats | quit")

	in := bufio.NewScanner(os.Stdin)
	for in.Scan() {
		fields := strings.Fields(in.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "scan":
			if len(fields) != 2 {
				fmt.Println("usage: scan <barcode>")
				continue
			}
			item, err := api.InventoryByBarcode(ctx, fields[1])
			if err != nil {
				fmt.Printf("lookup failed: %v\n", err)
				continue
			}
			if err := m.AddItem(domain.DraftItem{Name: item.Name, Price: item.Price, Barcode: item.Barcode}); err != nil {
				fmt.Printf("cannot add item: %v\n", err)
				continue
			}
			fmt.Printf("added %s %.2f\n", item.Name, item.Price)

		case "add":
			if len(fields) < 3 {
				fmt.Println("usage: add <name> <price>")
				continue
			}
			price, err := strconv.ParseFloat(fields[len(fields)-1], 64)
			if err != nil || price <= 0 {
				fmt.Println("price must be a positive number")
				continue
			}
			name := strings.Join(fields[1:len(fields)-1], " ")
			if err := m.AddItem(domain.DraftItem{Name: name, Price: price}); err != nil {
				fmt.Printf("cannot add item: %v\n", err)
				continue
			}
			fmt.Printf("added %s %.2f\n", name, price)

		case "cart":
			items := m.Cart()
			if len(items) == 0 {
				fmt.Println("cart is empty")
				continue
			}
			var sum float64
			for i, it := range items {
				fmt.Printf("%d. %s %.2f\n", i+1, it.Name, it.Price)
				sum += it.Price
			}
			_, total := domain.Totals(sum)
			fmt.Printf("subtotal %.2f, total with tax %.2f\n", sum, total)

		case "start":
			if err := m.StartTransaction(ctx); err != nil {
				fmt.Printf("cannot start: %v\n", err)
				continue
			}
			fmt.Println("waiting for customer terminal...")

		case "cancel":
			if err := m.Cancel(ctx); err != nil {
				fmt.Printf("cannot cancel: %v\n", err)
			}

		case "stats":
			stats, err := api.MerchantStats(ctx)
			if err != nil {
				fmt.Printf("stats failed: %v\n", err)
				continue
			}
			fmt.Printf("transactions %d, revenue %.2f, fees %.2f, approval %.1f%%\n",
				stats.TotalTransactions, stats.Revenue, stats.Fees, stats.ApprovalRate)

		case "status":
			fmt.Printf("state: %s\n", m.State())

		case "quit", "exit":
			return

		default:
			fmt.Println("commands: scan <barcode> | add <name> <price> | cart | start | cancel | stats | quit")
		}
	}
}
