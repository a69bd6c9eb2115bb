// Command customer-terminal runs the customer side of a CloudPay POS lane
// with a simulated fingerprint scanner. It waits for the merchant terminal to
// publish a draft, then walks the customer through verification, optional
// registration, payment-method selection and confirmation.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/protegacloudpay/cloudpay/internal/channel"
	"github.com/protegacloudpay/cloudpay/internal/client"
	"github.com/protegacloudpay/cloudpay/internal/config"
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

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	ch := channel.NewRedisChannel(redisClient, cfg.PollInterval)
	scanner := terminal.SimulatedScanner{Delay: 800 * time.Millisecond}

	c := terminal.NewCustomer(ch, scanner, api, api, api, terminal.Config{
		Group:       cfg.Group,
		ResetDelay:  cfg.ResetDelay,
		WaitTimeout: cfg.WaitTimeout,
	})
	c.SetOnChange(func(old, next terminal.CustomerState) {
		log.Printf("customer: %s -> %s", old, next)
		switch next {
		case terminal.CustomerFingerprint:
			if draft := c.Draft(); draft != nil {
				log.Printf("customer: amount due %.2f, place finger on scanner (scan)", draft.Amount)
			}
		case terminal.CustomerRegister:
			log.Printf("customer: fingerprint not recognized, register with: register <name> <email>")
		case terminal.CustomerPaymentMethod:
			for _, m := range c.Methods() {
				marker := " "
				if m.ID == c.Selected() {
					marker = "*"
				}
				log.Printf("customer: %s [%d] %s ending %s", marker, m.ID, m.Name, m.Last4)
			}
			log.Printf("customer: select <id> then confirm")
		}
	})
	go c.Run(ctx)

	log.Printf("Customer terminal ready on lane %q", cfg.Group)
	fmt.Println("commands: scan | register <name> <email> | select <id> | confirm | cancel | status | quit")

	in := bufio.NewScanner(os.Stdin)
	for in.Scan() {
		fields := strings.Fields(in.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "scan":
			if err := c.ScanFingerprint(ctx); err != nil {
				fmt.Printf("scan failed: %v\n", err)
			}

		case "register":
			if len(fields) < 3 {
				fmt.Println("usage: register <name> <email>")
				continue
			}
			email := fields[len(fields)-1]
			name := strings.Join(fields[1:len(fields)-1], " ")
			if err := c.Register(ctx, name, email, ""); err != nil {
				fmt.Printf("registration failed: %v\n", err)
			}

		case "select":
			if len(fields) != 2 {
				fmt.Println("usage: select <id>")
				continue
			}
			id, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				fmt.Println("id must be a number")
				continue
			}
			if err := c.SelectMethod(id); err != nil {
				fmt.Printf("cannot select: %v\n", err)
			}

		case "confirm":
			if err := c.ConfirmPayment(ctx); err != nil {
				fmt.Printf("cannot confirm: %v\n", err)
			}

		case "cancel":
			if err := c.Cancel(ctx); err != nil {
				fmt.Printf("cannot cancel: %v\n", err)
			}

		case "status":
			fmt.Printf("state: %s\n", c.State())

		case "quit", "exit":
			return

		default:
			fmt.Println("commands: scan | register <name> <email> | select <id> | confirm | cancel | status | quit")
		}
	}
}
