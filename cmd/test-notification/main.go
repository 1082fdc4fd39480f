package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/access-portal/internal/application/port"
	"github.com/garyjia/access-portal/internal/config"
	"github.com/garyjia/access-portal/internal/infrastructure/external/lark"
	"github.com/garyjia/access-portal/internal/infrastructure/external/mail"
	"github.com/garyjia/access-portal/internal/infrastructure/external/solapi"
)

// Sends one test message through every enabled notification channel
// using the same adapters the portal uses.

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	email := flag.String("email", "", "recipient for the test email")
	phone := flag.String("phone", "", "recipient for the test SMS")
	flag.Parse()

	fmt.Println("=== Access Portal Notification Test ===")
	fmt.Println()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stamp := time.Now().In(cfg.Location()).Format("2006-01-02 15:04:05")
	failed := 0

	fmt.Println("[Step 1] Email")
	switch e := cfg.Notify.Email; {
	case !e.Enabled:
		fmt.Println("- skipped: notify.email.enabled is false")
	case *email == "":
		fmt.Println("- skipped: pass -email to send a test message")
	default:
		mailer := mail.NewSMTPMailer(mail.Config{
			Host:     e.Host,
			Port:     e.Port,
			Username: e.Username,
			Password: e.Password,
			From:     e.From,
			FromName: e.FromName,
		}, logger)
		if err := mailer.SendMail(ctx, port.Mail{
			To:      *email,
			Subject: "[보령LNG터미널] 알림 테스트",
			Body:    "알림 테스트 메일입니다.\n발송 시각: " + stamp,
		}); err != nil {
			fmt.Printf("✗ %v\n", err)
			failed++
		} else {
			fmt.Printf("✓ sent to %s via %s:%d\n", *email, e.Host, e.Port)
		}
	}

	fmt.Println("\n[Step 2] SMS")
	switch s := cfg.Notify.SMS; {
	case !s.Enabled:
		fmt.Println("- skipped: notify.sms.enabled is false")
	case *phone == "":
		fmt.Println("- skipped: pass -phone to send a test message")
	default:
		client := solapi.NewClient(solapi.Config{
			APIKey:    s.APIKey,
			APISecret: s.APISecret,
			From:      s.From,
			Subject:   s.Subject,
			BaseURL:   s.BaseURL,
			Timeout:   s.Timeout,
		}, logger)
		if err := client.SendSMS(ctx, *phone, "[보령LNG터미널] 알림 테스트 "+stamp); err != nil {
			fmt.Printf("✗ %v\n", err)
			failed++
		} else {
			fmt.Printf("✓ sent to %s\n", solapi.NormalizePhone(*phone))
		}
	}

	fmt.Println("\n[Step 3] Lark staff alert")
	if l := cfg.Notify.Lark; !l.Enabled {
		fmt.Println("- skipped: notify.lark.enabled is false")
	} else {
		sdk := lark.NewSDKClient(lark.Config{
			AppID:     l.AppID,
			AppSecret: l.AppSecret,
			ChatID:    l.ChatID,
			BaseURL:   l.BaseURL,
		}, logger)
		if err := lark.NewMessenger(sdk, logger).SendAlert(ctx, "출입 신청 알림 테스트 "+stamp); err != nil {
			fmt.Printf("✗ %v\n", err)
			failed++
		} else {
			fmt.Printf("✓ posted to chat %s\n", l.ChatID)
		}
	}

	fmt.Println()
	if failed > 0 {
		log.Fatalf("%d channel(s) failed", failed)
	}
	fmt.Println("=== Done ===")
}
