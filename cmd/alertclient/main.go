package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"backoffice/config"
	"backoffice/internal/models"
	"backoffice/internal/notifier"
	"backoffice/internal/util"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadClient()

	if err := util.InitLogger(cfg.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()
	logger := util.GetLogger()

	prefs, err := notifier.LoadPreferences(cfg.PrefsPath)
	if err != nil {
		log.Fatalf("Failed to load preferences: %v", err)
	}

	audio := notifier.NewAudioManager(&bellPlayer{out: os.Stdout}, prefs, clock.New(), cfg.AudioTimeout)
	presenter := &consolePresenter{}
	api := &pendingOrders{baseURL: cfg.APIURL, client: &http.Client{Timeout: 10 * time.Second}}

	dispatcher := notifier.NewDispatcher(notifier.NewWebsocketDialer(cfg.ServerURL), audio, presenter, notifier.Options{
		AckTimeout: cfg.AckTimeout,
		Desktop:    presenter,
		Reconcile: func(ctx context.Context, id models.RegisterPayload) error {
			orders, err := api.list(ctx, id.TenantID)
			if err != nil {
				return err
			}
			presenter.ShowToast("info", fmt.Sprintf("%d order(s) still pending after reconnect", len(orders)))
			for _, o := range orders {
				fmt.Printf("  pending #%d  %s  %s\n", o.OrderNumber, o.CustomerName, o.TotalAmount.StringFixed(2))
			}
			return nil
		},
	})

	if cfg.UserID != "" && cfg.TenantID != "" {
		if err := dispatcher.SetIdentity(models.RegisterPayload{UserID: cfg.UserID, Role: cfg.Role, TenantID: cfg.TenantID}); err != nil {
			log.Fatalf("Invalid identity: %v", err)
		}
	} else {
		logger.Warn("ALERT_USER_ID or ALERT_TENANT_ID not set, connecting without registering")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Dispatcher stopped", zap.Error(err))
		}
	}()

	if !audio.Enabled() {
		presenter.ShowAudioBanner(notifier.ErrAudioBlocked)
	}
	fmt.Println("commands: a=approve r=reject d=dismiss u=enable audio l=list q=quit")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			dispatcher.Close()
			return
		case line, ok := <-lines:
			if !ok {
				dispatcher.Close()
				return
			}
			if quit := runCommand(ctx, dispatcher, line); quit {
				dispatcher.Close()
				return
			}
		}
	}
}

func runCommand(ctx context.Context, d *notifier.Dispatcher, cmd string) bool {
	var err error
	switch cmd {
	case "a":
		err = d.Approve(ctx)
	case "r":
		err = d.Reject(ctx)
	case "d":
		d.Dismiss()
	case "u":
		err = d.UnlockAudio(ctx)
	case "l":
		for i, e := range d.Notifications() {
			b := e.Base()
			fmt.Printf("%3d  %s  %s  %s\n", i+1, b.Timestamp.Format(time.Kitchen), b.EventType, b.EventID)
		}
		fmt.Printf("state: %s\n", d.State())
	case "q":
		return true
	case "":
	default:
		fmt.Println("unknown command")
	}

	if err != nil {
		fmt.Printf("error: %v\n", err)
	}
	return false
}

// bellPlayer rings the terminal bell; looping sounds repeat every two seconds
type bellPlayer struct {
	out  *os.File
	mu   sync.Mutex
	stop chan struct{}
}

func (p *bellPlayer) Play(_ context.Context, sound string, loop bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	if _, err := fmt.Fprint(p.out, "\a"); err != nil {
		return err
	}
	if !loop {
		return nil
	}

	stop := make(chan struct{})
	p.stop = stop
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				fmt.Fprint(p.out, "\a")
			}
		}
	}()
	return nil
}

func (p *bellPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *bellPlayer) stopLocked() {
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
}

type consolePresenter struct{}

func (consolePresenter) ShowOrder(o *models.WebOrderReceivedEvent) {
	fmt.Printf("\n=== NEW WEB ORDER #%d ===\n", o.OrderNumber)
	fmt.Printf("customer: %s %s\n", o.CustomerName, o.CustomerPhone)
	if o.TableNo != "" {
		fmt.Printf("table:    %s\n", o.TableNo)
	}
	for _, item := range o.Items {
		fmt.Printf("  %dx %-24s %s\n", item.Quantity, item.MenuItem, item.UnitPrice.StringFixed(2))
	}
	fmt.Printf("total:    %s\n", o.TotalAmount.StringFixed(2))
	fmt.Println("[a]pprove  [r]eject  [d]ismiss")
}

func (consolePresenter) CloseOrder(orderID int64) {
	fmt.Printf("order %d closed\n", orderID)
}

func (consolePresenter) ShowToast(level, message string) {
	fmt.Printf("[%s] %s\n", level, message)
}

func (consolePresenter) ShowAudioBanner(err error) {
	fmt.Printf("!! sound is off (%v). Type 'u' to enable alerts.\n", err)
}

func (consolePresenter) HideAudioBanner() {
	fmt.Println("sound enabled")
}

func (consolePresenter) Notify(title, body string) error {
	fmt.Printf("* %s: %s\n", title, body)
	return nil
}

type pendingOrders struct {
	baseURL string
	client  *http.Client
}

func (p *pendingOrders) list(ctx context.Context, tenantID string) ([]models.Order, error) {
	endpoint := fmt.Sprintf("%s/tenants/%s/orders/pending", strings.TrimRight(p.baseURL, "/"), url.PathEscape(tenantID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending orders: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch pending orders: status %d", resp.StatusCode)
	}

	var body struct {
		Orders []models.Order `json:"orders"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode pending orders: %w", err)
	}
	return body.Orders, nil
}
