// workers/notifier.go
package workers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"bounty-publish-system/utils"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Notifier pushes fire-and-forget alerts to the operator's Telegram channel.
// Missing credentials disable it with a warning; send failures are logged and
// swallowed — notification delivery never affects a request's outcome.
type Notifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	printer  *message.Printer
}

func NewNotifier() *Notifier {
	n := &Notifier{
		botToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		chatID:   os.Getenv("TELEGRAM_CHAT_ID"),
		baseURL:  "https://api.telegram.org",
		client:   utils.HTTPClient,
		printer:  message.NewPrinter(language.English),
	}
	if n.botToken == "" || n.chatID == "" {
		log.Println("⚠️  Telegram credentials not configured — notifications disabled")
	}
	return n
}

func (n *Notifier) enabled() bool {
	return n.botToken != "" && n.chatID != ""
}

func (n *Notifier) send(text string) error {
	if !n.enabled() {
		return nil
	}

	body, err := json.Marshal(map[string]string{
		"chat_id":    n.chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	resp, err := n.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram API returned %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}

// NotifyNewSubmission announces a new submission on a bounty.
func (n *Notifier) NotifyNewSubmission(bountyTitle, bountyID, hunterAddress, prize string) {
	msg := fmt.Sprintf(
		"🎯 <b>NEW SUBMISSION</b>\n\n<b>Bounty:</b> %s\n<b>Prize:</b> %s USDC\n<b>Hunter:</b> <code>%s</code>\n<b>ID:</b> %s",
		escapeHTML(bountyTitle), n.formatAmount(prize), hunterAddress, bountyID,
	)
	if err := n.send(msg); err != nil {
		log.Printf("[NOTIFY] submission notification failed: %v", err)
	}
}

// NotifyPayout announces a completed payout.
func (n *Notifier) NotifyPayout(bountyTitle, winnerAddress, prize, txHash string) {
	msg := fmt.Sprintf(
		"💰 <b>BOUNTY PAID</b>\n\n<b>Bounty:</b> %s\n<b>Amount:</b> %s USDC\n<b>Winner:</b> <code>%s</code>\n<b>TX:</b> <code>%s</code>",
		escapeHTML(bountyTitle), n.formatAmount(prize), winnerAddress, txHash,
	)
	if err := n.send(msg); err != nil {
		log.Printf("[NOTIFY] payout notification failed: %v", err)
	}
}

// NotifyRefundPending reminds the operator that cancelled bounties await a
// manual refund. Refunds are an administrative action, never automatic.
func (n *Notifier) NotifyRefundPending(count int, bountyIDs []string) {
	msg := fmt.Sprintf(
		"↩️ <b>REFUNDS PENDING</b>\n\n%d cancelled %s awaiting manual refund:\n<code>%s</code>",
		count, pluralBounty(count), strings.Join(bountyIDs, "\n"),
	)
	if err := n.send(msg); err != nil {
		log.Printf("[NOTIFY] refund reminder failed: %v", err)
	}
}

// formatAmount renders a decimal amount string with thousands separators for
// readability ("15000.5" -> "15,000.50").
func (n *Notifier) formatAmount(amount string) string {
	f, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return amount
	}
	return n.printer.Sprintf("%.2f", f)
}

func pluralBounty(count int) string {
	if count == 1 {
		return "bounty"
	}
	return "bounties"
}

func escapeHTML(text string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(text)
}
