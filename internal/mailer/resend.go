package mailer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

// Sender is the outbound-email seam. All sends are best-effort: callers log
// failures and never fail the primary operation because of them.
type Sender interface {
	Send(to, subject, html string) error
}

/*
Resend wraps the minimal Resend REST API call we need:
POST https://api.resend.com/emails with a bearer API key.
*/

type Resend struct {
	apiKey string
	from   string
	client *http.Client
}

func NewResend() *Resend {
	return &Resend{
		apiKey: os.Getenv("RESEND_API_KEY"),
		from:   os.Getenv("MAIL_FROM"),
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

type resendPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Send delivers one HTML email through Resend.
func (r *Resend) Send(to, subject, html string) error {
	body, _ := json.Marshal(resendPayload{
		From:    r.from,
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	})

	req, err := http.NewRequest(http.MethodPost, "https://api.resend.com/emails", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	res, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("resend error: %s | %s", res.Status, string(b))
	}
	return nil
}

// SendAsync fires an email without blocking the request and logs failures.
// Notification emails must never roll back or fail the primary operation.
func SendAsync(m Sender, to, subject, html string) {
	if m == nil || to == "" {
		return
	}
	go func() {
		if err := m.Send(to, subject, html); err != nil {
			log.Printf("mail send to %s failed (ignored): %v", to, err)
		}
	}()
}
