package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

/*
Mailer wraps minimal calls to a transactional mail provider's REST API
(anything that accepts {from, to, subject, text} as JSON with a bearer
key works, e.g. Resend-compatible endpoints).

The approval notice is fire-and-forget: it is sent strictly AFTER the
approval write commits, and a send failure never fails the approval.
*/

type Mailer struct {
	endpoint string // e.g. https://api.resend.com/emails
	apiKey   string
	from     string
	client   *http.Client
}

func NewMailer() *Mailer {
	return &Mailer{
		endpoint: os.Getenv("MAIL_API_URL"),
		apiKey:   os.Getenv("MAIL_API_KEY"),
		from:     os.Getenv("MAIL_FROM"),
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// ApprovalNotice carries everything the client needs to know once their
// case request is approved.
type ApprovalNotice struct {
	To               string
	ClientName       string
	AppointmentDate  string
	TimeSlot         string
	ConsultationType string
	LawyerName       string
	CaseID           string
}

// SendApprovalNotice posts one plain-text email. Disabled (returns nil)
// when MAIL_API_URL is unset, so local setups work without a provider.
func (m *Mailer) SendApprovalNotice(n ApprovalNotice) error {
	if m.endpoint == "" {
		return nil
	}

	text := fmt.Sprintf(
		"Dear %s,\n\n"+
			"Your case request has been approved.\n\n"+
			"Case ID: %s\n"+
			"Appointment: %s, %s (%s)\n"+
			"Assigned lawyer: %s\n\n"+
			"Please keep your Case ID for all future correspondence.\n",
		n.ClientName, n.CaseID, n.AppointmentDate, n.TimeSlot, n.ConsultationType, n.LawyerName,
	)

	payload, _ := json.Marshal(map[string]any{
		"from":    m.from,
		"to":      []string{n.To},
		"subject": "Case request approved — " + n.CaseID,
		"text":    text,
	})

	req, err := http.NewRequest(http.MethodPost, m.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	res, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("mail send error: %s | %s", res.Status, string(body))
	}
	return nil
}
