package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Confirmation carries the human-readable fields for a confirmed appointment.
// They come from the appointment's embedded snapshots, never from a fresh
// lookup of the source entities.
type Confirmation struct {
	PatientName string
	Phone       string
	DoctorName  string
	Day         time.Time
	TimeLabel   string
}

type Notifier interface {
	// AppointmentConfirmed delivers best-effort and must not block the
	// caller's request.
	AppointmentConfirmed(c Confirmation)
}

// HTTPNotifier posts the confirmation message to an external gateway.
type HTTPNotifier struct {
	url    string
	key    string
	client *http.Client
	log    zerolog.Logger
}

func NewHTTPNotifier(url, key string, log zerolog.Logger) *HTTPNotifier {
	return &HTTPNotifier{
		url:    url,
		key:    key,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

func (n *HTTPNotifier) AppointmentConfirmed(c Confirmation) {
	if c.Phone == "" {
		n.log.Debug().Str("patient", c.PatientName).Msg("confirmation not sent, no phone on snapshot")
		return
	}

	message := fmt.Sprintf(
		"Appointment confirmed: %s with Dr. %s on %s at %s.",
		c.PatientName,
		c.DoctorName,
		c.Day.Format("Jan 2"),
		c.TimeLabel,
	)

	// Deliver in a goroutine so the status update never waits on the gateway.
	go n.send(c.Phone, message)
}

func (n *HTTPNotifier) send(phone, message string) {
	body, err := json.Marshal(map[string]string{
		"phone":   phone,
		"message": message,
		"key":     n.key,
	})
	if err != nil {
		n.log.Error().Err(err).Msg("marshal confirmation payload")
		return
	}

	resp, err := n.client.Post(n.url, "application/json", bytes.NewReader(body))
	if err != nil {
		n.log.Error().Err(err).Str("phone", phone).Msg("confirmation delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.log.Warn().Int("status", resp.StatusCode).Str("phone", phone).Msg("confirmation gateway rejected message")
		return
	}
	n.log.Info().Str("phone", phone).Msg("confirmation delivered")
}

// LogNotifier just records the confirmation. Used when no gateway is
// configured.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) AppointmentConfirmed(c Confirmation) {
	n.log.Info().
		Str("patient", c.PatientName).
		Str("doctor", c.DoctorName).
		Str("day", c.Day.Format("2006-01-02")).
		Str("time", c.TimeLabel).
		Msg("appointment confirmed")
}
